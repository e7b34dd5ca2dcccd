package models

// EntryStatus is the terminal state of one candidate.
type EntryStatus string

const (
	StatusKept      EntryStatus = "kept"
	StatusProcessed EntryStatus = "processed"
	StatusSkipped   EntryStatus = "skipped"
	StatusErrored   EntryStatus = "errored"
)

// EntryOutcome records what happened to one candidate. Immutable once appended to a job.
type EntryOutcome struct {
	Name         string      `json:"name"`
	Status       EntryStatus `json:"status"`
	Size         int64       `json:"size,omitempty"`
	OriginalSize int64       `json:"originalSize,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	InFormat     Format      `json:"inFormat,omitempty"`
	OutFormat    Format      `json:"outFormat,omitempty"`
	Width        int         `json:"width,omitempty"`
	Height       int         `json:"height,omitempty"`
}

// Written reports whether the outcome has a corresponding entry in the output archive.
func (o EntryOutcome) Written() bool {
	return o.Status == StatusKept || o.Status == StatusProcessed
}
