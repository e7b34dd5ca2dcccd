package models

// JobInvocation is the host -> pipeline request. Ownership of ArchiveData moves to the pipeline.
type JobInvocation struct {
	JobID       string
	ArchiveData []byte
	Rules       Rules
}

// MessageKind distinguishes pipeline -> host messages.
type MessageKind string

const (
	KindOverallProgress MessageKind = "progress/overall"
	KindEntryProgress   MessageKind = "progress/entry"
	KindArchiveChunk    MessageKind = "archive-chunk"
	KindJobComplete     MessageKind = "job-complete"
	KindJobFailed       MessageKind = "job-failed"
)

// OverallProgress counts completed candidates.
type OverallProgress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// Message is one pipeline -> host message. Exactly one payload field is set, matching Kind.
type Message struct {
	Kind    MessageKind      `json:"kind"`
	JobID   string           `json:"jobId"`
	Overall *OverallProgress `json:"overall,omitempty"`
	Entry   *EntryOutcome    `json:"entry,omitempty"`
	Chunk   []byte           `json:"-"` // owned by the receiver
	Reason  string           `json:"reason,omitempty"`
}

// Terminal reports whether no further messages follow for the job.
func (m Message) Terminal() bool {
	return m.Kind == KindJobComplete || m.Kind == KindJobFailed
}
