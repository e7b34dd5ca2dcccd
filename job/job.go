package job

import "pixpack/models"

// Stats aggregates outcomes of one job.
type Stats struct {
	Kept        int   `json:"kept"`
	Processed   int   `json:"processed"`
	Skipped     int   `json:"skipped"`
	Errored     int   `json:"errored"`
	InputBytes  int64 `json:"inputBytes"`  // original size of entries written to the output
	OutputBytes int64 `json:"outputBytes"` // size of those entries after processing
}

// BytesSaved is positive when the written entries shrank.
func (s Stats) BytesSaved() int64 {
	return s.InputBytes - s.OutputBytes
}

// Job is the state of one run. It is created by Run and owned by its caller afterwards.
type Job struct {
	ID              string
	Rules           models.Rules
	State           State
	TotalCandidates int
	ProcessedCount  int
	Outcomes        []models.EntryOutcome
	Stats           Stats
	ArchiveBytes    int64 // bytes emitted as archive chunks
	Err             error
}

func (j *Job) record(o models.EntryOutcome) {
	j.Outcomes = append(j.Outcomes, o)
	j.ProcessedCount++
	j.Stats.Add(o)
}

// Add counts one outcome.
func (s *Stats) Add(o models.EntryOutcome) {
	switch o.Status {
	case models.StatusKept:
		s.Kept++
	case models.StatusProcessed:
		s.Processed++
	case models.StatusSkipped:
		s.Skipped++
	case models.StatusErrored:
		s.Errored++
	}
	if o.Written() {
		s.InputBytes += o.OriginalSize
		s.OutputBytes += o.Size
	}
}
