package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pixpack/logger"
	"pixpack/metrics"
	"pixpack/models"
)

// JobState represents the current state of a job in the worker
type JobState int

const (
	JobStatePending JobState = iota
	JobStateProcessing
	JobStateCompleted
	JobStateFailed
	JobStateCancelled
)

func (s JobState) String() string {
	switch s {
	case JobStatePending:
		return "pending"
	case JobStateProcessing:
		return "processing"
	case JobStateCompleted:
		return "completed"
	case JobStateFailed:
		return "failed"
	case JobStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// maxFinished bounds how many finished jobs keep a status snapshot in memory.
// The success and failure stores hold the durable record.
const maxFinished = 1000

// Status is a point-in-time view of a job for status queries.
type Status struct {
	JobID       string                `json:"jobId"`
	State       string                `json:"state"`
	Processed   int                   `json:"processed"`
	Total       int                   `json:"total"`
	Outcomes    []models.EntryOutcome `json:"outcomes,omitempty"`
	Stats       *Stats                `json:"stats,omitempty"`
	Reason      string                `json:"reason,omitempty"`
	SubmittedAt time.Time             `json:"submittedAt"`
	FinishedAt  *time.Time            `json:"finishedAt,omitempty"`
}

type task struct {
	inv         models.JobInvocation
	emit        Emitter
	state       JobState
	processed   int
	total       int
	outcomes    []models.EntryOutcome
	stats       *Stats
	reason      string
	submittedAt time.Time
	finishedAt  time.Time
}

// Worker runs submitted jobs one at a time in submission order.
type Worker struct {
	opts Options

	mu       sync.RWMutex
	pending  []string // job IDs waiting to run
	tasks    map[string]*task
	finished []string // job IDs in completion order, for pruning
	stopped  bool

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorker(opts Options) *Worker {
	return &Worker{
		opts:  opts,
		tasks: make(map[string]*task),
		wake:  make(chan struct{}, 1),
	}
}

// Submit queues inv. emit receives the job's messages once it runs.
func (w *Worker) Submit(inv models.JobInvocation, emit Emitter) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrWorkerStopped
	}
	if _, exists := w.tasks[inv.JobID]; exists {
		return fmt.Errorf("%w: %s", ErrJobExists, inv.JobID)
	}
	w.tasks[inv.JobID] = &task{
		inv:         inv,
		emit:        emit,
		state:       JobStatePending,
		submittedAt: time.Now(),
	}
	w.pending = append(w.pending, inv.JobID)
	metrics.SetPending(len(w.pending))

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// Start launches the processing goroutine. It returns immediately.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.loop(ctx)
}

// Stop cancels the running job abruptly and waits for the loop to exit.
// Pending jobs are left unprocessed.
func (w *Worker) Stop() {
	w.mu.Lock()
	w.stopped = true
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// PendingJobs returns a copy of the queued job IDs
func (w *Worker) PendingJobs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	jobs := make([]string, len(w.pending))
	copy(jobs, w.pending)
	return jobs
}

// GetJobStatus returns a snapshot of a job's state and progress
func (w *Worker) GetJobStatus(id string) (Status, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	t, exists := w.tasks[id]
	if !exists {
		return Status{}, false
	}
	st := Status{
		JobID:       id,
		State:       t.state.String(),
		Processed:   t.processed,
		Total:       t.total,
		Outcomes:    append([]models.EntryOutcome(nil), t.outcomes...),
		Stats:       t.stats,
		Reason:      t.reason,
		SubmittedAt: t.submittedAt,
	}
	if !t.finishedAt.IsZero() {
		finished := t.finishedAt
		st.FinishedAt = &finished
	}
	return st, true
}

// CancelJob cancels a pending job. Running and finished jobs cannot be cancelled.
func (w *Worker) CancelJob(id string) error {
	w.mu.Lock()
	t, exists := w.tasks[id]
	if !exists {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	switch t.state {
	case JobStateCompleted:
		w.mu.Unlock()
		return fmt.Errorf("%w: job %s is already completed", ErrJobNotCancellable, id)
	case JobStateFailed:
		w.mu.Unlock()
		return fmt.Errorf("%w: job %s has already failed", ErrJobNotCancellable, id)
	case JobStateCancelled:
		w.mu.Unlock()
		return fmt.Errorf("%w: job %s is already cancelled", ErrJobNotCancellable, id)
	case JobStateProcessing:
		w.mu.Unlock()
		return fmt.Errorf("%w: job %s is currently processing", ErrJobNotCancellable, id)
	}

	for i, p := range w.pending {
		if p == id {
			w.pending = append(w.pending[:i], w.pending[i+1:]...)
			metrics.SetPending(len(w.pending))
			break
		}
	}
	t.state = JobStateCancelled
	t.reason = "cancelled before start"
	t.inv.ArchiveData = nil
	w.finish(id, t)
	emit, reason := t.emit, t.reason
	w.mu.Unlock()

	// the host still waits for a terminal message
	if err := emit.Emit(models.Message{Kind: models.KindJobFailed, JobID: id, Reason: reason}); err != nil {
		logger.Warnf("job %s: failed to report cancellation: %v", id, err)
	}
	logger.Infof("job %s cancelled", id)
	return nil
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)
	for {
		id, t, ok := w.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-w.wake:
				continue
			}
		}
		w.run(ctx, id, t)
		if ctx.Err() != nil {
			return
		}
	}
}

// next pops the oldest pending job and marks it processing.
func (w *Worker) next() (string, *task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return "", nil, false
	}
	id := w.pending[0]
	w.pending = w.pending[1:]
	metrics.SetPending(len(w.pending))
	t := w.tasks[id]
	t.state = JobStateProcessing
	return id, t, true
}

func (w *Worker) run(ctx context.Context, id string, t *task) {
	logger.Infof("Processing job %s (%d bytes)", id, len(t.inv.ArchiveData))
	tracker := EmitterFunc(func(msg models.Message) error {
		w.track(t, msg)
		return t.emit.Emit(msg)
	})

	j, err := Run(ctx, t.inv, tracker, w.opts)

	w.mu.Lock()
	defer w.mu.Unlock()
	t.inv.ArchiveData = nil
	stats := j.Stats
	t.stats = &stats
	switch {
	case err == nil:
		t.state = JobStateCompleted
	case ctx.Err() != nil:
		t.state = JobStateCancelled
		t.reason = ctx.Err().Error()
	default:
		t.state = JobStateFailed
		t.reason = err.Error()
	}
	w.finish(id, t)
}

// track mirrors progress into the task snapshot.
func (w *Worker) track(t *task, msg models.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch msg.Kind {
	case models.KindOverallProgress:
		t.processed, t.total = msg.Overall.Processed, msg.Overall.Total
	case models.KindEntryProgress:
		t.outcomes = append(t.outcomes, *msg.Entry)
	case models.KindJobFailed:
		t.reason = msg.Reason
	}
}

// finish records completion and prunes the oldest snapshots. Caller holds mu.
func (w *Worker) finish(id string, t *task) {
	t.finishedAt = time.Now()
	w.finished = append(w.finished, id)
	for len(w.finished) > maxFinished {
		delete(w.tasks, w.finished[0])
		w.finished = w.finished[1:]
	}
}
