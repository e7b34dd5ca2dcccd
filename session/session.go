package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"pixpack/credentials"
	"pixpack/failures"
	"pixpack/job"
	"pixpack/logger"
	"pixpack/metrics"
	"pixpack/models"
	"pixpack/success"
	writerbackends "pixpack/writerBackends"
)

var (
	ErrSessionExists   = errors.New("session already open for job")
	ErrUnknownBackend  = errors.New("unknown destination type")
	ErrSessionFinished = errors.New("session already finished")
)

// Manager tracks open delivery sessions by job ID.
type Manager struct {
	baseDir string
	client  *http.Client

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns a Manager writing directServe archives below baseDir.
func NewManager(baseDir string) *Manager {
	return &Manager{
		baseDir:  baseDir,
		client:   &http.Client{Timeout: 30 * time.Second},
		sessions: make(map[string]*Session),
	}
}

// Session streams one job's archive to its destination. It is the job's Emitter.
type Session struct {
	jobID   string
	spec    models.JobSpec
	key     string
	manager *Manager
	started time.Time

	pw     *io.PipeWriter
	cancel context.CancelFunc
	done   chan struct{} // closed when the upload returns

	location  string
	uploadErr error

	mu           sync.Mutex
	finished     bool
	processed    int
	total        int
	stats        job.Stats
	entries      int
	archiveBytes int64
}

// Open resolves the destination for spec and starts the upload. Chunks emitted to the
// returned session are written to the destination as they arrive.
func (m *Manager) Open(ctx context.Context, jobID string, spec models.JobSpec) (*Session, error) {
	accessInfo, err := prepareAccessInfo(spec.Destination, jobID, m.baseDir)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[jobID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, jobID)
	}

	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	s := &Session{
		jobID:   jobID,
		spec:    spec,
		key:     writerbackends.ObjectKey(accessInfo),
		manager: m,
		started: time.Now(),
		pw:      pw,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	m.sessions[jobID] = s

	go s.upload(ctx, pr, accessInfo, spec.Destination.Type)
	return s, nil
}

// Active returns the IDs of jobs whose sessions are still open.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// AbortAll fails every open session with err. Used at shutdown, after the worker has
// stopped, since an aborted job never sends a terminal message.
func (m *Manager) AbortAll(err error) {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	for _, s := range open {
		s.cancel()
		s.mu.Lock()
		s.failWith(err, metrics.ResultCancelled)
		s.mu.Unlock()
	}
}

func (m *Manager) remove(jobID string) {
	m.mu.Lock()
	delete(m.sessions, jobID)
	m.mu.Unlock()
}

// Key is the object key (folder/filename) the archive is written under.
func (s *Session) Key() string { return s.key }

// Emit consumes one pipeline message.
func (s *Session) Emit(msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return ErrSessionFinished
	}

	switch msg.Kind {
	case models.KindOverallProgress:
		s.processed, s.total = msg.Overall.Processed, msg.Overall.Total
	case models.KindEntryProgress:
		s.stats.Add(*msg.Entry)
		if msg.Entry.Written() {
			s.entries++
		}
		metrics.ObserveEntry(*msg.Entry)
	case models.KindArchiveChunk:
		n, err := s.pw.Write(msg.Chunk)
		s.archiveBytes += int64(n)
		if err != nil {
			return fmt.Errorf("archive upload: %w", err)
		}
	case models.KindJobComplete:
		return s.complete()
	case models.KindJobFailed:
		s.failWith(errors.New(msg.Reason), metrics.ResultFailed)
	}
	return nil
}

func (s *Session) upload(ctx context.Context, pr *io.PipeReader, accessInfo map[string]string, backend string) {
	defer close(s.done)
	location, err := writerbackends.WriteArchive(ctx, accessInfo, pr, backend)
	if err != nil {
		// unblocks a pending chunk write
		pr.CloseWithError(err)
	}
	s.location, s.uploadErr = location, err
}

// complete ends the upload and records success. An upload error is returned so the
// pipeline reports the job as failed. Caller holds mu.
func (s *Session) complete() error {
	s.pw.Close()
	<-s.done
	if s.uploadErr != nil {
		return fmt.Errorf("archive upload failed: %w", s.uploadErr)
	}
	s.finished = true
	s.cancel()
	defer s.manager.remove(s.jobID)

	summary := summarize(s.stats)
	record := success.SuccessRecord{
		JobID:        s.jobID,
		Location:     s.location,
		EntryCount:   s.entries,
		ArchiveBytes: s.archiveBytes,
		Summary:      summary,
	}
	if err := success.StoreSuccess(record, s.spec); err != nil {
		logger.Errorf("Failed to store success record for job %s: %v", s.jobID, err)
	}
	metrics.ObserveJob(metrics.ResultCompleted, time.Since(s.started), summary.BytesSaved)
	logger.Infof("job %s: archive written to %s (%d bytes)", s.jobID, s.location, s.archiveBytes)

	if err := s.manager.sendCallback(s.spec, CallbackPayload{
		JobID:     s.jobID,
		Status:    "completed",
		Location:  s.location,
		Summary:   summary,
		Timestamp: time.Now().Unix(),
	}); err != nil {
		logger.Errorf("Failed to send callback for job %s: %v", s.jobID, err)
	}
	return nil
}

// failWith discards the partial upload and records the failure. Caller holds mu.
func (s *Session) failWith(err error, result string) {
	if s.finished {
		return
	}
	s.finished = true
	defer s.manager.remove(s.jobID)

	s.pw.CloseWithError(err)
	<-s.done
	s.cancel()

	if storeErr := failures.StoreFailure(s.jobID, err, s.processed, s.total, s.spec); storeErr != nil {
		logger.Errorf("Failed to store failure for job %s: %v", s.jobID, storeErr)
	}
	metrics.ObserveJob(result, time.Since(s.started), -1)

	if cbErr := s.manager.sendCallback(s.spec, CallbackPayload{
		JobID:     s.jobID,
		Status:    "failed",
		Reason:    err.Error(),
		Summary:   summarize(s.stats),
		Timestamp: time.Now().Unix(),
	}); cbErr != nil {
		logger.Errorf("Failed to send callback for job %s: %v", s.jobID, cbErr)
	}
}

// prepareAccessInfo builds the access info map for the writer backend
func prepareAccessInfo(dest models.Destination, jobID, baseDir string) (map[string]string, error) {
	accessInfo := make(map[string]string)

	switch dest.Type {
	case "", writerbackends.BackendDirectServe, writerbackends.BackendS3, writerbackends.BackendGCS, writerbackends.BackendSFTP:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, dest.Type)
	}

	// Copy credentials
	if dest.StorageKey != "" {
		creds, err := credentials.GetCredentials(dest.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve storage key: %w", err)
		}
		for k, v := range creds {
			accessInfo[k] = v
		}
	}

	filename := dest.Filename
	if filename == "" {
		filename = jobID + ".zip"
	}
	accessInfo["filename"] = filename
	accessInfo["folder"] = dest.Folder

	if dest.Type == "" || dest.Type == writerbackends.BackendDirectServe {
		accessInfo["baseDir"] = baseDir
	}
	return accessInfo, nil
}

func summarize(st job.Stats) success.Summary {
	return success.Summary{
		Kept:        st.Kept,
		Processed:   st.Processed,
		Skipped:     st.Skipped,
		Errored:     st.Errored,
		InputBytes:  st.InputBytes,
		OutputBytes: st.OutputBytes,
		BytesSaved:  st.BytesSaved(),
	}
}
