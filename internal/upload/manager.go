package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/insight-dashboard/insight/internal/analysis"
	"github.com/insight-dashboard/insight/internal/models"
	"github.com/insight-dashboard/insight/internal/result"
)

// ErrBusy is returned when an analysis is already in flight.
var ErrBusy = errors.New("an analysis is already in progress")

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// Progress boundaries: streaming the file covers 0-90%, waiting for the
// analysis response holds at 90%.
const (
	uploadProgressShare = 90.0
	analyzingProgress   = 90.0
	progressInterval    = 100 * time.Millisecond
)

// Analyzer performs the round trip to the analysis endpoint.
type Analyzer interface {
	Analyze(ctx context.Context, name string, r io.Reader, size int64, onProgress analysis.ProgressFunc) (*analysis.Response, error)
}

// Store defines the interface needed from the storage layer.
type Store interface {
	Open(id string) (io.ReadCloser, *models.FileInfo, error)
	SetStatus(id string, status string) error
}

// Recorder receives job lifecycle events, e.g. for metrics.
type Recorder interface {
	JobStarted()
	JobFinished(status models.JobStatus, elapsed time.Duration)
	BytesSent(n int64)
}

// Manager runs analysis jobs one at a time and tracks their progress.
type Manager struct {
	jobs        map[string]*models.Job
	activeID    string
	mu          sync.RWMutex
	subscribers map[int]chan models.Job
	nextSubID   int
	subMu       sync.Mutex

	store    Store
	analyzer Analyzer
	results  *result.Store
	recorder Recorder
	logger   *slog.Logger
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder attaches a lifecycle recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithTimeout bounds each analysis round trip.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// NewManager creates a new analysis job manager.
func NewManager(store Store, analyzer Analyzer, results *result.Store, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		jobs:        make(map[string]*models.Job),
		subscribers: make(map[int]chan models.Job),
		store:       store,
		analyzer:    analyzer,
		results:     results,
		logger:      slog.Default(),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "upload")
	return m
}

// StartJob begins async analysis of a stored file.
func (m *Manager) StartJob(info *models.FileInfo) (*models.Job, error) {
	job, err := m.begin(info)
	if err != nil {
		return nil, err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.processJob(m.ctx, job.ID)
	}()

	return job, nil
}

// RunJob analyzes a stored file synchronously and returns the final job
// state. The job error, if any, is returned as err.
func (m *Manager) RunJob(ctx context.Context, info *models.FileInfo) (*models.Job, error) {
	job, err := m.begin(info)
	if err != nil {
		return nil, err
	}

	runErr := m.processJob(ctx, job.ID)
	final, _ := m.GetJob(job.ID)
	return final, runErr
}

// GetJob retrieves a copy of a job by ID.
func (m *Manager) GetJob(id string) (*models.Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	copied := *job
	return &copied, true
}

// ActiveJob returns the in-flight job, if any.
func (m *Manager) ActiveJob() (*models.Job, bool) {
	m.mu.RLock()
	id := m.activeID
	m.mu.RUnlock()
	if id == "" {
		return nil, false
	}
	return m.GetJob(id)
}

// Subscribe returns a channel of job snapshots and a function to stop
// receiving. Slow subscribers miss intermediate updates.
func (m *Manager) Subscribe() (<-chan models.Job, func()) {
	ch := make(chan models.Job, 16)

	m.subMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subscribers, id)
			m.subMu.Unlock()
			close(ch)
		})
	}
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range m.jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

// Shutdown cancels running jobs and waits for them to finish.
func (m *Manager) Shutdown() {
	m.cancel()
	m.wg.Wait()
}

// begin registers a job and claims the single in-flight slot.
func (m *Manager) begin(info *models.FileInfo) (*models.Job, error) {
	m.mu.Lock()
	if m.activeID != "" {
		if active, ok := m.jobs[m.activeID]; ok && !active.Status.Terminal() {
			m.mu.Unlock()
			return nil, ErrBusy
		}
	}

	job := &models.Job{
		ID:         uuid.New().String(),
		FileID:     info.ID,
		FileName:   info.Name,
		Status:     models.JobStatusUploading,
		Stage:      "uploading file",
		TotalBytes: info.Size,
		CreatedAt:  time.Now(),
	}
	m.jobs[job.ID] = job
	m.activeID = job.ID
	snapshot := *job
	m.mu.Unlock()

	if m.recorder != nil {
		m.recorder.JobStarted()
	}
	m.broadcast(snapshot)
	return &snapshot, nil
}

// processJob performs the round trip and records the outcome.
func (m *Manager) processJob(ctx context.Context, jobID string) error {
	job, ok := m.GetJob(jobID)
	if !ok {
		return ErrJobNotFound
	}
	start := time.Now()
	log := m.logger.With("job", shortID(jobID), "file", job.FileName)
	log.Info("starting analysis")

	m.setFileStatus(job.FileID, "analyzing")

	src, info, err := m.store.Open(job.FileID)
	if err != nil {
		return m.fail(jobID, start, fmt.Errorf("opening stored file: %w", err))
	}
	defer src.Close()

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	var lastUpdate time.Time
	var lastSent int64
	onProgress := func(sent, total int64) {
		if m.recorder != nil {
			m.recorder.BytesSent(sent - lastSent)
		}
		lastSent = sent
		if sent != total && time.Since(lastUpdate) < progressInterval {
			return
		}
		lastUpdate = time.Now()
		m.updateUploadProgress(jobID, sent, total)
	}

	resp, err := m.analyzer.Analyze(ctx, info.Name, &stageReader{r: src, onEOF: func() {
		m.markAnalyzing(jobID)
	}}, info.Size, onProgress)
	if err != nil {
		return m.fail(jobID, start, err)
	}

	gen := m.results.Replace(resp.Result, resp.Raw, result.Meta{
		FileID:   job.FileID,
		FileName: job.FileName,
		JobID:    jobID,
	})
	m.setFileStatus(job.FileID, "analyzed")
	m.markComplete(jobID, start)
	log.Info("analysis complete",
		"rows", resp.Result.Summary.Rows,
		"columns", resp.Result.Summary.Columns,
		"generation", gen,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// updateUploadProgress maps bytes sent onto the 0-90% band.
func (m *Manager) updateUploadProgress(jobID string, sent, total int64) {
	m.update(jobID, func(job *models.Job) {
		if job.Status != models.JobStatusUploading {
			return
		}
		job.BytesSent = sent
		if total > 0 {
			job.TotalBytes = total
			progress := float64(sent) / float64(total) * uploadProgressShare
			if progress > uploadProgressShare {
				progress = uploadProgressShare
			}
			if progress > job.Progress {
				job.Progress = progress
			}
		}
	})
}

func (m *Manager) markAnalyzing(jobID string) {
	m.update(jobID, func(job *models.Job) {
		if job.Status.Terminal() {
			return
		}
		job.Status = models.JobStatusAnalyzing
		job.Stage = "waiting for analysis"
		if job.Progress < analyzingProgress {
			job.Progress = analyzingProgress
		}
	})
}

func (m *Manager) markComplete(jobID string, start time.Time) {
	m.update(jobID, func(job *models.Job) {
		job.Status = models.JobStatusComplete
		job.Stage = "complete"
		job.Progress = 100
		job.BytesSent = job.TotalBytes
		now := time.Now()
		job.CompletedAt = &now
		if m.activeID == job.ID {
			m.activeID = ""
		}
	})
	if m.recorder != nil {
		m.recorder.JobFinished(models.JobStatusComplete, time.Since(start))
	}
}

// fail marks the job as failed and returns err. The previous result is left
// untouched.
func (m *Manager) fail(jobID string, start time.Time, err error) error {
	var fileID string
	m.update(jobID, func(job *models.Job) {
		fileID = job.FileID
		job.Status = models.JobStatusError
		job.Stage = "error"
		job.Error = err.Error()
		now := time.Now()
		job.CompletedAt = &now
		if m.activeID == job.ID {
			m.activeID = ""
		}
	})
	if fileID != "" {
		m.setFileStatus(fileID, "error")
	}
	if m.recorder != nil {
		m.recorder.JobFinished(models.JobStatusError, time.Since(start))
	}
	m.logger.Warn("analysis failed", "job", shortID(jobID), "error", err)
	return err
}

// setFileStatus records the file's processing state. The job outcome does
// not depend on it, so failures are only logged.
func (m *Manager) setFileStatus(fileID, status string) {
	if err := m.store.SetStatus(fileID, status); err != nil {
		m.logger.Debug("updating file status failed", "file", fileID, "status", status, "error", err)
	}
}

// update mutates a job under the lock and broadcasts the new state.
func (m *Manager) update(jobID string, fn func(job *models.Job)) {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return
	}
	fn(job)
	snapshot := *job
	m.mu.Unlock()

	m.broadcast(snapshot)
}

func (m *Manager) broadcast(job models.Job) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- job:
		default:
		}
	}
}

// stageReader reports when the file has been fully read, which is the point
// where the endpoint starts working on it.
type stageReader struct {
	r     io.Reader
	onEOF func()
	done  bool
}

func (s *stageReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err == io.EOF && !s.done {
		s.done = true
		s.onEOF()
	}
	return n, err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
