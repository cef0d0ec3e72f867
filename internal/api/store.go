package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldmapless/synb0/internal/volume"
)

// Job statuses follow the prediction lifecycle: queued on creation,
// in_progress while the network runs, then completed or failed.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job is one tracked prediction request.
type Job struct {
	ID          string
	Status      string
	CreatedAt   time.Time
	CompletedAt time.Time
	Batch       bool
	BatchSize   int
	Result      *volume.Volume
	Err         error
}

// JobStore keeps prediction jobs in memory, keyed by ID.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
	}
}

// Create registers a queued job and returns a snapshot of it.
func (s *JobStore) Create(batch bool, batchSize int, now time.Time) Job {
	job := &Job{
		ID:        newPredictionID(),
		Status:    StatusQueued,
		CreatedAt: now,
		Batch:     batch,
		BatchSize: batchSize,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return *job
}

// Get returns a snapshot of the job with the given ID.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (s *JobStore) SetRunning(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = StatusInProgress
	}
}

func (s *JobStore) Complete(id string, result *volume.Volume, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = StatusCompleted
		job.Result = result
		job.CompletedAt = now
	}
}

func (s *JobStore) Fail(id string, err error, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = StatusFailed
		job.Err = err
		job.CompletedAt = now
	}
}

func (s *JobStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	return true
}

func newPredictionID() string {
	return "pred_" + uuid.NewString()
}
