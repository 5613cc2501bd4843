package api

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/internal/logging"
)

// JobStatus is the state of an asynchronous merge.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is an asynchronous merge started by POST /jobs.
type Job struct {
	ID          string       `json:"id"`
	Status      JobStatus    `json:"status"`
	Result      *MergeResult `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   string       `json:"created_at"`
	UpdatedAt   string       `json:"updated_at"`
	CompletedAt string       `json:"completed_at,omitempty"`

	request *MergeRequest
	ctx     context.Context
	cancel  context.CancelFunc
}

// JobStore keeps jobs in memory. Jobs are lost on restart; finished merges
// are still in the run catalogue.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	wg   sync.WaitGroup
}

// NewJobStore creates an empty job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Create adds a pending job for req.
func (s *JobStore) Create(req *MergeRequest) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	ts := timestamp()
	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		CreatedAt: ts,
		UpdatedAt: ts,
		request:   req,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job
}

// Get returns a snapshot of the job with id.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns snapshots of all jobs, oldest first.
func (s *JobStore) List() []Job {
	s.mu.RLock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// transition moves a job to status unless it has already finished, so a
// cancelled job stays cancelled when its merge returns.
func (s *JobStore) transition(id string, status JobStatus, result *MergeResult, errMsg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status.terminal() {
		return false
	}
	job.Status = status
	job.UpdatedAt = timestamp()
	if result != nil {
		job.Result = result
	}
	if errMsg != "" {
		job.Error = errMsg
	}
	if status.terminal() {
		job.CompletedAt = job.UpdatedAt
		job.cancel()
	}
	return true
}

// Cancel stops a pending or running job.
func (s *JobStore) Cancel(id string) error {
	if s.transition(id, JobStatusCancelled, nil, "cancelled by client") {
		return nil
	}
	job, ok := s.Get(id)
	if !ok {
		return errors.NewNotFound("job", id)
	}
	return errors.Wrapf(errors.ErrInvalidInput, "job %s has already finished (%s)", id, job.Status)
}

// Remove deletes a finished job.
func (s *JobStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return errors.NewNotFound("job", id)
	}
	if !job.Status.terminal() {
		return errors.Wrapf(errors.ErrInvalidInput, "job %s is still %s", id, job.Status)
	}
	delete(s.jobs, id)
	return nil
}

// Shutdown cancels every unfinished job and waits for their merges to
// return.
func (s *JobStore) Shutdown() {
	s.mu.RLock()
	var ids []string
	for id, job := range s.jobs {
		if !job.Status.terminal() {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()
	for _, id := range ids {
		s.transition(id, JobStatusCancelled, nil, "server shutting down")
	}
	s.wg.Wait()
}

// start runs the job's merge in its own goroutine.
func (s *Server) start(job *Job) {
	s.jobs.wg.Add(1)
	go func() {
		defer s.jobs.wg.Done()
		if !s.jobs.transition(job.ID, JobStatusRunning, nil, "") {
			return
		}
		result, err := s.merge(job.ctx, job.request, Event{Operation: "job", JobID: job.ID})
		if err != nil {
			if s.jobs.transition(job.ID, JobStatusFailed, nil, err.Error()) {
				logging.Warn("merge job failed", "job_id", job.ID, "error", err)
			}
			return
		}
		s.jobs.transition(job.ID, JobStatusCompleted, result, "")
	}()
}

// handleJobs serves POST /jobs (start a merge) and GET /jobs (list).
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		req, ok := s.decodeMerge(w, r)
		if !ok {
			return
		}
		job := s.jobs.Create(req)
		snapshot, _ := s.jobs.Get(job.ID)
		s.start(job)
		respond(w, r, http.StatusAccepted, snapshot)
	case http.MethodGet:
		jobs := s.jobs.List()
		respondList(w, r, jobs, len(jobs))
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and POST are allowed")
	}
}

// handleJobByID serves GET /jobs/{id} and DELETE /jobs/{id}. DELETE
// cancels an unfinished job and removes a finished one.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if err := ValidateID(id); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid job ID: "+err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, ok := s.jobs.Get(id)
		if !ok {
			respondErr(w, errors.NewNotFound("job", id))
			return
		}
		respond(w, r, http.StatusOK, job)
	case http.MethodDelete:
		job, ok := s.jobs.Get(id)
		if !ok {
			respondErr(w, errors.NewNotFound("job", id))
			return
		}
		if job.Status.terminal() {
			if err := s.jobs.Remove(id); err != nil {
				respondErr(w, err)
				return
			}
			respond(w, r, http.StatusOK, map[string]string{"message": "Job removed"})
			return
		}
		if err := s.jobs.Cancel(id); err != nil {
			respondError(w, http.StatusConflict, "CANCEL_FAILED", err.Error())
			return
		}
		respond(w, r, http.StatusOK, map[string]string{"message": "Job cancelled"})
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and DELETE are allowed")
	}
}
