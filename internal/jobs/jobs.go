// Package jobs runs long report computations off the calling path. A job is
// process-local state: nothing here survives a restart, and a blocking-mode
// timeout does not cancel the background work — the job keeps running and its
// handle stays pollable.
package jobs

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status values form a monotonic state machine:
// queued -> running -> finished | failed. Terminal states never transition.
const (
	StatusQueued   = "queued"
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// MaxPolls is the hard ceiling on status checks for a non-terminal job.
// Once reached the response carries StopPolling so a caller cannot loop
// forever; terminal states always bypass the ceiling.
const MaxPolls = 5

// ErrNotFound is returned for an unknown job id.
var ErrNotFound = errors.New("job not found")

// Mode selects how Run delivers its outcome.
type Mode int

const (
	// ModeBlocking sleeps-polls the job and returns the result inline,
	// falling back to a handle when the wait ceiling passes.
	ModeBlocking Mode = iota
	// ModeAsync returns a handle immediately.
	ModeAsync
)

// Handle is the caller's reference to background work.
type Handle struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// StatusResponse is the answer to a Status query.
type StatusResponse struct {
	JobID          string `json:"job_id"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
	Result         any    `json:"result,omitempty"`
	PollCount      int    `json:"poll_count"`
	PollsRemaining int    `json:"polls_remaining"`
	StopPolling    bool   `json:"stop_polling"`
	Message        string `json:"message,omitempty"`
}

// job fields are guarded by the per-job mutex so unrelated jobs never
// serialize on each other.
type job struct {
	mu        sync.Mutex
	status    string
	result    any
	err       string
	pollCount int
}

// Dispatcher owns the in-memory job registry. Construct one per process (or
// per test) and inject it; there is no package-level instance.
type Dispatcher struct {
	mu   sync.Mutex
	jobs map[string]*job

	// PollInterval and MaxWait control blocking mode (5s poll, 360s
	// ceiling by default); exported so tests can shorten them.
	PollInterval time.Duration
	MaxWait      time.Duration

	sleep func(time.Duration)
}

// NewDispatcher returns an empty registry with default blocking-mode timing.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		jobs:         make(map[string]*job),
		PollInterval: 5 * time.Second,
		MaxWait:      360 * time.Second,
		sleep:        time.Sleep,
	}
}

// Run executes fn on a background goroutine. In ModeAsync the returned
// *Handle is non-nil and carries the queued job id. In ModeBlocking the
// result (or error) is returned inline when fn finishes inside MaxWait;
// otherwise a *Handle is returned so the caller can switch to polling.
// A panic or error inside fn is captured into the job record and never
// propagates to Run's caller.
func (d *Dispatcher) Run(fn func() (any, error), mode Mode) (any, *Handle, error) {
	id := uuid.NewString()
	j := &job{status: StatusQueued}
	d.mu.Lock()
	d.jobs[id] = j
	d.mu.Unlock()

	go d.execute(id, j, fn)

	if mode == ModeAsync {
		return nil, &Handle{JobID: id, Status: StatusQueued}, nil
	}

	elapsed := time.Duration(0)
	for elapsed < d.MaxWait {
		d.sleep(d.PollInterval)
		elapsed += d.PollInterval

		j.mu.Lock()
		status, result, errMsg := j.status, j.result, j.err
		j.mu.Unlock()

		switch status {
		case StatusFinished:
			return result, nil, nil
		case StatusFailed:
			return nil, nil, errors.New(errMsg)
		}
	}

	j.mu.Lock()
	status := j.status
	j.mu.Unlock()
	return nil, &Handle{
		JobID:  id,
		Status: status,
		Message: fmt.Sprintf(
			"report is still processing; retrieve it with job_id %s when done", id),
	}, nil
}

func (d *Dispatcher) execute(id string, j *job, fn func() (any, error)) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("job %s panicked: %v", id, r)
			j.mu.Lock()
			j.err = fmt.Sprintf("panic: %v", r)
			j.status = StatusFailed
			j.mu.Unlock()
		}
	}()

	j.mu.Lock()
	j.status = StatusRunning
	j.mu.Unlock()

	result, err := fn()

	j.mu.Lock()
	defer j.mu.Unlock()
	if err != nil {
		j.err = err.Error()
		j.status = StatusFailed
		return
	}
	j.result = result
	j.status = StatusFinished
}

// Status returns the job's current state and increments its poll counter.
// Terminal jobs answer immediately with the result inlined and StopPolling
// set; non-terminal jobs hit the MaxPolls ceiling after which the response
// demands the caller stop polling and fall back to Result.
func (d *Dispatcher) Status(id string) (StatusResponse, error) {
	j, err := d.lookup(id)
	if err != nil {
		return StatusResponse{}, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.pollCount++

	resp := StatusResponse{
		JobID:     id,
		Status:    j.status,
		Error:     j.err,
		PollCount: j.pollCount,
	}

	if j.status == StatusFinished || j.status == StatusFailed {
		resp.StopPolling = true
		if j.status == StatusFinished {
			resp.Result = j.result
			resp.Message = "job complete, result included"
		}
		return resp, nil
	}

	if j.pollCount >= MaxPolls {
		resp.StopPolling = true
		resp.Message = fmt.Sprintf("poll limit (%d) reached; stop polling and fetch the result later", MaxPolls)
		return resp, nil
	}

	resp.PollsRemaining = MaxPolls - j.pollCount
	resp.Message = fmt.Sprintf("job still %s, %d status checks remaining", j.status, resp.PollsRemaining)
	return resp, nil
}

// Result returns the stored result of a finished job. Idempotent: it never
// mutates the poll counter, and repeated calls return the identical value.
// A non-terminal job reports not-ready via the returned status.
func (d *Dispatcher) Result(id string) (any, string, error) {
	j, err := d.lookup(id)
	if err != nil {
		return nil, "", err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.status {
	case StatusFinished:
		return j.result, StatusFinished, nil
	case StatusFailed:
		return nil, StatusFailed, errors.New(j.err)
	default:
		return nil, j.status, nil
	}
}

func (d *Dispatcher) lookup(id string) (*job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	j, ok := d.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return j, nil
}
