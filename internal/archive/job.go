package archive

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Delivery modes.
const (
	ModeStream   = "stream"
	ModeBuffered = "buffered"
)

// Status is the lifecycle state of one archive job.
type Status int32

const (
	StatusPending Status = iota
	StatusStreaming
	StatusCompleted
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusStreaming:
		return "streaming"
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Job tracks one archive build. Completed and Aborted are terminal.
type Job struct {
	ID         uuid.UUID
	OutputName string
	Mode       string

	status  atomic.Int32
	written atomic.Int64

	mu  sync.Mutex
	err error
}

func NewJob(outputName, mode string) *Job {
	return &Job{ID: uuid.New(), OutputName: outputName, Mode: mode}
}

func (j *Job) Status() Status {
	return Status(j.status.Load())
}

// BytesWritten counts bytes handed to the sink.
func (j *Job) BytesWritten() int64 {
	return j.written.Load()
}

// Err is the reason for an abort, nil otherwise.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) wrote(n int) {
	if n <= 0 {
		return
	}
	j.written.Add(int64(n))
	j.status.CompareAndSwap(int32(StatusPending), int32(StatusStreaming))
}

func (j *Job) complete() {
	j.transition(StatusCompleted)
}

func (j *Job) abort(err error) {
	if j.transition(StatusAborted) {
		j.mu.Lock()
		j.err = err
		j.mu.Unlock()
	}
}

func (j *Job) transition(to Status) bool {
	for {
		cur := j.status.Load()
		if Status(cur) == StatusCompleted || Status(cur) == StatusAborted {
			return false
		}
		if j.status.CompareAndSwap(cur, int32(to)) {
			return true
		}
	}
}
