// Package render defines the boundary to the external encode engine. The
// core hands a finished edit-decision-list across this boundary and never
// inspects or retries codec-level failures.
package render

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kikiluvv/scenecut/internal/composition"
)

// Format selects the container format of the deliverable.
type Format string

const (
	FormatMP4 Format = "mp4"
	FormatMOV Format = "mov"
)

// Request is one render submission: a composition, its instructions, and the
// destination locator.
type Request struct {
	Composition  *composition.Composition
	Instructions []composition.Instruction
	Output       string
	Format       Format
}

// Engine renders edit-decision-lists into media files. Implementations run
// the request asynchronously and drive the returned Job.
type Engine interface {
	Submit(ctx context.Context, req Request) (*Job, error)
}

// ErrTimeout reports that a caller-specified render deadline elapsed before
// the engine finished.
var ErrTimeout = errors.New("render timed out")

// EngineError wraps a codec-level failure from the engine.
type EngineError struct {
	Cause error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("export engine failure: %v", e.Cause)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Job is one in-flight render. Engines report through Report/Finish; callers
// drain Progress and Wait for the outcome.
type Job struct {
	progress chan float64
	done     chan struct{}
	cancel   context.CancelFunc

	mu       sync.Mutex
	err      error
	finished bool
}

// NewJob creates a job whose Cancel invokes cancel.
func NewJob(cancel context.CancelFunc) *Job {
	if cancel == nil {
		cancel = func() {}
	}
	return &Job{
		progress: make(chan float64, 64),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
}

// Progress returns the job's fractional progress channel. Closed when the
// job finishes.
func (j *Job) Progress() <-chan float64 {
	return j.progress
}

// Report publishes a progress fraction. Non-blocking: a subscriber that has
// stopped draining only stops seeing updates, it does not stall the render.
// Reports after Finish are dropped.
func (j *Job) Report(fraction float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.finished {
		return
	}
	select {
	case j.progress <- fraction:
	default:
	}
}

// Finish completes the job with the engine's outcome. Must be called exactly
// once by the engine.
func (j *Job) Finish(err error) {
	j.mu.Lock()
	j.err = err
	j.finished = true
	close(j.progress)
	j.mu.Unlock()
	close(j.done)
}

// Cancel halts the underlying work. Abandoning the progress channel does
// not; only Cancel does.
func (j *Job) Cancel() {
	j.cancel()
}

// Wait blocks until the job finishes or ctx expires. A deadline expiry
// surfaces as ErrTimeout; the underlying work keeps running until Cancel.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		j.mu.Lock()
		defer j.mu.Unlock()
		return j.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}
