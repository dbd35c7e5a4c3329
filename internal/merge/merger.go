package merge

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/scenecut/internal/media"
	"github.com/kikiluvv/scenecut/internal/render"
	"github.com/kikiluvv/scenecut/internal/transform"
)

// DefaultExportBase is the short side of the render canvas in pixels.
const DefaultExportBase = 1080

// Options configures one merge.
type Options struct {
	// TargetAspect is the deliverable's width over height (e.g. 16.0/9).
	// Zero means 16:9.
	TargetAspect float64
	Transition   TransitionSpec
	// Output is the destination locator. Required.
	Output string
	Format render.Format
	// Timeout caps the render; zero means no cap. Expiry surfaces as
	// render.ErrTimeout while the engine keeps running until canceled.
	Timeout time.Duration
}

// Merger concatenates finalized scene clips into one deliverable. At most
// one merge runs at a time per instance.
type Merger struct {
	logger     zerolog.Logger
	engine     render.Engine
	exportBase int

	mu sync.Mutex
}

// NewMerger creates a merger rendering through engine. exportBase is the
// short side of the output canvas in pixels; zero selects the default.
func NewMerger(logger zerolog.Logger, engine render.Engine, exportBase int) *Merger {
	if exportBase <= 0 {
		exportBase = DefaultExportBase
	}
	return &Merger{
		logger:     logger.With().Str("component", "merge").Logger(),
		engine:     engine,
		exportBase: exportBase,
	}
}

// Handle is one in-flight merge. Drain Events until closed, then Wait for
// the outcome. Abandoning the events channel abandons interest only; the
// merge keeps running.
type Handle struct {
	events chan Progress
	done   chan struct{}

	mu           sync.Mutex
	lastFraction float64
	result       *Result
	err          error
}

// Events returns the progress stream. Closed when the merge finishes; the
// terminal completed event is present iff the merge succeeded.
func (h *Handle) Events() <-chan Progress {
	return h.events
}

// Wait blocks until the merge finishes or ctx expires.
func (h *Handle) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// emit publishes a progress event, clamping fractions so the stream is
// monotonically non-decreasing. When the buffer is full the oldest event is
// dropped: a lagging or departed consumer never stalls the merge, and the
// stream it does see stays monotone and ends with the terminal event.
func (h *Handle) emit(p Progress) {
	h.mu.Lock()
	if p.Fraction < h.lastFraction {
		p.Fraction = h.lastFraction
	}
	h.lastFraction = p.Fraction
	h.mu.Unlock()

	for {
		select {
		case h.events <- p:
			return
		default:
		}
		select {
		case <-h.events:
		default:
		}
	}
}

func (h *Handle) finish(res *Result, err error) {
	h.mu.Lock()
	h.result = res
	h.err = err
	h.mu.Unlock()
	close(h.events)
	close(h.done)
}

// Merge starts merging the clips in input order. It fails fast with
// ErrNoClips on an empty list and with MissingTrack when a clip lacks video,
// both before any file I/O. The returned handle streams progress and
// delivers the outcome.
func (m *Merger) Merge(ctx context.Context, clips []*media.Clip, opts Options) (*Handle, error) {
	if len(clips) == 0 {
		return nil, ErrNoClips
	}
	if opts.Output == "" {
		return nil, fmt.Errorf("output locator is required")
	}
	for _, clip := range clips {
		if !clip.HasTrack(media.KindVideo) {
			return nil, &media.MissingTrackError{Kind: media.KindVideo, Locator: clip.Locator}
		}
	}

	h := &Handle{
		events: make(chan Progress, len(clips)+8),
		done:   make(chan struct{}),
	}

	go m.run(ctx, h, clips, opts)
	return h, nil
}

func (m *Merger) run(ctx context.Context, h *Handle, clips []*media.Clip, opts Options) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info().
		Int("clips", len(clips)).
		Str("transition", opts.Transition.Kind.String()).
		Str("output", opts.Output).
		Msg("starting merge")

	h.emit(Progress{Fraction: 0, Status: StatusPreparing})

	canvas := m.canvasFor(opts.TargetAspect)
	n := float64(len(clips))

	tl, err := buildTimeline(clips, canvas, opts.Transition, func(i int) {
		// clip appends cover the first half of the progress range
		h.emit(Progress{Fraction: 0.5 * float64(i+1) / n, Status: StatusMerging})
	})
	if err != nil {
		m.fail(h, "", err)
		return
	}

	m.logger.Debug().
		Float64("duration", tl.duration.Seconds()).
		Int("instructions", len(tl.instructions)).
		Str("canvas", canvas.String()).
		Msg("timeline built")

	renderCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		renderCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	job, err := m.engine.Submit(renderCtx, render.Request{
		Composition:  tl.comp,
		Instructions: tl.instructions,
		Output:       opts.Output,
		Format:       opts.Format,
	})
	if err != nil {
		m.fail(h, "", &render.EngineError{Cause: err})
		return
	}

	// forward engine progress into the second half of the range; the engine
	// closes its stream when it stops, which ends this goroutine before the
	// handle is finished
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for f := range job.Progress() {
			h.emit(Progress{Fraction: 0.5 + 0.5*f, Status: StatusMerging})
		}
	}()

	waitErr := job.Wait(renderCtx)
	if waitErr != nil {
		job.Cancel()
	}
	<-forwarded
	if waitErr != nil {
		m.fail(h, opts.Output, waitErr)
		return
	}

	m.logger.Info().
		Str("output", opts.Output).
		Float64("duration", tl.duration.Seconds()).
		Msg("merge completed")

	h.emit(Progress{Fraction: 1, Status: StatusCompleted, Output: opts.Output})
	h.finish(&Result{Output: opts.Output, Duration: tl.duration}, nil)
}

// fail terminates the merge. A non-empty output names a partially-written
// deliverable to remove; failures before the render starts must not touch
// whatever already sits at the destination.
func (m *Merger) fail(h *Handle, output string, err error) {
	m.logger.Error().Err(err).Msg("merge failed")
	if output != "" {
		_ = os.Remove(output)
	}
	h.finish(nil, err)
}

// canvasFor returns the render canvas matching the target aspect at the
// configured export resolution, with even pixel dimensions.
func (m *Merger) canvasFor(aspect float64) transform.Size {
	if aspect <= 0 {
		aspect = 16.0 / 9.0
	}
	base := float64(m.exportBase)
	var w, hgt float64
	if aspect >= 1 {
		w, hgt = base*aspect, base
	} else {
		w, hgt = base, base/aspect
	}
	return transform.Size{Width: evenPx(w), Height: evenPx(hgt)}
}

func evenPx(v float64) float64 {
	n := int(math.Round(v))
	if n%2 != 0 {
		n++
	}
	return float64(n)
}
