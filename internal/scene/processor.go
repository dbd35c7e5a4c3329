package scene

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/scenecut/internal/composition"
	"github.com/kikiluvv/scenecut/internal/media"
	"github.com/kikiluvv/scenecut/internal/mediatime"
	"github.com/kikiluvv/scenecut/internal/render"
	"github.com/kikiluvv/scenecut/pkg/util"
)

// attenuators are allowed to drift this far from duration-preserving before
// the pipeline refuses their output.
var durationEpsilon = mediatime.FromSeconds(0.05, mediatime.DefaultScale)

// Options selects and configures the optional pipeline stages for one scene.
type Options struct {
	// Trim enables dead-air removal when non-nil.
	Trim *TrimConfig
	// Attenuate enables loudness attenuation when non-nil.
	Attenuate *AttenuateConfig
	// Output is the destination locator. When empty the processor places the
	// finalized clip inside its temp directory and hands the locator back.
	Output string
	Format render.Format
}

// Deps are the processor's collaborators. All are required.
type Deps struct {
	Extractor  Extractor
	Trimmer    Trimmer
	Attenuator Attenuator
	Muxer      Muxer
	Engine     render.Engine
}

// Processor orchestrates the per-scene pipeline. At most one Process runs at
// a time per instance; independent scenes use independent instances.
type Processor struct {
	logger  zerolog.Logger
	deps    Deps
	tempDir string

	mu sync.Mutex
}

// NewProcessor creates a scene processor working under tempDir.
func NewProcessor(logger zerolog.Logger, deps Deps, tempDir string) *Processor {
	return &Processor{
		logger:  logger.With().Str("component", "scene").Logger(),
		deps:    deps,
		tempDir: tempDir,
	}
}

// Process runs the scene pipeline on one clip. Every intermediate artifact
// is removed on every exit path except the one the final output refers to.
func (p *Processor) Process(ctx context.Context, clip *media.Clip, opts Options) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if clip == nil {
		return nil, fmt.Errorf("no clip provided")
	}

	ws, err := util.NewWorkspace(p.tempDir)
	if err != nil {
		return nil, fmt.Errorf("prepare workspace: %w", err)
	}
	defer ws.Cleanup()

	p.logger.Info().
		Str("clip", clip.Locator).
		Bool("trim", opts.Trim != nil).
		Bool("attenuate", opts.Attenuate != nil).
		Msg("processing scene")

	if !clip.HasTrack(media.KindAudio) {
		return nil, &media.MissingTrackError{Kind: media.KindAudio, Locator: clip.Locator}
	}

	// extract audio into a standalone asset
	audio, err := p.deps.Extractor.Extract(ctx, clip, media.KindAudio, ws.NewFile("audio", ".m4a"))
	if err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}

	var kept mediatime.KeptRanges
	if opts.Trim != nil {
		trimmed, ranges, err := p.deps.Trimmer.Process(ctx, audio, *opts.Trim)
		if err != nil {
			return nil, fmt.Errorf("trim audio: %w", err)
		}
		ws.Adopt(trimmed.Locator)
		if err := ranges.Validate(clip.Duration); err != nil {
			return nil, &composition.BuildError{Reason: "trimmer returned invalid kept ranges", Err: err}
		}
		audio, kept = trimmed, ranges
		p.logger.Info().
			Int("kept_ranges", len(kept)).
			Float64("kept_seconds", kept.TotalDuration().Seconds()).
			Msg("dead air removed")
	}

	if opts.Attenuate != nil {
		attenuated, err := p.deps.Attenuator.Process(ctx, audio, *opts.Attenuate)
		if err != nil {
			return nil, fmt.Errorf("attenuate audio: %w", err)
		}
		ws.Adopt(attenuated.Locator)
		audio, err = clampAttenuated(audio, attenuated)
		if err != nil {
			return nil, err
		}
	}

	video := Asset{Locator: clip.Locator, Duration: clip.Duration}
	trimmedDuration := clip.Duration
	if len(kept) > 0 {
		rebuilt, err := p.rebuildVideo(ctx, clip, kept, ws)
		if err != nil {
			return nil, err
		}
		video = rebuilt
		trimmedDuration = kept.TotalDuration()
	}

	output := opts.Output
	if output == "" {
		output = ws.NewFile("scene", "."+string(formatOrDefault(opts.Format)))
		ws.Keep(output)
	}

	if err := p.deps.Muxer.Mux(ctx, video, audio, output); err != nil {
		util.CleanupFiles(output)
		return nil, &render.EngineError{Cause: fmt.Errorf("mux scene: %w", err)}
	}

	p.logger.Info().
		Str("output", output).
		Float64("duration", mediatime.Min(video.Duration, audio.Duration).Seconds()).
		Msg("scene finalized")

	return &Result{
		Output:          output,
		TrimmedDuration: trimmedDuration,
		Kept:            kept,
	}, nil
}

// rebuildVideo reassembles the video track from the kept ranges: each source
// segment is inserted at the running sum of previously inserted durations,
// with the clip's corrected orientation transform applied once to the video
// layer.
func (p *Processor) rebuildVideo(ctx context.Context, clip *media.Clip, kept mediatime.KeptRanges, ws *util.Workspace) (Asset, error) {
	if !clip.HasTrack(media.KindVideo) {
		return Asset{}, &media.MissingTrackError{Kind: media.KindVideo, Locator: clip.Locator}
	}

	comp := composition.New()
	track := comp.AddTrack(media.KindVideo)

	cursor := mediatime.Time{Scale: mediatime.DefaultScale}
	for _, r := range kept {
		if err := track.Insert(composition.Entry{
			Source:      clip,
			SourceRange: r,
			At:          cursor,
		}); err != nil {
			return Asset{}, err
		}
		cursor = cursor.Add(r.Duration)
	}

	instructions := []composition.Instruction{{
		Range: mediatime.NewRange(mediatime.Time{Scale: mediatime.DefaultScale}, cursor),
		Layers: []composition.LayerTransform{{
			Track:     track.ID,
			Transform: clip.CorrectedTransform(),
			Opacity:   composition.Opaque(),
		}},
	}}

	output := ws.NewFile("video", ".mp4")
	job, err := p.deps.Engine.Submit(ctx, render.Request{
		Composition:  comp,
		Instructions: instructions,
		Output:       output,
		Format:       render.FormatMP4,
	})
	if err != nil {
		return Asset{}, &render.EngineError{Cause: err}
	}
	if err := job.Wait(ctx); err != nil {
		return Asset{}, err
	}

	return Asset{Locator: output, Duration: cursor}, nil
}

// clampAttenuated enforces the duration-preserving attenuator contract: a
// slightly long output is clamped back to the input duration, a short one is
// refused.
func clampAttenuated(in, out Asset) (Asset, error) {
	if out.Duration.Cmp(in.Duration) >= 0 {
		out.Duration = in.Duration
		return out, nil
	}
	if out.Duration.ApproxEqual(in.Duration, durationEpsilon) {
		return out, nil
	}
	return Asset{}, fmt.Errorf(
		"attenuator shortened audio from %s to %s; duration-preserving contract violated",
		in.Duration, out.Duration)
}

func formatOrDefault(f render.Format) render.Format {
	if f == "" {
		return render.FormatMP4
	}
	return f
}
