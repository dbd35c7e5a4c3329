// Package pipeline assembles the scenecut components from configuration: one
// ffmpeg executor shared by the probe, the per-scene processor, and the
// multi-clip merger.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/scenecut/internal/config"
	"github.com/kikiluvv/scenecut/internal/ffmpeg"
	"github.com/kikiluvv/scenecut/internal/media"
	"github.com/kikiluvv/scenecut/internal/merge"
	"github.com/kikiluvv/scenecut/internal/scene"
)

// Pipeline wires the processing components to a shared ffmpeg executor.
type Pipeline struct {
	logger    zerolog.Logger
	cfg       *config.Config
	exec      *ffmpeg.Executor
	processor *scene.Processor
	merger    *merge.Merger
}

// New builds a pipeline from configuration.
func New(logger zerolog.Logger, cfg *config.Config) (*Pipeline, error) {
	exec, err := ffmpeg.New(logger, cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath, cfg.FFmpeg.Threads)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}

	engine := ffmpeg.NewEngine(exec)
	deps := scene.Deps{
		Extractor:  exec,
		Trimmer:    ffmpeg.NewSilenceTrimmer(exec, cfg.TempDir),
		Attenuator: ffmpeg.NewLoudnessAttenuator(exec, cfg.TempDir),
		Muxer:      exec,
		Engine:     engine,
	}

	return &Pipeline{
		logger:    logger.With().Str("component", "pipeline").Logger(),
		cfg:       cfg,
		exec:      exec,
		processor: scene.NewProcessor(logger, deps, cfg.TempDir),
		merger:    merge.NewMerger(logger, engine, cfg.Merge.ExportBase),
	}, nil
}

// Probe loads a clip's metadata.
func (p *Pipeline) Probe(ctx context.Context, locator string) (*media.Clip, error) {
	return p.exec.Probe(ctx, locator)
}

// ProcessScene probes the input and runs the per-scene pipeline on it.
func (p *Pipeline) ProcessScene(ctx context.Context, input string, opts scene.Options) (*scene.Result, error) {
	clip, err := p.exec.Probe(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", input, err)
	}
	return p.processor.Process(ctx, clip, opts)
}

// MergeScenes probes every input and starts a merge over them. Clips join the
// deliverable in the given order.
func (p *Pipeline) MergeScenes(ctx context.Context, inputs []string, opts merge.Options) (*merge.Handle, error) {
	clips := make([]*media.Clip, 0, len(inputs))
	for _, input := range inputs {
		clip, err := p.exec.Probe(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to probe %s: %w", input, err)
		}
		clips = append(clips, clip)
	}
	return p.merger.Merge(ctx, clips, opts)
}
