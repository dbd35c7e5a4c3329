package ffmpeg

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/scenecut/internal/scene"
	"github.com/kikiluvv/scenecut/pkg/util"
)

// LoudnessAttenuator rewrites audio assets at a target integrated loudness
// using ffmpeg's loudnorm filter.
type LoudnessAttenuator struct {
	exec    *Executor
	tempDir string
	logger  zerolog.Logger
}

// NewLoudnessAttenuator creates an attenuator writing its output under
// tempDir.
func NewLoudnessAttenuator(exec *Executor, tempDir string) *LoudnessAttenuator {
	return &LoudnessAttenuator{
		exec:    exec,
		tempDir: tempDir,
		logger:  exec.logger.With().Str("component", "attenuator").Logger(),
	}
}

// Process renders the asset at cfg.TargetLoudness LUFS and reports the
// probed duration of the result. loudnorm is duration-preserving only up to
// resampling slack, so the caller validates the measured value, not the
// input's.
func (a *LoudnessAttenuator) Process(ctx context.Context, in scene.Asset, cfg scene.AttenuateConfig) (scene.Asset, error) {
	output := util.TempName(a.tempDir, "attenuated", ".m4a")

	filter := fmt.Sprintf("loudnorm=I=%f:TP=-1.5:LRA=11", cfg.TargetLoudness)
	args := []string{
		"-i", in.Locator,
		"-af", filter,
		"-c:a", DefaultAudioCodec,
		output,
	}

	a.logger.Debug().
		Str("input", in.Locator).
		Float64("target_loudness", cfg.TargetLoudness).
		Msg("attenuating audio")

	if err := a.exec.Run(ctx, RunOptions{Args: args, TotalDuration: in.Duration.Duration()}); err != nil {
		util.CleanupFiles(output)
		return scene.Asset{}, fmt.Errorf("loudness attenuation failed: %w", err)
	}

	rendered, err := a.exec.Probe(ctx, output)
	if err != nil {
		util.CleanupFiles(output)
		return scene.Asset{}, fmt.Errorf("probing attenuated audio: %w", err)
	}

	return scene.Asset{Locator: output, Duration: rendered.Duration}, nil
}
