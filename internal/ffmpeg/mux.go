package ffmpeg

import (
	"context"
	"fmt"

	"github.com/kikiluvv/scenecut/internal/scene"
)

// Mux combines a video asset and an audio asset into one container. Both
// streams are copied; -shortest trims the result to the shorter input so a
// drifting pipeline never produces a frozen or silent tail.
func (e *Executor) Mux(ctx context.Context, video, audio scene.Asset, output string) error {
	args := []string{
		"-i", video.Locator,
		"-i", audio.Locator,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c", "copy",
		"-shortest",
		output,
	}

	e.logger.Debug().
		Str("video", video.Locator).
		Str("audio", audio.Locator).
		Str("output", output).
		Msg("muxing streams")

	if err := e.Run(ctx, RunOptions{Args: args}); err != nil {
		return fmt.Errorf("failed to mux %s + %s: %w", video.Locator, audio.Locator, err)
	}
	return nil
}
