package ffmpeg

import (
	"context"
	"fmt"

	"github.com/kikiluvv/scenecut/internal/media"
	"github.com/kikiluvv/scenecut/internal/scene"
)

// Extract isolates one track of the clip into a standalone container at
// output. Audio is re-encoded to a uniform codec so downstream filters see
// consistent input; video is stream-copied.
func (e *Executor) Extract(ctx context.Context, clip *media.Clip, kind media.TrackKind, output string) (scene.Asset, error) {
	track, ok := clip.Track(kind)
	if !ok {
		return scene.Asset{}, &media.MissingTrackError{Kind: kind, Locator: clip.Locator}
	}

	args := []string{"-i", clip.Locator}
	switch kind {
	case media.KindVideo:
		args = append(args, "-an", "-map", "0:v:0", "-c:v", "copy")
	case media.KindAudio:
		args = append(args, "-vn", "-map", "0:a:0", "-c:a", DefaultAudioCodec)
	default:
		return scene.Asset{}, fmt.Errorf("unsupported track kind %q", kind)
	}
	args = append(args, output)

	e.logger.Debug().
		Str("clip", clip.Locator).
		Str("kind", string(kind)).
		Str("output", output).
		Msg("extracting track")

	if err := e.Run(ctx, RunOptions{Args: args}); err != nil {
		return scene.Asset{}, fmt.Errorf("failed to extract %s track: %w", kind, err)
	}

	dur := track.Duration
	if dur.IsZero() {
		dur = clip.Duration
	}
	return scene.Asset{Locator: output, Duration: dur}, nil
}
