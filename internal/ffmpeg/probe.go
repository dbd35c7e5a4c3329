package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/kikiluvv/scenecut/internal/media"
	"github.com/kikiluvv/scenecut/internal/mediatime"
	"github.com/kikiluvv/scenecut/internal/transform"
	"github.com/kikiluvv/scenecut/pkg/util"
)

// Probe loads a clip's metadata: duration, tracks, natural frame size, and
// the container's orientation transform.
func (e *Executor) Probe(ctx context.Context, locator string) (*media.Clip, error) {
	if locator == "" {
		return nil, fmt.Errorf("clip locator is required")
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		locator,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w", locator, err)
	}

	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	clip := &media.Clip{
		Locator:      locator,
		RawTransform: transform.Identity(),
	}

	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		clip.Duration = mediatime.FromSeconds(dur, mediatime.DefaultScale)
	}

	for _, stream := range probe.Streams {
		trackDur := clip.Duration
		if dur, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
			trackDur = mediatime.FromSeconds(dur, mediatime.DefaultScale)
		}

		switch stream.CodecType {
		case "video":
			clip.Tracks = append(clip.Tracks, media.Track{
				Kind:     media.KindVideo,
				Codec:    stream.CodecName,
				Index:    stream.Index,
				Duration: trackDur,
			})
			if clip.NaturalSize.Width == 0 {
				clip.NaturalSize = transform.Size{
					Width:  float64(stream.Width),
					Height: float64(stream.Height),
				}
				clip.RawTransform = transform.RotationDegrees(streamRotation(stream))
				clip.FPS = util.ParseFrameRate(stream.RFrameRate)
			}
		case "audio":
			clip.Tracks = append(clip.Tracks, media.Track{
				Kind:     media.KindAudio,
				Codec:    stream.CodecName,
				Index:    stream.Index,
				Duration: trackDur,
			})
		}
	}

	e.logger.Debug().
		Str("clip", locator).
		Float64("duration", clip.Duration.Seconds()).
		Str("natural_size", clip.NaturalSize.String()).
		Int("tracks", len(clip.Tracks)).
		Msg("probed clip")

	return clip, nil
}

// streamRotation reads the display rotation from stream metadata. Newer
// ffprobe reports it as display-matrix side data, older builds as a rotate
// tag.
func streamRotation(s probeStream) float64 {
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			// side data records the rotation to undo; the raw transform is
			// the rotation to apply
			return -sd.Rotation
		}
	}
	if s.Tags.Rotate != "" {
		if deg, err := strconv.ParseFloat(s.Tags.Rotate, 64); err == nil {
			return deg
		}
	}
	return 0
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	Index        int    `json:"index"`
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Duration     string `json:"duration"`
	RFrameRate   string `json:"r_frame_rate"`
	SideDataList []struct {
		Rotation float64 `json:"rotation"`
	} `json:"side_data_list"`
	Tags struct {
		Rotate string `json:"rotate"`
	} `json:"tags"`
}
