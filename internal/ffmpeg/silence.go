package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/scenecut/internal/mediatime"
	"github.com/kikiluvv/scenecut/internal/scene"
	"github.com/kikiluvv/scenecut/pkg/util"
)

// SilenceSegment is a period of detected silence in an audio asset.
type SilenceSegment struct {
	Start    float64
	End      float64
	Duration float64
}

// DetectSilence finds silence segments in an audio file using ffmpeg's
// silencedetect filter.
func (e *Executor) DetectSilence(ctx context.Context, input string, noiseFloorDB, minDuration float64) ([]SilenceSegment, error) {
	e.logger.Debug().
		Str("input", input).
		Float64("noise_floor", noiseFloorDB).
		Float64("min_duration", minDuration).
		Msg("detecting silence")

	output, err := e.runAnalysis(ctx, input,
		fmt.Sprintf("silencedetect=noise=%.6fdB:d=%.6f", noiseFloorDB, minDuration))
	if err != nil {
		return nil, fmt.Errorf("silence detection failed: %w", err)
	}

	return parseSilenceOutput(output), nil
}

// VolumeStats holds volume analysis results.
type VolumeStats struct {
	MeanVolume float64
	MaxVolume  float64
}

// AnalyzeVolume calculates volume statistics for an audio file.
func (e *Executor) AnalyzeVolume(ctx context.Context, input string) (*VolumeStats, error) {
	output, err := e.runAnalysis(ctx, input, "volumedetect")
	if err != nil {
		return nil, fmt.Errorf("volume analysis failed: %w", err)
	}
	return parseVolumeOutput(output), nil
}

// runAnalysis runs an audio filter against the null muxer and returns the
// collected stderr, which is where analysis filters report.
func (e *Executor) runAnalysis(ctx context.Context, input, filter string) (string, error) {
	var buf bytes.Buffer
	var mu sync.Mutex

	opts := RunOptions{
		Args: []string{
			"-i", input,
			"-af", filter,
			"-f", "null",
			"-",
		},
		LogHandler: func(line string) {
			mu.Lock()
			buf.WriteString(line + "\n")
			mu.Unlock()
		},
	}

	err := e.Run(ctx, opts)

	mu.Lock()
	output := buf.String()
	mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// null muxer runs exit non-zero on some builds even when the filter
		// reported fine
		if !strings.Contains(err.Error(), "Conversion failed") &&
			!strings.Contains(err.Error(), "Invalid return value") &&
			!strings.Contains(err.Error(), "Output file is empty") {
			return "", err
		}
	}
	if output == "" {
		return "", fmt.Errorf("analysis produced no output")
	}
	return output, nil
}

func parseSilenceOutput(output string) []SilenceSegment {
	var segments []SilenceSegment
	var currentStart float64

	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "silence_start:") {
			parts := strings.Split(line, "silence_start:")
			if len(parts) == 2 {
				currentStart, _ = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			}
		} else if strings.Contains(line, "silence_end:") {
			parts := strings.Split(line, "silence_end:")
			if len(parts) != 2 {
				continue
			}
			endStr := strings.Fields(strings.TrimSpace(parts[1]))[0]
			end, _ := strconv.ParseFloat(endStr, 64)

			duration := end - currentStart
			if durParts := strings.Split(line, "silence_duration:"); len(durParts) == 2 {
				duration, _ = strconv.ParseFloat(strings.TrimSpace(durParts[1]), 64)
			}

			segments = append(segments, SilenceSegment{
				Start:    currentStart,
				End:      end,
				Duration: duration,
			})
		}
	}

	return segments
}

func parseVolumeOutput(output string) *VolumeStats {
	stats := &VolumeStats{}

	for _, line := range strings.Split(output, "\n") {
		if parts := strings.Split(line, "mean_volume:"); len(parts) == 2 {
			valStr := strings.Fields(strings.TrimSpace(parts[1]))[0]
			stats.MeanVolume, _ = strconv.ParseFloat(valStr, 64)
		} else if parts := strings.Split(line, "max_volume:"); len(parts) == 2 {
			valStr := strings.Fields(strings.TrimSpace(parts[1]))[0]
			stats.MaxVolume, _ = strconv.ParseFloat(valStr, 64)
		}
	}

	return stats
}

// SilenceTrimmer removes dead air from audio assets using silencedetect to
// find the silences and an atrim/concat filtergraph to render the kept
// ranges.
type SilenceTrimmer struct {
	exec    *Executor
	tempDir string
	logger  zerolog.Logger
}

// NewSilenceTrimmer creates a trimmer writing its output under tempDir.
func NewSilenceTrimmer(exec *Executor, tempDir string) *SilenceTrimmer {
	return &SilenceTrimmer{
		exec:    exec,
		tempDir: tempDir,
		logger:  exec.logger.With().Str("component", "trimmer").Logger(),
	}
}

// Process detects silences in the asset and renders a replacement containing
// only the kept ranges. When no silence qualifies for removal the input
// asset is returned unchanged with nil kept ranges.
func (t *SilenceTrimmer) Process(ctx context.Context, in scene.Asset, cfg scene.TrimConfig) (scene.Asset, mediatime.KeptRanges, error) {
	floor := cfg.NoiseFloorDB
	if floor == 0 {
		stats, err := t.exec.AnalyzeVolume(ctx, in.Locator)
		if err != nil {
			return scene.Asset{}, nil, fmt.Errorf("auto noise floor: %w", err)
		}
		floor = autoNoiseFloor(stats)
		t.logger.Debug().
			Float64("mean_volume", stats.MeanVolume).
			Float64("noise_floor", floor).
			Msg("derived noise floor from volume stats")
	}

	silences, err := t.exec.DetectSilence(ctx, in.Locator, floor, cfg.MinSilenceSec)
	if err != nil {
		return scene.Asset{}, nil, err
	}
	if len(silences) == 0 {
		t.logger.Info().Str("input", in.Locator).Msg("no dead air detected")
		return in, nil, nil
	}

	kept := keptFromSilences(in.Duration.Seconds(), silences, cfg.PaddingSec)
	if len(kept) == 0 {
		return scene.Asset{}, nil, fmt.Errorf("trimming would remove the entire asset")
	}
	if len(kept) == 1 && kept[0].Start.IsZero() && kept[0].Duration.ApproxEqual(in.Duration, mediatime.FromSeconds(0.01, mediatime.DefaultScale)) {
		// padding swallowed every silence
		return in, nil, nil
	}

	output := util.TempName(t.tempDir, "trimmed", ".m4a")
	if err := t.render(ctx, in.Locator, kept, output); err != nil {
		util.CleanupFiles(output)
		return scene.Asset{}, nil, fmt.Errorf("render trimmed audio: %w", err)
	}

	t.logger.Info().
		Int("silences", len(silences)).
		Int("kept_ranges", len(kept)).
		Float64("kept_seconds", kept.TotalDuration().Seconds()).
		Msg("dead air removed")

	return scene.Asset{Locator: output, Duration: kept.TotalDuration()}, kept, nil
}

// render concatenates the kept ranges into output via an atrim filtergraph.
func (t *SilenceTrimmer) render(ctx context.Context, input string, kept mediatime.KeptRanges, output string) error {
	var sb strings.Builder
	for i, r := range kept {
		fmt.Fprintf(&sb, "[0:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[a%d];",
			util.FormatSeconds(r.Start.Seconds()),
			util.FormatSeconds(r.End().Seconds()),
			i)
	}
	for i := range kept {
		fmt.Fprintf(&sb, "[a%d]", i)
	}
	fmt.Fprintf(&sb, "concat=n=%d:v=0:a=1[out]", len(kept))

	args := []string{
		"-i", input,
		"-filter_complex", sb.String(),
		"-map", "[out]",
		"-c:a", DefaultAudioCodec,
		output,
	}
	return t.exec.Run(ctx, RunOptions{Args: args, TotalDuration: kept.TotalDuration().Duration()})
}

// autoNoiseFloor picks a silence threshold from measured volume: well below
// the mean so ordinary room tone still counts as sound.
func autoNoiseFloor(stats *VolumeStats) float64 {
	floor := stats.MeanVolume - 10
	if floor > -20 {
		floor = -20
	}
	return floor
}

// keptFromSilences complements the silence list over [0, total], keeping a
// padding margin on both sides of every cut and merging ranges the padding
// causes to touch. Silences touching the clip edges are not padded on the
// edge side, since there is nothing there to breathe into.
func keptFromSilences(total float64, silences []SilenceSegment, padding float64) mediatime.KeptRanges {
	type span struct{ start, end float64 }
	var spans []span

	cursor := 0.0
	for _, s := range silences {
		start := s.Start + padding
		if s.Start <= 0 {
			start = s.Start
		}
		end := s.End - padding
		if s.End >= total {
			end = s.End
		}
		if end <= start {
			// padding swallowed this silence entirely
			continue
		}
		if start > cursor {
			spans = append(spans, span{cursor, start})
		}
		if end > cursor {
			cursor = end
		}
	}
	if cursor < total {
		spans = append(spans, span{cursor, total})
	}

	var kept mediatime.KeptRanges
	for _, sp := range spans {
		if sp.start < 0 {
			sp.start = 0
		}
		if sp.end > total {
			sp.end = total
		}
		if sp.end-sp.start <= 0 {
			continue
		}
		kept = append(kept, mediatime.RangeFromSeconds(sp.start, sp.end-sp.start))
	}
	return kept
}
