// Package scene runs the per-scene audio cleanup pipeline: extract the audio
// track, hand it to the dead-air trimmer and attenuator collaborators,
// resynchronize the video to the kept ranges, and mux the result.
package scene

import (
	"context"

	"github.com/kikiluvv/scenecut/internal/media"
	"github.com/kikiluvv/scenecut/internal/mediatime"
)

// Asset is a standalone intermediate media file produced by one pipeline
// stage and consumed by the next.
type Asset struct {
	Locator  string
	Duration mediatime.Time
}

// TrimConfig tunes the dead-air trimmer collaborator.
type TrimConfig struct {
	// NoiseFloorDB is the level below which audio counts as silence.
	NoiseFloorDB float64
	// MinSilenceSec is the shortest silence eligible for removal, in seconds.
	MinSilenceSec float64
	// PaddingSec keeps a margin of audio on both sides of every kept range.
	PaddingSec float64
}

// AttenuateConfig tunes the attenuator collaborator.
type AttenuateConfig struct {
	// TargetLoudness is the integrated loudness target in LUFS.
	TargetLoudness float64
}

// Trimmer removes dead air from an audio asset. It returns the replacement
// audio plus the source ranges that were retained, sorted and
// non-overlapping.
type Trimmer interface {
	Process(ctx context.Context, in Asset, cfg TrimConfig) (Asset, mediatime.KeptRanges, error)
}

// Attenuator rewrites an audio asset at a target loudness. The contract is
// duration-preserving; the processor validates rather than trusts this.
type Attenuator interface {
	Process(ctx context.Context, in Asset, cfg AttenuateConfig) (Asset, error)
}

// Extractor isolates a single track of a clip into a standalone asset of
// matching duration, written to output.
type Extractor interface {
	Extract(ctx context.Context, clip *media.Clip, kind media.TrackKind, output string) (Asset, error)
}

// Muxer combines a video asset and an audio asset into one container at
// output. The result is trimmed to the shorter of the two inputs, so a
// drifting pipeline never produces a frozen or silent tail.
type Muxer interface {
	Mux(ctx context.Context, video, audio Asset, output string) error
}

// Result is the outcome of processing one scene.
type Result struct {
	// Output locates the finalized scene clip.
	Output string
	// TrimmedDuration is the video duration after dead-air removal, equal to
	// the summed kept-range durations (or the source duration when trimming
	// was disabled).
	TrimmedDuration mediatime.Time
	// Kept lists the source ranges retained by the trimmer. Empty when
	// trimming was disabled.
	Kept mediatime.KeptRanges
}
