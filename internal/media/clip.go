// Package media models source clips and their tracks.
package media

import (
	"errors"
	"fmt"

	"github.com/kikiluvv/scenecut/internal/mediatime"
	"github.com/kikiluvv/scenecut/internal/transform"
)

// TrackKind identifies a single-kind timed sample stream within a clip.
type TrackKind string

const (
	KindVideo TrackKind = "video"
	KindAudio TrackKind = "audio"
)

// Track describes one stream inside a clip's container.
type Track struct {
	Kind     TrackKind
	Codec    string
	Index    int
	Duration mediatime.Time
}

// Clip is a source media container with one or more tracks.
type Clip struct {
	// Locator is the clip's file path or URI.
	Locator string

	Duration mediatime.Time

	// NaturalSize is the undecoded frame size, before orientation.
	NaturalSize transform.Size

	// RawTransform is the container's orientation transform as recorded,
	// uncorrected. Apply transform.Corrected before compositing.
	RawTransform transform.Affine

	FPS    float64
	Tracks []Track
}

// Track returns the first track of the given kind.
func (c *Clip) Track(kind TrackKind) (Track, bool) {
	for _, t := range c.Tracks {
		if t.Kind == kind {
			return t, true
		}
	}
	return Track{}, false
}

// HasTrack reports whether the clip contains a track of the given kind.
func (c *Clip) HasTrack(kind TrackKind) bool {
	_, ok := c.Track(kind)
	return ok
}

// OrientedSize returns the clip's rendered frame size after orientation.
func (c *Clip) OrientedSize() transform.Size {
	return transform.OrientedSize(c.NaturalSize, c.RawTransform)
}

// CorrectedTransform returns the clip's orientation transform shifted so all
// rendered samples have non-negative coordinates.
func (c *Clip) CorrectedTransform() transform.Affine {
	return transform.Corrected(c.NaturalSize, c.RawTransform)
}

// MissingTrackError reports that a clip lacks a track of the requested kind.
type MissingTrackError struct {
	Kind    TrackKind
	Locator string
}

func (e *MissingTrackError) Error() string {
	return fmt.Sprintf("clip %s has no %s track", e.Locator, e.Kind)
}

// IsMissingTrack reports whether err is a MissingTrackError, optionally for a
// specific kind (empty kind matches any).
func IsMissingTrack(err error, kind TrackKind) bool {
	var mte *MissingTrackError
	if !errors.As(err, &mte) {
		return false
	}
	return kind == "" || mte.Kind == kind
}
