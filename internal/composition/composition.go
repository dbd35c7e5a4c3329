// Package composition is the in-memory edit-decision-list: source ranges
// placed onto output tracks, plus time-scoped layer instructions for the
// render engine. It owns no decoding; correctness here is what makes the
// rendered deliverable correct.
package composition

import (
	"fmt"

	"github.com/kikiluvv/scenecut/internal/media"
	"github.com/kikiluvv/scenecut/internal/mediatime"
)

// TrackID identifies a composition track within one composition.
type TrackID int

// Entry places a source range at an insertion offset on an output track.
type Entry struct {
	Source      *media.Clip
	SourceRange mediatime.Range
	At          mediatime.Time
}

// End returns the entry's end point in composition time.
func (e Entry) End() mediatime.Time {
	return e.At.Add(e.SourceRange.Duration)
}

// Track is an ordered sequence of entries of one kind. Entries are contiguous
// and non-overlapping in insertion order, except where a transition
// intentionally overlaps two clips.
type Track struct {
	ID      TrackID
	Kind    media.TrackKind
	Entries []Entry
}

// Composition is an ordered set of tracks.
type Composition struct {
	tracks []*Track
}

// New returns an empty composition.
func New() *Composition {
	return &Composition{}
}

// AddTrack appends a new empty track of the given kind.
func (c *Composition) AddTrack(kind media.TrackKind) *Track {
	t := &Track{ID: TrackID(len(c.tracks)), Kind: kind}
	c.tracks = append(c.tracks, t)
	return t
}

// Tracks returns the composition's tracks in order.
func (c *Composition) Tracks() []*Track {
	return c.tracks
}

// TrackByID returns the track with the given ID.
func (c *Composition) TrackByID(id TrackID) (*Track, bool) {
	if int(id) < 0 || int(id) >= len(c.tracks) {
		return nil, false
	}
	return c.tracks[id], true
}

// Duration returns the latest end point across all tracks.
func (c *Composition) Duration() mediatime.Time {
	max := mediatime.Time{Scale: mediatime.DefaultScale}
	for _, t := range c.tracks {
		if d := t.Duration(); d.Cmp(max) > 0 {
			max = d
		}
	}
	return max
}

// Insert places a source range on the track. Insertion offsets must be
// monotonically non-decreasing; an entry may overlap its predecessor (that is
// how transitions are expressed) but may never start before it.
func (t *Track) Insert(e Entry) error {
	if e.Source == nil {
		return &BuildError{Reason: "entry has no source clip"}
	}
	if !e.SourceRange.Duration.IsPositive() {
		return &BuildError{Reason: fmt.Sprintf(
			"entry source range %s has non-positive duration", e.SourceRange)}
	}
	if !e.Source.HasTrack(t.Kind) {
		return &BuildError{
			Reason: "source clip lacks required track",
			Err:    &media.MissingTrackError{Kind: t.Kind, Locator: e.Source.Locator},
		}
	}
	if n := len(t.Entries); n > 0 {
		prev := t.Entries[n-1]
		if e.At.Cmp(prev.At) < 0 {
			return &BuildError{Reason: fmt.Sprintf(
				"entry at %s inserted before predecessor at %s", e.At, prev.At)}
		}
	}
	t.Entries = append(t.Entries, e)
	return nil
}

// Duration returns the track's end point in composition time.
func (t *Track) Duration() mediatime.Time {
	end := mediatime.Time{Scale: mediatime.DefaultScale}
	for _, e := range t.Entries {
		if d := e.End(); d.Cmp(end) > 0 {
			end = d
		}
	}
	return end
}

// BuildError reports an attempt to assemble an invalid composition.
type BuildError struct {
	Reason string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("composition build failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("composition build failed: %s", e.Reason)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}
