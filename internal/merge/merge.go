// Package merge assembles finalized scene clips into one deliverable,
// building hard-cut, crossfade, or fade-to-black timelines and streaming
// progress while the render engine works.
package merge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kikiluvv/scenecut/internal/mediatime"
)

// Kind selects the transition style between adjacent scenes.
type Kind int

const (
	HardCut Kind = iota
	Crossfade
	FadeToBlack
)

func (k Kind) String() string {
	switch k {
	case HardCut:
		return "hardcut"
	case Crossfade:
		return "crossfade"
	case FadeToBlack:
		return "fadetoblack"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a user-facing transition name to its Kind. Matching is
// case-insensitive.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "hardcut", "cut", "":
		return HardCut, nil
	case "crossfade":
		return Crossfade, nil
	case "fadetoblack", "fade":
		return FadeToBlack, nil
	}
	return 0, fmt.Errorf("unknown transition %q", s)
}

// TransitionSpec is the transition style plus its duration. Duration is
// ignored for hard cuts.
type TransitionSpec struct {
	Kind     Kind
	Duration mediatime.Time
}

// Status is the coarse phase of a merge.
type Status int

const (
	StatusPreparing Status = iota
	StatusMerging
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusPreparing:
		return "preparing"
	case StatusMerging:
		return "merging"
	case StatusCompleted:
		return "completed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Progress is one event on a merge's progress stream. Fraction is
// monotonically non-decreasing within one merge; exactly one completed event
// is emitted, last, iff the merge succeeds, carrying the output locator.
type Progress struct {
	Fraction float64
	Status   Status
	Output   string
}

// ErrNoClips reports a merge invoked with an empty clip list. Raised before
// any file I/O.
var ErrNoClips = errors.New("no clips provided")

// Result is the outcome of a successful merge.
type Result struct {
	Output   string
	Duration mediatime.Time
}
