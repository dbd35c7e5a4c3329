package merge

import (
	"github.com/kikiluvv/scenecut/internal/composition"
	"github.com/kikiluvv/scenecut/internal/media"
	"github.com/kikiluvv/scenecut/internal/mediatime"
	"github.com/kikiluvv/scenecut/internal/transform"
)

// timeline is a fully-built edit-decision-list ready for the render engine.
type timeline struct {
	comp         *composition.Composition
	instructions []composition.Instruction
	duration     mediatime.Time
}

// layerFor places a clip on the render canvas: orientation-corrected, then
// uniformly scaled and centered (letterbox/pillarbox, no distortion).
func layerFor(clip *media.Clip, track composition.TrackID, canvas transform.Size, opacity composition.OpacityRamp) composition.LayerTransform {
	fit := transform.Fit(clip.OrientedSize(), canvas)
	return composition.LayerTransform{
		Track:     track,
		Transform: clip.CorrectedTransform().Concat(fit),
		Opacity:   opacity,
	}
}

func fullRange(clip *media.Clip) mediatime.Range {
	return mediatime.NewRange(mediatime.Time{Scale: mediatime.DefaultScale}, clip.Duration)
}

// buildTimeline constructs the merge composition and instructions for the
// given transition. onAppend is invoked after each clip is placed, in input
// order. Pure aside from the callback: no file I/O.
func buildTimeline(clips []*media.Clip, canvas transform.Size, spec TransitionSpec, onAppend func(i int)) (*timeline, error) {
	if onAppend == nil {
		onAppend = func(int) {}
	}

	kind := spec.Kind
	if kind == Crossfade && len(clips) == 1 {
		// a single clip has no boundary to fade across
		kind = HardCut
	}
	if kind != HardCut && !spec.Duration.IsPositive() {
		return nil, &composition.BuildError{Reason: "transition duration must be positive"}
	}

	switch kind {
	case HardCut:
		return buildSequential(clips, canvas, mediatime.Time{Scale: mediatime.DefaultScale}, onAppend)
	case Crossfade:
		return buildCrossfade(clips, canvas, spec.Duration, onAppend)
	case FadeToBlack:
		return buildSequential(clips, canvas, spec.Duration, onAppend)
	default:
		return nil, &composition.BuildError{Reason: "unknown transition kind"}
	}
}

// buildSequential lays clips end to end on one video track. A positive fade
// duration adds fade-to-black opacity ramps at interior boundaries; clips
// are never shortened, so the total always equals the summed durations.
func buildSequential(clips []*media.Clip, canvas transform.Size, fade mediatime.Time, onAppend func(i int)) (*timeline, error) {
	comp := composition.New()
	video := comp.AddTrack(media.KindVideo)
	audio := audioTrackIfAny(comp, clips)

	var instructions []composition.Instruction
	cursor := mediatime.Time{Scale: mediatime.DefaultScale}
	last := len(clips) - 1

	for i, clip := range clips {
		if err := insertClip(video, audio, clip, cursor); err != nil {
			return nil, err
		}

		fadeIn := mediatime.Time{Scale: mediatime.DefaultScale}
		fadeOut := fadeIn
		if fade.IsPositive() {
			if i > 0 {
				fadeIn = fade
			}
			if i < last {
				fadeOut = fade
			}
		}
		body := clip.Duration.Sub(fadeIn).Sub(fadeOut)
		if body.Value < 0 {
			return nil, &composition.BuildError{Reason: "fade duration exceeds clip duration"}
		}

		at := cursor
		if fadeIn.IsPositive() {
			instructions = append(instructions, composition.Instruction{
				Range:  mediatime.NewRange(at, fadeIn),
				Layers: []composition.LayerTransform{layerFor(clip, video.ID, canvas, composition.FadeIn())},
			})
			at = at.Add(fadeIn)
		}
		if body.IsPositive() {
			instructions = append(instructions, composition.Instruction{
				Range:  mediatime.NewRange(at, body),
				Layers: []composition.LayerTransform{layerFor(clip, video.ID, canvas, composition.Opaque())},
			})
			at = at.Add(body)
		}
		if fadeOut.IsPositive() {
			instructions = append(instructions, composition.Instruction{
				Range:  mediatime.NewRange(at, fadeOut),
				Layers: []composition.LayerTransform{layerFor(clip, video.ID, canvas, composition.FadeOut())},
			})
		}

		cursor = cursor.Add(clip.Duration)
		onAppend(i)
	}

	if err := composition.ValidateInstructions(instructions); err != nil {
		return nil, err
	}
	return &timeline{comp: comp, instructions: instructions, duration: cursor}, nil
}

// buildCrossfade overlaps each clip's final window with its successor's
// first, alternating clips across two tracks so both layers exist during the
// blend. Audio entries overlap identically; the engine cross-mixes them with
// the same linear ramp.
func buildCrossfade(clips []*media.Clip, canvas transform.Size, d mediatime.Time, onAppend func(i int)) (*timeline, error) {
	comp := composition.New()
	videoA := comp.AddTrack(media.KindVideo)
	videoB := comp.AddTrack(media.KindVideo)
	audioA, audioB := audioPairIfAny(comp, clips)

	videoTrack := func(i int) *composition.Track {
		if i%2 == 0 {
			return videoA
		}
		return videoB
	}
	audioTrack := func(i int) *composition.Track {
		if audioA == nil {
			return nil
		}
		if i%2 == 0 {
			return audioA
		}
		return audioB
	}

	var instructions []composition.Instruction
	last := len(clips) - 1
	start := mediatime.Time{Scale: mediatime.DefaultScale}

	for i, clip := range clips {
		overlapIn := i > 0
		overlapOut := i < last

		body := clip.Duration
		if overlapIn {
			body = body.Sub(d)
		}
		if overlapOut {
			body = body.Sub(d)
		}
		if body.Value < 0 {
			return nil, &composition.BuildError{Reason: "crossfade duration exceeds clip duration"}
		}

		if err := insertClip(videoTrack(i), audioTrack(i), clip, start); err != nil {
			return nil, err
		}

		bodyStart := start
		if overlapIn {
			bodyStart = bodyStart.Add(d)
		}
		if body.IsPositive() {
			instructions = append(instructions, composition.Instruction{
				Range:  mediatime.NewRange(bodyStart, body),
				Layers: []composition.LayerTransform{layerFor(clip, videoTrack(i).ID, canvas, composition.Opaque())},
			})
		}

		if overlapOut {
			next := clips[i+1]
			transitionStart := start.Add(clip.Duration).Sub(d)
			instructions = append(instructions, composition.Instruction{
				Range: mediatime.NewRange(transitionStart, d),
				Layers: []composition.LayerTransform{
					layerFor(clip, videoTrack(i).ID, canvas, composition.FadeOut()),
					layerFor(next, videoTrack(i+1).ID, canvas, composition.FadeIn()),
				},
			})
			// next clip begins where the overlap begins
			start = transitionStart
		}

		onAppend(i)
	}

	total := start.Add(clips[last].Duration)

	if err := composition.ValidateInstructions(instructions); err != nil {
		return nil, err
	}
	return &timeline{comp: comp, instructions: instructions, duration: total}, nil
}

// insertClip places a clip's full video range (and audio, when the clip has
// an audio track) at the given composition offset.
func insertClip(video, audio *composition.Track, clip *media.Clip, at mediatime.Time) error {
	if err := video.Insert(composition.Entry{
		Source:      clip,
		SourceRange: fullRange(clip),
		At:          at,
	}); err != nil {
		return err
	}
	if audio != nil && clip.HasTrack(media.KindAudio) {
		if err := audio.Insert(composition.Entry{
			Source:      clip,
			SourceRange: fullRange(clip),
			At:          at,
		}); err != nil {
			return err
		}
	}
	return nil
}

func audioTrackIfAny(comp *composition.Composition, clips []*media.Clip) *composition.Track {
	for _, c := range clips {
		if c.HasTrack(media.KindAudio) {
			return comp.AddTrack(media.KindAudio)
		}
	}
	return nil
}

func audioPairIfAny(comp *composition.Composition, clips []*media.Clip) (*composition.Track, *composition.Track) {
	for _, c := range clips {
		if c.HasTrack(media.KindAudio) {
			return comp.AddTrack(media.KindAudio), comp.AddTrack(media.KindAudio)
		}
	}
	return nil, nil
}
