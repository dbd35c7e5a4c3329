package ffmpeg

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/kikiluvv/scenecut/internal/composition"
	"github.com/kikiluvv/scenecut/internal/media"
	"github.com/kikiluvv/scenecut/internal/mediatime"
	"github.com/kikiluvv/scenecut/internal/render"
	"github.com/kikiluvv/scenecut/internal/transform"
)

func testClip(locator string, seconds, w, h, rotation float64) *media.Clip {
	dur := mediatime.FromSeconds(seconds, mediatime.DefaultScale)
	return &media.Clip{
		Locator:      locator,
		Duration:     dur,
		NaturalSize:  transform.Size{Width: w, Height: h},
		RawTransform: transform.RotationDegrees(rotation),
		FPS:          30,
		Tracks: []media.Track{
			{Kind: media.KindVideo, Codec: "h264", Index: 0, Duration: dur},
			{Kind: media.KindAudio, Codec: "aac", Index: 1, Duration: dur},
		},
	}
}

func seconds(s float64) mediatime.Time {
	return mediatime.FromSeconds(s, mediatime.DefaultScale)
}

func TestParseSilenceOutput(t *testing.T) {
	output := strings.Join([]string{
		"[silencedetect @ 0x7f8e5c004a40] silence_start: 4.2",
		"frame=  100 fps=0.0 q=-0.0 size=N/A",
		"[silencedetect @ 0x7f8e5c004a40] silence_end: 6.5 | silence_duration: 2.3",
		"[silencedetect @ 0x7f8e5c004a40] silence_start: 9.1",
		"[silencedetect @ 0x7f8e5c004a40] silence_end: 10.0 | silence_duration: 0.9",
	}, "\n")

	segments := parseSilenceOutput(output)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Start != 4.2 || segments[0].End != 6.5 {
		t.Errorf("segment 0: got [%v, %v]", segments[0].Start, segments[0].End)
	}
	if segments[0].Duration != 2.3 {
		t.Errorf("segment 0 duration: got %v", segments[0].Duration)
	}
	if segments[1].Start != 9.1 || segments[1].End != 10.0 {
		t.Errorf("segment 1: got [%v, %v]", segments[1].Start, segments[1].End)
	}
}

func TestParseVolumeOutput(t *testing.T) {
	output := strings.Join([]string{
		"[Parsed_volumedetect_0 @ 0x6000] n_samples: 441000",
		"[Parsed_volumedetect_0 @ 0x6000] mean_volume: -23.4 dB",
		"[Parsed_volumedetect_0 @ 0x6000] max_volume: -5.0 dB",
	}, "\n")

	stats := parseVolumeOutput(output)
	if stats.MeanVolume != -23.4 {
		t.Errorf("mean volume: got %v", stats.MeanVolume)
	}
	if stats.MaxVolume != -5.0 {
		t.Errorf("max volume: got %v", stats.MaxVolume)
	}
}

func TestKeptFromSilences(t *testing.T) {
	silences := []SilenceSegment{{Start: 4, End: 6, Duration: 2}}
	kept := keptFromSilences(10, silences, 0.25)

	if len(kept) != 2 {
		t.Fatalf("expected 2 kept ranges, got %d", len(kept))
	}
	if got := kept[0].End().Seconds(); math.Abs(got-4.25) > 1e-9 {
		t.Errorf("first range end: got %v, want 4.25", got)
	}
	if got := kept[1].Start.Seconds(); math.Abs(got-5.75) > 1e-9 {
		t.Errorf("second range start: got %v, want 5.75", got)
	}
	if got := kept.TotalDuration().Seconds(); math.Abs(got-8.5) > 1e-9 {
		t.Errorf("total kept: got %v, want 8.5", got)
	}
}

func TestKeptFromSilencesPaddingSwallowsShortSilence(t *testing.T) {
	silences := []SilenceSegment{{Start: 4, End: 4.4, Duration: 0.4}}
	kept := keptFromSilences(10, silences, 0.25)

	if len(kept) != 1 {
		t.Fatalf("expected 1 kept range, got %d", len(kept))
	}
	if got := kept[0].Duration.Seconds(); math.Abs(got-10) > 1e-9 {
		t.Errorf("kept duration: got %v, want 10", got)
	}
}

func TestKeptFromSilencesEdgeSilenceUnpadded(t *testing.T) {
	silences := []SilenceSegment{
		{Start: 0, End: 3, Duration: 3},
		{Start: 8, End: 10, Duration: 2},
	}
	kept := keptFromSilences(10, silences, 0.25)

	if len(kept) != 1 {
		t.Fatalf("expected 1 kept range, got %d: %v", len(kept), kept)
	}
	if got := kept[0].Start.Seconds(); math.Abs(got-2.75) > 1e-9 {
		t.Errorf("kept start: got %v, want 2.75", got)
	}
	if got := kept[0].End().Seconds(); math.Abs(got-8.25) > 1e-9 {
		t.Errorf("kept end: got %v, want 8.25", got)
	}
}

func TestParseProgressLine(t *testing.T) {
	f, ok := parseProgressLine("out_time=00:00:05.000000", 10*time.Second)
	if !ok {
		t.Fatal("expected progress line to parse")
	}
	if math.Abs(f-0.5) > 1e-9 {
		t.Errorf("fraction: got %v, want 0.5", f)
	}

	f, ok = parseProgressLine("out_time=00:00:15.000000", 10*time.Second)
	if !ok || f != 1 {
		t.Errorf("overrun should clamp to 1, got %v (ok=%v)", f, ok)
	}

	if _, ok := parseProgressLine("frame=42", 10*time.Second); ok {
		t.Error("non-progress line should not parse")
	}
}

func TestOrientFilters(t *testing.T) {
	cases := []struct {
		name string
		t    transform.Affine
		want string
	}{
		{"identity", transform.Identity(), ""},
		{"rotate90", transform.RotationDegrees(90), "transpose=1"},
		{"rotate180", transform.RotationDegrees(180), "hflip,vflip"},
		{"rotate270", transform.RotationDegrees(270), "transpose=2"},
		{"hflip", transform.Scale(-1, 1), "hflip"},
		{"vflip", transform.Scale(1, -1), "vflip"},
		{"scaled identity", transform.Scale(0.5, 0.5), ""},
		{"scaled rotate90", transform.RotationDegrees(90).Concat(transform.Scale(0.5, 0.5)), "transpose=1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			filters, err := orientFilters(tc.t)
			if err != nil {
				t.Fatalf("orientFilters: %v", err)
			}
			if got := strings.Join(filters, ","); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestOrientFiltersRejectsSkew(t *testing.T) {
	if _, err := orientFilters(transform.Rotation(0.3)); err == nil {
		t.Error("expected error for non-axis-aligned transform")
	}
}

func TestDecomposePortraitRotation(t *testing.T) {
	clip := testClip("a.mp4", 10, 1920, 1080, 90)

	filters, err := decompose(clip.NaturalSize, clip.CorrectedTransform())
	if err != nil {
		t.Fatalf("decompose: %v", err)
	}
	got := strings.Join(filters, ",")
	if got != "transpose=1,scale=1080:1920" {
		t.Errorf("got %q", got)
	}
}

func TestDecomposeLetterboxFit(t *testing.T) {
	clip := testClip("a.mp4", 10, 1920, 1080, 90)
	canvas := transform.Size{Width: 1920, Height: 1080}
	full := clip.CorrectedTransform().Concat(transform.Fit(clip.OrientedSize(), canvas))

	filters, err := decompose(clip.NaturalSize, full)
	if err != nil {
		t.Fatalf("decompose: %v", err)
	}
	got := strings.Join(filters, ",")
	if !strings.Contains(got, "transpose=1") {
		t.Errorf("missing orientation step in %q", got)
	}
	if !strings.Contains(got, "scale=608:1080") {
		t.Errorf("missing fitted scale in %q", got)
	}
	if !strings.Contains(got, "pad=1920:1080:656:0") {
		t.Errorf("missing centering pad in %q", got)
	}
}

func hardCutRequest(t *testing.T, output string) render.Request {
	t.Helper()

	clipA := testClip("a.mp4", 10, 1920, 1080, 0)
	clipB := testClip("b.mp4", 8, 1920, 1080, 0)

	comp := composition.New()
	video := comp.AddTrack(media.KindVideo)
	audio := comp.AddTrack(media.KindAudio)

	for _, track := range []*composition.Track{video, audio} {
		if err := track.Insert(composition.Entry{
			Source:      clipA,
			SourceRange: mediatime.NewRange(seconds(0), seconds(10)),
			At:          seconds(0),
		}); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if err := track.Insert(composition.Entry{
			Source:      clipB,
			SourceRange: mediatime.NewRange(seconds(0), seconds(8)),
			At:          seconds(10),
		}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	instructions := []composition.Instruction{
		{
			Range: mediatime.NewRange(seconds(0), seconds(10)),
			Layers: []composition.LayerTransform{
				{Track: video.ID, Transform: transform.Identity(), Opacity: composition.Opaque()},
			},
		},
		{
			Range: mediatime.NewRange(seconds(10), seconds(8)),
			Layers: []composition.LayerTransform{
				{Track: video.ID, Transform: transform.Identity(), Opacity: composition.Opaque()},
			},
		},
	}

	return render.Request{
		Composition:  comp,
		Instructions: instructions,
		Output:       output,
		Format:       render.FormatMP4,
	}
}

func TestCompileSequential(t *testing.T) {
	plan, err := compile(hardCutRequest(t, "out.mp4"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if len(plan.inputs) != 2 {
		t.Fatalf("expected 2 inputs, got %d: %v", len(plan.inputs), plan.inputs)
	}
	if plan.inputs[0] != "a.mp4" || plan.inputs[1] != "b.mp4" {
		t.Errorf("input order: %v", plan.inputs)
	}
	if !strings.Contains(plan.filtergraph, "concat=n=2:v=1:a=0[vout]") {
		t.Errorf("missing video concat in %q", plan.filtergraph)
	}
	if !strings.Contains(plan.filtergraph, "concat=n=2:v=0:a=1[aout]") {
		t.Errorf("missing audio concat in %q", plan.filtergraph)
	}
	if plan.duration != 18*time.Second {
		t.Errorf("duration: got %v, want 18s", plan.duration)
	}
}

func TestCompileAudioGapFilledWithSilence(t *testing.T) {
	clipA := testClip("a.mp4", 10, 1920, 1080, 0)
	clipB := testClip("b.mp4", 8, 1920, 1080, 0)
	clipC := testClip("c.mp4", 6, 1920, 1080, 0)

	comp := composition.New()
	video := comp.AddTrack(media.KindVideo)
	audio := comp.AddTrack(media.KindAudio)

	at := 0.0
	for _, c := range []*media.Clip{clipA, clipB, clipC} {
		d := c.Duration.Seconds()
		if err := video.Insert(composition.Entry{
			Source:      c,
			SourceRange: mediatime.NewRange(seconds(0), seconds(d)),
			At:          seconds(at),
		}); err != nil {
			t.Fatalf("insert video: %v", err)
		}
		at += d
	}

	// the middle clip contributes no audio, leaving a hole at [10, 18)
	for _, e := range []struct {
		clip *media.Clip
		at   float64
	}{{clipA, 0}, {clipC, 18}} {
		if err := audio.Insert(composition.Entry{
			Source:      e.clip,
			SourceRange: mediatime.NewRange(seconds(0), e.clip.Duration),
			At:          seconds(e.at),
		}); err != nil {
			t.Fatalf("insert audio: %v", err)
		}
	}

	starts := []float64{0, 10, 18}
	durs := []float64{10, 8, 6}
	var instructions []composition.Instruction
	for i := range starts {
		instructions = append(instructions, composition.Instruction{
			Range: mediatime.NewRange(seconds(starts[i]), seconds(durs[i])),
			Layers: []composition.LayerTransform{
				{Track: video.ID, Transform: transform.Identity(), Opacity: composition.Opaque()},
			},
		})
	}

	plan, err := compile(render.Request{
		Composition:  comp,
		Instructions: instructions,
		Output:       "out.mp4",
		Format:       render.FormatMP4,
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if !strings.Contains(plan.filtergraph, "anullsrc=channel_layout=stereo:sample_rate=44100,atrim=end=8.000000") {
		t.Errorf("missing 8s silence fill in %q", plan.filtergraph)
	}
	if !strings.Contains(plan.filtergraph, "concat=n=3:v=0:a=1[aout]") {
		t.Errorf("silence segment not concatenated in %q", plan.filtergraph)
	}
}

func TestCompileCrossfade(t *testing.T) {
	clipA := testClip("a.mp4", 10, 1920, 1080, 0)
	clipB := testClip("b.mp4", 8, 1920, 1080, 0)

	comp := composition.New()
	videoA := comp.AddTrack(media.KindVideo)
	videoB := comp.AddTrack(media.KindVideo)
	audioA := comp.AddTrack(media.KindAudio)
	audioB := comp.AddTrack(media.KindAudio)

	insert := func(track *composition.Track, clip *media.Clip, dur, at float64) {
		t.Helper()
		if err := track.Insert(composition.Entry{
			Source:      clip,
			SourceRange: mediatime.NewRange(seconds(0), seconds(dur)),
			At:          seconds(at),
		}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	insert(videoA, clipA, 10, 0)
	insert(audioA, clipA, 10, 0)
	insert(videoB, clipB, 8, 9.5)
	insert(audioB, clipB, 8, 9.5)

	instructions := []composition.Instruction{
		{
			Range: mediatime.NewRange(seconds(0), seconds(9.5)),
			Layers: []composition.LayerTransform{
				{Track: videoA.ID, Transform: transform.Identity(), Opacity: composition.Opaque()},
			},
		},
		{
			Range: mediatime.NewRange(seconds(9.5), seconds(0.5)),
			Layers: []composition.LayerTransform{
				{Track: videoA.ID, Transform: transform.Identity(), Opacity: composition.FadeOut()},
				{Track: videoB.ID, Transform: transform.Identity(), Opacity: composition.FadeIn()},
			},
		},
		{
			Range: mediatime.NewRange(seconds(10), seconds(7.5)),
			Layers: []composition.LayerTransform{
				{Track: videoB.ID, Transform: transform.Identity(), Opacity: composition.Opaque()},
			},
		},
	}

	plan, err := compile(render.Request{
		Composition:  comp,
		Instructions: instructions,
		Output:       "out.mp4",
		Format:       render.FormatMP4,
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if len(plan.inputs) != 2 {
		t.Fatalf("expected 2 inputs, got %v", plan.inputs)
	}
	if !strings.Contains(plan.filtergraph, "xfade=transition=fade:duration=0.500000:offset=0") {
		t.Errorf("missing xfade in %q", plan.filtergraph)
	}
	if !strings.Contains(plan.filtergraph, "acrossfade=d=0.500000") {
		t.Errorf("missing acrossfade in %q", plan.filtergraph)
	}
	if !strings.Contains(plan.filtergraph, "concat=n=3:v=1:a=0[vout]") {
		t.Errorf("missing video concat in %q", plan.filtergraph)
	}
	if plan.duration != 17500*time.Millisecond {
		t.Errorf("duration: got %v, want 17.5s", plan.duration)
	}
}

func TestCompileFadeRamp(t *testing.T) {
	clip := testClip("a.mp4", 10, 1920, 1080, 0)

	comp := composition.New()
	video := comp.AddTrack(media.KindVideo)
	if err := video.Insert(composition.Entry{
		Source:      clip,
		SourceRange: mediatime.NewRange(seconds(0), seconds(10)),
		At:          seconds(0),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	instructions := []composition.Instruction{
		{
			Range: mediatime.NewRange(seconds(0), seconds(1)),
			Layers: []composition.LayerTransform{
				{Track: video.ID, Transform: transform.Identity(), Opacity: composition.FadeIn()},
			},
		},
		{
			Range: mediatime.NewRange(seconds(1), seconds(9)),
			Layers: []composition.LayerTransform{
				{Track: video.ID, Transform: transform.Identity(), Opacity: composition.Opaque()},
			},
		},
	}

	plan, err := compile(render.Request{
		Composition:  comp,
		Instructions: instructions,
		Output:       "out.mp4",
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(plan.filtergraph, "fade=t=in:st=0:d=1.000000") {
		t.Errorf("missing fade in %q", plan.filtergraph)
	}
}

func TestSubmitRejectsBadRequests(t *testing.T) {
	engine := NewEngine(&Executor{})
	ctx := context.Background()

	if _, err := engine.Submit(ctx, render.Request{}); err == nil {
		t.Error("expected error for empty request")
	}

	req := hardCutRequest(t, "out.mp4")
	req.Output = ""
	if _, err := engine.Submit(ctx, req); err == nil {
		t.Error("expected error for missing output")
	}

	req = hardCutRequest(t, "out.mp4")
	req.Instructions = nil
	if _, err := engine.Submit(ctx, req); err == nil {
		t.Error("expected error for missing instructions")
	}

	req = hardCutRequest(t, "out.mp4")
	req.Instructions[1].Range.Start = seconds(5)
	if _, err := engine.Submit(ctx, req); err == nil {
		t.Error("expected error for overlapping instructions")
	}
}
