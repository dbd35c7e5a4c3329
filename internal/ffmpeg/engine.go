package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/scenecut/internal/composition"
	"github.com/kikiluvv/scenecut/internal/media"
	"github.com/kikiluvv/scenecut/internal/mediatime"
	"github.com/kikiluvv/scenecut/internal/render"
	"github.com/kikiluvv/scenecut/internal/transform"
	"github.com/kikiluvv/scenecut/pkg/util"
)

// DefaultFPS is the frame rate segments are normalized to before concat.
const DefaultFPS = 30

// Engine compiles edit-decision-lists into ffmpeg filtergraphs and encodes
// them. It implements render.Engine.
type Engine struct {
	exec   *Executor
	logger zerolog.Logger
}

// NewEngine creates an engine backed by exec.
func NewEngine(exec *Executor) *Engine {
	return &Engine{
		exec:   exec,
		logger: exec.logger.With().Str("component", "engine").Logger(),
	}
}

// Submit compiles the request and starts the encode. Compile failures are
// reported synchronously; encode failures surface through the returned job.
func (e *Engine) Submit(ctx context.Context, req render.Request) (*render.Job, error) {
	if req.Composition == nil {
		return nil, fmt.Errorf("no composition provided")
	}
	if req.Output == "" {
		return nil, fmt.Errorf("output locator is required")
	}
	if len(req.Instructions) == 0 {
		return nil, fmt.Errorf("no instructions provided")
	}
	if err := composition.ValidateInstructions(req.Instructions); err != nil {
		return nil, err
	}

	plan, err := compile(req)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	job := render.NewJob(cancel)

	e.logger.Info().
		Int("inputs", len(plan.inputs)).
		Int("instructions", len(req.Instructions)).
		Float64("duration", plan.duration.Seconds()).
		Str("output", req.Output).
		Msg("starting encode")
	e.logger.Debug().Str("filtergraph", plan.filtergraph).Msg("compiled edit")

	go func() {
		err := e.exec.Run(runCtx, RunOptions{
			Args:            plan.args(req.Output),
			TotalDuration:   plan.duration,
			ProgressHandler: job.Report,
			LogHandler: func(line string) {
				e.logger.Debug().Str("ffmpeg", line).Msg("encode output")
			},
		})
		if err != nil {
			util.CleanupFiles(req.Output)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				job.Finish(err)
				return
			}
			job.Finish(&render.EngineError{Cause: err})
			return
		}
		e.logger.Info().Str("output", req.Output).Msg("encode completed")
		job.Finish(nil)
	}()

	return job, nil
}

// plan is a compiled request: the inputs, the filtergraph, and the expected
// output duration.
type plan struct {
	inputs      []string
	filtergraph string
	videoOut    string
	audioOut    string
	duration    time.Duration
}

func (p *plan) args(output string) []string {
	var args []string
	for _, in := range p.inputs {
		args = append(args, "-i", in)
	}
	args = append(args,
		"-filter_complex", p.filtergraph,
		"-map", "["+p.videoOut+"]",
	)
	if p.audioOut != "" {
		args = append(args, "-map", "["+p.audioOut+"]", "-c:a", DefaultAudioCodec)
	} else {
		args = append(args, "-an")
	}
	args = append(args,
		"-c:v", DefaultVideoCodec,
		"-crf", fmt.Sprintf("%d", DefaultCRF),
		"-preset", DefaultPreset,
		output,
	)
	return args
}

// compile translates the composition and instruction list into a plan. Video
// is assembled instruction by instruction: each window becomes one normalized
// segment (two blended for transitions), concatenated in order. Audio entries
// are concatenated, or chained through acrossfade where the tracks overlap.
func compile(req render.Request) (*plan, error) {
	b := &builder{
		comp:       req.Composition,
		inputIndex: make(map[string]int),
	}

	if err := b.buildVideo(req.Instructions); err != nil {
		return nil, err
	}
	if err := b.buildAudio(); err != nil {
		return nil, err
	}

	last := req.Instructions[len(req.Instructions)-1]
	return &plan{
		inputs:      b.inputs,
		filtergraph: strings.Join(b.filters, ";"),
		videoOut:    b.videoOut,
		audioOut:    b.audioOut,
		duration:    last.Range.End().Duration(),
	}, nil
}

type builder struct {
	comp       *composition.Composition
	inputIndex map[string]int
	inputs     []string
	filters    []string
	labels     int

	videoOut string
	audioOut string
}

func (b *builder) input(locator string) int {
	if idx, ok := b.inputIndex[locator]; ok {
		return idx
	}
	idx := len(b.inputs)
	b.inputIndex[locator] = idx
	b.inputs = append(b.inputs, locator)
	return idx
}

func (b *builder) label(prefix string) string {
	b.labels++
	return fmt.Sprintf("%s%d", prefix, b.labels)
}

func (b *builder) buildVideo(instructions []composition.Instruction) error {
	var parts []string
	for i, in := range instructions {
		switch len(in.Layers) {
		case 1:
			labels, err := b.layerSegments(in.Range, in.Layers[0])
			if err != nil {
				return fmt.Errorf("instruction %d: %w", i, err)
			}
			parts = append(parts, labels...)
		case 2:
			label, err := b.blendSegment(in.Range, in.Layers[0], in.Layers[1])
			if err != nil {
				return fmt.Errorf("instruction %d: %w", i, err)
			}
			parts = append(parts, label)
		default:
			return fmt.Errorf("instruction %d has %d layers", i, len(in.Layers))
		}
	}

	if len(parts) == 1 {
		b.videoOut = parts[0]
		return nil
	}
	out := "vout"
	var sb strings.Builder
	for _, p := range parts {
		fmt.Fprintf(&sb, "[%s]", p)
	}
	fmt.Fprintf(&sb, "concat=n=%d:v=1:a=0[%s]", len(parts), out)
	b.filters = append(b.filters, sb.String())
	b.videoOut = out
	return nil
}

// layerSegments emits one normalized segment per track entry intersecting the
// window. A fade ramp is only expressible on a window backed by a single
// entry.
func (b *builder) layerSegments(window mediatime.Range, layer composition.LayerTransform) ([]string, error) {
	segs, err := b.resolve(window, layer.Track)
	if err != nil {
		return nil, err
	}
	if !layer.Opacity.IsConstant() && len(segs) > 1 {
		return nil, fmt.Errorf("opacity ramp spans %d entries", len(segs))
	}

	var labels []string
	for _, s := range segs {
		fade := ""
		if !layer.Opacity.IsConstant() {
			fade = fadeFilter(layer.Opacity, s.rng.Duration.Seconds(), false)
		}
		label, err := b.segment(s, layer.Transform, fade)
		if err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, nil
}

// blendSegment renders a transition window: the outgoing and incoming layers
// are each normalized, then crossfaded over the full window.
func (b *builder) blendSegment(window mediatime.Range, out, in composition.LayerTransform) (string, error) {
	outSegs, err := b.resolve(window, out.Track)
	if err != nil {
		return "", err
	}
	inSegs, err := b.resolve(window, in.Track)
	if err != nil {
		return "", err
	}
	if len(outSegs) != 1 || len(inSegs) != 1 {
		return "", fmt.Errorf("transition window not backed by exactly one entry per layer")
	}

	outLabel, err := b.segment(outSegs[0], out.Transform, "")
	if err != nil {
		return "", err
	}
	inLabel, err := b.segment(inSegs[0], in.Transform, "")
	if err != nil {
		return "", err
	}

	label := b.label("vx")
	b.filters = append(b.filters, fmt.Sprintf(
		"[%s][%s]xfade=transition=fade:duration=%s:offset=0[%s]",
		outLabel, inLabel, util.FormatSeconds(window.Duration.Seconds()), label))
	return label, nil
}

// segmentSource is one source subrange feeding a window.
type segmentSource struct {
	locator string
	natural transform.Size
	rng     mediatime.Range
}

// resolve maps a composition-time window onto the source subranges of the
// given track's entries.
func (b *builder) resolve(window mediatime.Range, id composition.TrackID) ([]segmentSource, error) {
	track, ok := b.comp.TrackByID(id)
	if !ok {
		return nil, fmt.Errorf("unknown track %d", id)
	}

	var segs []segmentSource
	for _, entry := range track.Entries {
		start := mediatime.Max(window.Start, entry.At)
		end := mediatime.Min(window.End(), entry.End())
		if end.Cmp(start) <= 0 {
			continue
		}
		srcStart := entry.SourceRange.Start.Add(start.Sub(entry.At))
		segs = append(segs, segmentSource{
			locator: entry.Source.Locator,
			natural: entry.Source.NaturalSize,
			rng:     mediatime.NewRange(srcStart, end.Sub(start)),
		})
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("window %s not covered by track %d", window, id)
	}
	return segs, nil
}

// segment emits one normalized video chain: trim the source subrange, apply
// the layer transform as orientation plus scale plus pad, and level frame
// properties so segments concatenate cleanly.
func (b *builder) segment(s segmentSource, t transform.Affine, fade string) (string, error) {
	idx := b.input(s.locator)

	geo, err := decompose(s.natural, t)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS",
		idx,
		util.FormatSeconds(s.rng.Start.Seconds()),
		util.FormatSeconds(s.rng.End().Seconds()))
	for _, f := range geo {
		sb.WriteString("," + f)
	}
	if fade != "" {
		sb.WriteString("," + fade)
	}
	fmt.Fprintf(&sb, ",setsar=1,fps=%d,format=yuv420p", DefaultFPS)

	label := b.label("vs")
	fmt.Fprintf(&sb, "[%s]", label)
	b.filters = append(b.filters, sb.String())
	return label, nil
}

func (b *builder) buildAudio() error {
	var entries []composition.Entry
	for _, track := range b.comp.Tracks() {
		if track.Kind != media.KindAudio {
			continue
		}
		entries = append(entries, track.Entries...)
	}
	if len(entries) == 0 {
		return nil
	}
	sortEntriesByAt(entries)

	var labels []string
	for _, entry := range entries {
		idx := b.input(entry.Source.Locator)
		label := b.label("as")
		b.filters = append(b.filters, fmt.Sprintf(
			"[%d:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[%s]",
			idx,
			util.FormatSeconds(entry.SourceRange.Start.Seconds()),
			util.FormatSeconds(entry.SourceRange.End().Seconds()),
			label))
		labels = append(labels, label)
	}

	overlapping := false
	for i := 1; i < len(entries); i++ {
		if entries[i].At.Cmp(entries[i-1].End()) < 0 {
			overlapping = true
			break
		}
	}

	if !overlapping {
		// not every clip carries audio, so sequential entries can leave
		// holes in the timeline; fill them with silence so later entries
		// stay aligned with their video
		parts := make([]string, 0, 2*len(labels))
		if entries[0].At.IsPositive() {
			parts = append(parts, b.silence(entries[0].At))
		}
		for i, l := range labels {
			if i > 0 {
				gap := entries[i].At.Sub(entries[i-1].End())
				if gap.IsPositive() {
					parts = append(parts, b.silence(gap))
				}
			}
			parts = append(parts, l)
		}
		if len(parts) == 1 {
			b.audioOut = parts[0]
			return nil
		}
		out := "aout"
		var sb strings.Builder
		for _, l := range parts {
			fmt.Fprintf(&sb, "[%s]", l)
		}
		fmt.Fprintf(&sb, "concat=n=%d:v=0:a=1[%s]", len(parts), out)
		b.filters = append(b.filters, sb.String())
		b.audioOut = out
		return nil
	}

	// overlapping entries chain through acrossfade, pair by pair
	cur := labels[0]
	for i := 1; i < len(entries); i++ {
		d := entries[i-1].End().Sub(entries[i].At)
		if !d.IsPositive() {
			return fmt.Errorf("audio entries mix overlapping and sequential placement")
		}
		next := b.label("ax")
		b.filters = append(b.filters, fmt.Sprintf(
			"[%s][%s]acrossfade=d=%s[%s]",
			cur, labels[i], util.FormatSeconds(d.Seconds()), next))
		cur = next
	}
	b.audioOut = cur
	return nil
}

// silence emits a silent source spanning d, used to keep concatenated audio
// entries at their timeline offsets.
func (b *builder) silence(d mediatime.Time) string {
	label := b.label("sil")
	b.filters = append(b.filters, fmt.Sprintf(
		"anullsrc=channel_layout=stereo:sample_rate=44100,atrim=end=%s,asetpts=PTS-STARTPTS[%s]",
		util.FormatSeconds(d.Seconds()), label))
	return label
}

func sortEntriesByAt(entries []composition.Entry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].At.Cmp(entries[j-1].At) < 0; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// fadeFilter maps an opacity ramp onto ffmpeg's fade filter in segment-local
// time.
func fadeFilter(r composition.OpacityRamp, duration float64, alpha bool) string {
	kind := "in"
	if r.From > r.To {
		kind = "out"
	}
	f := fmt.Sprintf("fade=t=%s:st=0:d=%s", kind, util.FormatSeconds(duration))
	if alpha {
		f += ":alpha=1"
	}
	return f
}

// decompose expresses an affine layer transform as ffmpeg filters: an
// orientation step (transpose or flips), a uniform scale, and padding that
// places the content on the canvas. Only axis-aligned transforms are
// renderable. The canvas is recovered from the transform itself: centered
// fits place the content symmetrically, so the canvas spans from the origin
// to max plus min of the transformed bounding box.
func decompose(natural transform.Size, t transform.Affine) ([]string, error) {
	minX, minY, maxX, maxY := bounds(natural, t)
	scaledW, scaledH := maxX-minX, maxY-minY

	orient, err := orientFilters(t)
	if err != nil {
		return nil, err
	}

	cw, ch := evenPx(maxX+minX), evenPx(maxY+minY)
	sw, sh := evenPx(scaledW), evenPx(scaledH)

	filters := append([]string{}, orient...)
	filters = append(filters, fmt.Sprintf("scale=%d:%d", sw, sh))
	if cw != sw || ch != sh {
		filters = append(filters, fmt.Sprintf(
			"pad=%d:%d:%d:%d", cw, ch, int(math.Round(minX)), int(math.Round(minY))))
	}
	return filters, nil
}

func bounds(natural transform.Size, t transform.Affine) (minX, minY, maxX, maxY float64) {
	corners := [4][2]float64{
		{0, 0},
		{natural.Width, 0},
		{0, natural.Height},
		{natural.Width, natural.Height},
	}
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		x, y := t.Apply(c[0], c[1])
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}
	return minX, minY, maxX, maxY
}

// orientFilters maps the transform's linear part onto transpose and flip
// filters. The linear part must be an axis-aligned rotation or mirror times a
// uniform scale.
func orientFilters(t transform.Affine) ([]string, error) {
	s := math.Hypot(t.A, t.B)
	if s == 0 {
		s = math.Hypot(t.C, t.D)
	}
	if s == 0 {
		return nil, fmt.Errorf("degenerate transform %+v", t)
	}

	a, b := axis(t.A/s), axis(t.B/s)
	c, d := axis(t.C/s), axis(t.D/s)

	switch [4]int{a, b, c, d} {
	case [4]int{1, 0, 0, 1}:
		return nil, nil
	case [4]int{-1, 0, 0, -1}:
		return []string{"hflip", "vflip"}, nil
	case [4]int{0, 1, -1, 0}:
		return []string{"transpose=1"}, nil
	case [4]int{0, -1, 1, 0}:
		return []string{"transpose=2"}, nil
	case [4]int{-1, 0, 0, 1}:
		return []string{"hflip"}, nil
	case [4]int{1, 0, 0, -1}:
		return []string{"vflip"}, nil
	case [4]int{0, 1, 1, 0}:
		return []string{"transpose=3"}, nil
	case [4]int{0, -1, -1, 0}:
		return []string{"transpose=0"}, nil
	}
	return nil, fmt.Errorf("transform %+v is not axis-aligned", t)
}

// axis snaps a normalized component to -1, 0, or 1, or returns a sentinel
// when it is none of them.
func axis(v float64) int {
	const tolerance = 1e-6
	switch {
	case math.Abs(v) < tolerance:
		return 0
	case math.Abs(v-1) < tolerance:
		return 1
	case math.Abs(v+1) < tolerance:
		return -1
	}
	return 99
}

func evenPx(v float64) int {
	px := int(math.Round(v))
	if px%2 != 0 {
		px++
	}
	if px < 2 {
		px = 2
	}
	return px
}
