// Package ffmpeg backs the pipeline's external collaborators with the
// ffmpeg and ffprobe binaries: track extraction, dead-air detection,
// loudness attenuation, muxing, and the render engine that turns
// edit-decision-lists into deliverable files.
package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/scenecut/pkg/util"
)

// Default encoding settings
const (
	DefaultCRF        = 23
	DefaultPreset     = "medium"
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
)

// RunOptions configures one ffmpeg execution
type RunOptions struct {
	Args []string

	// TotalDuration, when known, lets the executor convert ffmpeg's time
	// reports into a completion fraction.
	TotalDuration time.Duration

	// ProgressHandler receives completion fractions in [0, 1].
	ProgressHandler func(fraction float64)

	LogHandler func(line string)
}

// Executor runs ffmpeg operations with progress streaming
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
}

// New creates an executor, resolving the binaries from PATH when the given
// paths are empty.
func New(logger zerolog.Logger, ffmpegPath, ffprobePath string, threads int) (*Executor, error) {
	var err error
	if ffmpegPath == "" {
		ffmpegPath, err = exec.LookPath("ffmpeg")
		if err != nil {
			return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
		}
	}
	if ffprobePath == "" {
		ffprobePath, err = exec.LookPath("ffprobe")
		if err != nil {
			return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
		}
	}

	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     threads,
	}, nil
}

// Run executes ffmpeg with the given arguments and streams progress
func (e *Executor) Run(ctx context.Context, opts RunOptions) error {
	if len(opts.Args) == 0 {
		return fmt.Errorf("no arguments provided")
	}

	baseArgs := []string{"-y", "-hide_banner", "-loglevel", "info"}
	if e.threads > 0 {
		baseArgs = append(baseArgs, "-threads", fmt.Sprintf("%d", e.threads))
	}
	baseArgs = append(baseArgs, "-progress", "pipe:2")
	args := append(baseArgs, opts.Args...)

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Strs("args", args).
		Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.streamOutput(stderr, opts)
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}

	return nil
}

// streamOutput parses ffmpeg's stderr, forwarding log lines and converting
// time reports to completion fractions.
func (e *Executor) streamOutput(r io.Reader, opts RunOptions) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if opts.LogHandler != nil {
			opts.LogHandler(line)
		}

		if opts.ProgressHandler == nil || opts.TotalDuration <= 0 {
			continue
		}
		if f, ok := parseProgressLine(line, opts.TotalDuration); ok {
			opts.ProgressHandler(f)
		}
	}
}

// parseProgressLine extracts a completion fraction from one -progress line
// (out_time=HH:MM:SS.micros), clamped to [0, 1].
func parseProgressLine(line string, total time.Duration) (float64, bool) {
	value, found := strings.CutPrefix(strings.TrimSpace(line), "out_time=")
	if !found {
		return 0, false
	}
	elapsed, err := util.ParseTimestamp(value)
	if err != nil || elapsed < 0 {
		return 0, false
	}
	f := float64(elapsed) / float64(total)
	if f > 1 {
		f = 1
	}
	return f, true
}
