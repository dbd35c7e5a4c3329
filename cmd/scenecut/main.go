package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kikiluvv/scenecut/internal/config"
	"github.com/kikiluvv/scenecut/internal/logging"
	"github.com/kikiluvv/scenecut/internal/media"
	"github.com/kikiluvv/scenecut/internal/mediatime"
	"github.com/kikiluvv/scenecut/internal/merge"
	"github.com/kikiluvv/scenecut/internal/pipeline"
	"github.com/kikiluvv/scenecut/internal/render"
	"github.com/kikiluvv/scenecut/internal/scene"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scenecut",
	Short: "scenecut - scene-level video editing toolkit",
	Long:  "Removes dead air from scene clips, fixes their orientation, and merges them into a single deliverable with transitions.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(verbose)

		// .env is optional; absence is not an error
		_ = godotenv.Load()

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./scenecut.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(probeCmd)
}

var (
	processOutput   string
	processNoTrim   bool
	processLoudness bool
	noiseFloor      float64
	minSilence      float64
	padding         float64
)

var processCmd = &cobra.Command{
	Use:   "process [input clip]",
	Short: "Remove dead air from a scene clip and resync its video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		pipe, err := pipeline.New(log.Logger, cfg)
		if err != nil {
			return err
		}

		opts := scene.Options{
			Output: processOutput,
			Format: render.FormatMP4,
		}
		if !processNoTrim {
			trim := scene.TrimConfig{
				NoiseFloorDB:  cfg.Trim.NoiseFloorDB,
				MinSilenceSec: cfg.Trim.MinSilenceSec,
				PaddingSec:    cfg.Trim.PaddingSec,
			}
			if cmd.Flags().Changed("noise-floor") {
				trim.NoiseFloorDB = noiseFloor
			}
			if cmd.Flags().Changed("min-silence") {
				trim.MinSilenceSec = minSilence
			}
			if cmd.Flags().Changed("padding") {
				trim.PaddingSec = padding
			}
			opts.Trim = &trim
		}
		if processLoudness {
			opts.Attenuate = &scene.AttenuateConfig{TargetLoudness: cfg.Audio.TargetLoudness}
		}

		result, err := pipe.ProcessScene(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}

		log.Info().
			Str("output", result.Output).
			Float64("duration", result.TrimmedDuration.Seconds()).
			Int("kept_ranges", len(result.Kept)).
			Msg("scene processed")

		return nil
	},
}

var (
	mergeOutput     string
	transitionName  string
	transitionSec   float64
	mergeAspect     float64
	mergeTimeoutSec float64
)

var mergeCmd = &cobra.Command{
	Use:   "merge [clips...]",
	Short: "Merge scene clips into one deliverable",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		pipe, err := pipeline.New(log.Logger, cfg)
		if err != nil {
			return err
		}

		name := transitionName
		if name == "" {
			name = cfg.Merge.Transition
		}
		kind, err := merge.ParseKind(name)
		if err != nil {
			return err
		}
		dur := cfg.Merge.TransitionSec
		if cmd.Flags().Changed("transition-duration") {
			dur = transitionSec
		}

		opts := merge.Options{
			TargetAspect: mergeAspect,
			Transition: merge.TransitionSpec{
				Kind:     kind,
				Duration: mediatime.FromSeconds(dur, mediatime.DefaultScale),
			},
			Output: mergeOutput,
			Format: render.FormatMP4,
		}
		timeout := cfg.Merge.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout = mergeTimeoutSec
		}
		if timeout > 0 {
			opts.Timeout = time.Duration(timeout * float64(time.Second))
		}

		handle, err := pipe.MergeScenes(cmd.Context(), args, opts)
		if err != nil {
			return err
		}

		for event := range handle.Events() {
			log.Info().
				Str("status", event.Status.String()).
				Int("percent", int(event.Fraction*100)).
				Msg("merge progress")
		}

		result, err := handle.Wait(cmd.Context())
		if err != nil {
			return err
		}

		log.Info().
			Str("output", result.Output).
			Float64("duration", result.Duration.Seconds()).
			Int("clips", len(args)).
			Msg("merge complete")

		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe [input clip]",
	Short: "Show clip metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		pipe, err := pipeline.New(log.Logger, cfg)
		if err != nil {
			return err
		}

		clip, err := pipe.Probe(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		oriented := clip.OrientedSize()
		fmt.Printf("locator:   %s\n", clip.Locator)
		fmt.Printf("duration:  %.3fs\n", clip.Duration.Seconds())
		fmt.Printf("natural:   %s\n", clip.NaturalSize)
		fmt.Printf("oriented:  %s\n", oriented)
		fmt.Printf("fps:       %.2f\n", clip.FPS)
		for _, track := range clip.Tracks {
			fmt.Printf("track %d:   %s (%s), %.3fs\n",
				track.Index, track.Kind, track.Codec, track.Duration.Seconds())
		}
		if !clip.HasTrack(media.KindAudio) {
			fmt.Println("warning:   no audio track")
		}

		return nil
	},
}

func init() {
	processCmd.Flags().StringVarP(&processOutput, "output", "o", "", "output file (default: temp dir)")
	processCmd.Flags().BoolVar(&processNoTrim, "no-trim", false, "skip dead-air removal")
	processCmd.Flags().BoolVar(&processLoudness, "attenuate", false, "rewrite audio at the target loudness")
	processCmd.Flags().Float64Var(&noiseFloor, "noise-floor", 0, "silence threshold in dB (0 = auto)")
	processCmd.Flags().Float64Var(&minSilence, "min-silence", 0.6, "shortest removable silence in seconds")
	processCmd.Flags().Float64Var(&padding, "padding", 0.15, "audio margin kept around cuts in seconds")

	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "output file (required)")
	mergeCmd.Flags().StringVarP(&transitionName, "transition", "t", "", "transition between clips: hardcut, crossfade, fadetoblack")
	mergeCmd.Flags().Float64Var(&transitionSec, "transition-duration", 0.5, "transition duration in seconds")
	mergeCmd.Flags().Float64Var(&mergeAspect, "aspect", 0, "target aspect ratio as width/height (default 16:9)")
	mergeCmd.Flags().Float64Var(&mergeTimeoutSec, "timeout", 0, "render timeout in seconds (0 = none)")
	_ = mergeCmd.MarkFlagRequired("output")
}
