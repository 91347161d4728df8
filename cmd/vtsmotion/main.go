package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vtubelink/vtsmotion-go/pkg/vtsmotion"
)

var (
	verbose  bool
	endpoint string
	model    string
	mood     string
	withMic  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vtsmotion",
		Short: "Avatar motion and lip-sync engine CLI",
		Long:  "A command-line interface for the VTS motion engine library",
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "WebSocket endpoint of the avatar host")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Model to load before animating")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(lipsyncCmd())
	rootCmd.AddCommand(paramsCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		vtsmotion.GetGlobalLogger().WithError(err).Fatal("CLI execution failed")
	}
}

func buildConfig() *vtsmotion.Config {
	config := vtsmotion.NewConfig()
	if endpoint != "" {
		config.WsEndpoint = endpoint
	}
	if model != "" {
		config.ModelName = model
	}
	if verbose {
		config.DebugWebsocket = true
	}
	return config
}

func buildLogger() *vtsmotion.MotionLogger {
	logConfig := vtsmotion.DefaultLogConfig()
	if verbose {
		logConfig.Level = vtsmotion.DebugLevel
	}
	return vtsmotion.NewMotionLogger(logConfig)
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the idle animation loop",
		Long:  "Connect to the avatar host and animate the avatar until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := buildConfig()
			if issues := config.Validate(); len(issues) > 0 {
				for _, issue := range issues {
					fmt.Printf("  ✗ %s\n", issue)
				}
				return fmt.Errorf("configuration invalid")
			}

			logger := buildLogger()
			engine := vtsmotion.NewEngine(config, logger)

			ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
			err := engine.Start(ctx)
			cancel()
			if err != nil {
				return err
			}
			defer engine.Stop()

			if mood != "" {
				engine.SetMood(mood, 0.8)
			}

			var mic *vtsmotion.MicMonitor
			if withMic {
				mic = vtsmotion.NewMicMonitor(nil, logger)
				engine.SetListening(true)
				err := mic.Start(func(level float64) {
					if engine.Animator().Mode() == vtsmotion.ModeListening {
						engine.Animator().SetAxisTarget(vtsmotion.AxisMouthOpen, level)
					}
				})
				if err != nil {
					logger.WithError(err).Warn("Mic monitor unavailable, continuing without it")
					engine.SetListening(false)
					mic = nil
				}
			}
			if mic != nil {
				defer mic.Stop()
			}

			fmt.Println("Engine running, press Ctrl+C to stop")

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

			statusTicker := time.NewTicker(10 * time.Second)
			defer statusTicker.Stop()

			for {
				select {
				case <-sig:
					fmt.Println("\nShutting down...")
					return nil
				case <-statusTicker.C:
					st := engine.Status()
					fmt.Printf("state=%s mode=%s params=%d mood=%s sent=%d dropped=%d restarts=%d\n",
						st.State, st.Mode, st.ParameterCount, st.Mood, st.SentUpdates, st.DroppedUpdates, st.LoopRestarts)
				}
			}
		},
	}

	cmd.Flags().StringVarP(&mood, "mood", "m", "", "Initial mood label")
	cmd.Flags().BoolVar(&withMic, "mic", false, "Drive the mouth from the microphone while listening")
	return cmd
}

func lipsyncCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "lipsync [wav-file]",
		Short: "Play a WAV file as lip-sync",
		Long:  "Extract a mouth envelope from a WAV file and play it against the avatar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			samples, rate, err := vtsmotion.DecodeWAV(data)
			if err != nil {
				return err
			}
			duration := time.Duration(float64(len(samples)) / float64(rate) * float64(time.Second))
			fmt.Printf("Loaded %s: %d samples at %d Hz (%.1fs)\n", args[0], len(samples), rate, duration.Seconds())

			if dryRun {
				extractor := vtsmotion.NewExtractor(vtsmotion.DefaultExtractorConfig())
				frames := extractor.Extract(samples, rate)
				var peak float64
				openFrames := 0
				for _, f := range frames {
					if f.Mouth > peak {
						peak = f.Mouth
					}
					if f.Mouth > 0 {
						openFrames++
					}
				}
				fmt.Printf("Envelope: %d frames, peak %.2f, open %.0f%%\n",
					len(frames), peak, 100*float64(openFrames)/float64(len(frames)))
				return nil
			}

			config := buildConfig()
			engine := vtsmotion.NewEngine(config, buildLogger())

			ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
			err = engine.Start(ctx)
			cancel()
			if err != nil {
				return err
			}
			defer engine.Stop()

			if mood != "" {
				engine.SetMood(mood, 0.8)
			}

			fmt.Println("Speaking...")
			if err := engine.StartSpeakingWAV(data); err != nil {
				return err
			}
			time.Sleep(duration + 500*time.Millisecond)
			engine.StopSpeaking()
			fmt.Println("Done")
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only analyze the envelope, do not connect")
	cmd.Flags().StringVarP(&mood, "mood", "m", "", "Mood label while speaking")
	return cmd
}

func paramsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Show the parameter mapping for the loaded model",
		Long:  "Connect, authenticate and print the logical-to-host parameter mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := buildConfig()
			engine := vtsmotion.NewEngine(config, buildLogger())

			ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
			err := engine.Start(ctx)
			cancel()
			if err != nil {
				return err
			}
			defer engine.Stop()

			catalog := engine.Catalog()
			fmt.Printf("Model: %s (%d axes mapped)\n\n", catalog.ModelName(), catalog.Count())
			for _, axis := range vtsmotion.AllAxes {
				d, ok := catalog.Resolve(axis)
				if !ok {
					fmt.Printf("  %-16s -> (unmapped, updates dropped)\n", axis)
					continue
				}
				note := ""
				if d.Fallback {
					note = " (assumed)"
				}
				fmt.Printf("  %-16s -> %-20s [%.1f .. %.1f]%s\n", axis, d.HostName, d.Min, d.Max, note)
			}
			return nil
		},
	}

	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		Long:  "Display current configuration settings and validation issues",
		Run: func(cmd *cobra.Command, args []string) {
			config := buildConfig()
			config.PrintConfig()

			issues := config.Validate()
			if len(issues) == 0 {
				fmt.Println("\n✓ Configuration valid")
				return
			}
			fmt.Println("\nConfiguration issues:")
			for _, issue := range issues {
				fmt.Printf("  ✗ %s\n", issue)
			}
		},
	}

	return cmd
}
