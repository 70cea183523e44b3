// Command fitscrub inspects, cleans, and re-encodes FIT activity files, and
// can serve the upload UI over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/lucasjlepore/fitscrub/export"
	"github.com/lucasjlepore/fitscrub/fitproc"
	"github.com/lucasjlepore/fitscrub/webui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:           "fitscrub",
		Short:         "FIT activity file scrubber",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogging(verbose)
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newExportCmd())
	return cmd
}

func setupLogging(verbose bool) {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	log.DefaultLogger = log.Logger{
		Level:  level,
		Writer: &log.ConsoleWriter{ColorOutput: true},
	}
}

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload and processing web UI",
		RunE: func(_ *cobra.Command, _ []string) error {
			srv := &http.Server{
				Addr:    addr,
				Handler: webui.NewServer().Router(),
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Msg("listening")
				errCh <- srv.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				log.Info().Str("signal", sig.String()).Msg("shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":3000", "listen address")
	return cmd
}

func newProcessCmd() *cobra.Command {
	var (
		output      string
		removeSpeed bool
		smoothSpeed bool
		jsonSummary bool
	)

	cmd := &cobra.Command{
		Use:   "process <input.fit>",
		Short: "Preprocess a FIT file and write the rewritten copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			opts := fitproc.Options{
				RemoveSpeedFields: removeSpeed,
				SmoothSpeed:       smoothSpeed,
			}
			processed, err := fitproc.Process(data, opts)
			if err != nil {
				return err
			}

			if output != "" {
				if err := os.WriteFile(output, processed.ProcessedBytes, 0o644); err != nil {
					return err
				}
				log.Info().
					Str("path", output).
					Int("bytes", len(processed.ProcessedBytes)).
					Msg("processed file written")
			}

			if jsonSummary {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(processed.Summary)
			}
			printSummary(processed)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "path for the rewritten FIT file")
	cmd.Flags().BoolVar(&removeSpeed, "remove-speed", false, "strip speed fields from record messages")
	cmd.Flags().BoolVar(&smoothSpeed, "smooth-speed", false, "smooth speeds and rebuild the distance series")
	cmd.Flags().BoolVar(&jsonSummary, "json", false, "print the workout summary as JSON")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export <input.fit>",
		Short: "Flatten record messages into a parquet or CSV table",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			parsed, err := fitproc.Parse(data)
			if err != nil {
				return err
			}

			samples := export.BuildSamples(parsed.Records)
			if len(samples) == 0 {
				return fmt.Errorf("no record messages found in %s", args[0])
			}

			out, err := export.Marshal(samples, strings.ToLower(format))
			if err != nil {
				return err
			}

			if output == "" {
				output = strings.TrimSuffix(args[0], ".fit") + "." + strings.ToLower(format)
			}
			if err := os.WriteFile(output, out, 0o644); err != nil {
				return err
			}
			log.Info().
				Str("path", output).
				Int("samples", len(samples)).
				Msg("export written")
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (defaults next to the input)")
	cmd.Flags().StringVar(&format, "format", "parquet", "output format: parquet or csv")
	return cmd
}

func printSummary(processed *fitproc.Processed) {
	w := os.Stdout
	fmt.Fprintf(w, "records: %d\n", len(processed.Records))

	s := processed.Summary
	printOptional(w, "duration_seconds", s.DurationSeconds)
	printOptional(w, "distance_meters", s.DistanceMeters)
	printOptional(w, "speed_min", s.SpeedMin)
	printOptional(w, "speed_mean", s.SpeedMean)
	printOptional(w, "speed_max", s.SpeedMax)
	printOptional(w, "heart_rate_min", s.HeartRateMin)
	printOptional(w, "heart_rate_mean", s.HeartRateMean)
	printOptional(w, "heart_rate_max", s.HeartRateMax)
	if s.WorkoutType != nil {
		fmt.Fprintf(w, "workout_type: %s\n", *s.WorkoutType)
	}
}

func printOptional(w *os.File, name string, v *float64) {
	if v == nil {
		return
	}
	fmt.Fprintf(w, "%s: %g\n", name, *v)
}
