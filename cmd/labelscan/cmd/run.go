package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runCmd runs the pipeline headless until the source ends or a signal arrives.
var runCmd = &cobra.Command{
	Use:   "run [source]",
	Short: "Scan labels from a camera, video or image directory",
	Long: `Run the label pipeline without a viewer. Each frame is searched for labels, every
label is cropped, decoded and appended to the result file. The run ends when the
source runs out or on Ctrl-C.

Examples:
  labelscan run
  labelscan run 1 --mode region-fallback
  labelscan run warehouse.mp4 --sink-format csv --save-crops=false`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(viper.GetViper(), cmd.Flags())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			cfg.Capture.Source = args[0]
		}

		st, err := newStack(cfg, pipeline.NopDisplay{})
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				slog.Error("Failed to release pipeline", "error", err)
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runErr := runUntilDone(ctx, st.ctrl)
		printSummary(cmd.OutOrStdout(), st)
		if !endedNormally(runErr) {
			return runErr
		}
		return nil
	},
}

// runUntilDone starts ctrl and blocks until the run ends by itself or ctx is
// cancelled, in which case the run is stopped and nil is returned.
func runUntilDone(ctx context.Context, ctrl *pipeline.Controller) error {
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- ctrl.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		slog.Info("Received shutdown signal, stopping pipeline")
		_ = ctrl.Stop()
		<-done
		return nil
	}
}

func printSummary(w io.Writer, st *stack) {
	s := st.ctrl.Stats()
	_, _ = fmt.Fprintf(w, "Frames: %d  Labels: %d  Records: %d  Write errors: %d\n",
		s.Frames, s.Detections, s.Records, s.WriteErrors)
	_, _ = fmt.Fprintf(w, "Results: %s\n", st.sink.Path())
}

func init() {
	rootCmd.AddCommand(runCmd)
	addPipelineFlags(runCmd)
}
