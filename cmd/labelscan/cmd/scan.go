package cmd

import (
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/labelscan/internal/capture"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// scanCmd replays a directory of still images through the pipeline.
var scanCmd = &cobra.Command{
	Use:   "scan <directory>",
	Short: "Scan a directory of label photos",
	Long: `Feed every PNG, JPEG and BMP file of a directory, in name order, through the
pipeline as fast as possible and stop after the last image.

Examples:
  labelscan scan ./photos
  labelscan scan ./photos --mode frame-barcode --sink-layout barcode --json`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(viper.GetViper(), cmd.Flags())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		src, err := capture.OpenDirectory(args[0])
		if err != nil {
			return err
		}
		cfg.Capture.Source = args[0]
		cfg.Capture.TickInterval = "0s"

		st, err := newStack(cfg, pipeline.NopDisplay{})
		if err != nil {
			_ = src.Close()
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				slog.Error("Failed to release pipeline", "error", err)
			}
		}()
		if err := st.ctrl.SetSource(src); err != nil {
			return err
		}
		slog.Info("Scanning directory", "dir", args[0], "images", src.Len())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		runErr := runUntilDone(ctx, st.ctrl)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(st.ctrl.Stats()); err != nil {
				return err
			}
		} else {
			printSummary(cmd.OutOrStdout(), st)
		}
		if !endedNormally(runErr) {
			return runErr
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addPipelineFlags(scanCmd)
	scanCmd.Flags().Bool("json", false, "print run statistics as JSON")
}
