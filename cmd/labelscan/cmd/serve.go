package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/labelscan/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd runs the pipeline behind the HTTP/WebSocket viewer.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web viewer with pipeline controls",
	Long: `Start an HTTP server that streams annotated frames and controls the pipeline.

The server provides the following endpoints:
  GET  /health     - Health check
  GET  /status     - Pipeline state and counters
  POST /start      - Start scanning
  POST /stop       - Stop scanning
  POST /source     - Select a source ({"source": "0"})
  GET  /frame.jpg  - Latest annotated frame
  GET  /ws         - WebSocket frame stream and commands
  GET  /metrics    - Prometheus metrics

Examples:
  labelscan serve
  labelscan serve --port 3000 --autostart
  labelscan serve --host 0.0.0.0 --source rtsp://camera/stream`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(viper.GetViper(), cmd.Flags()); err != nil {
			return err
		}
		for flag, key := range map[string]string{
			"host":        "server.host",
			"port":        "server.port",
			"cors-origin": "server.cors_origin",
		} {
			if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return err
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		scfg := cfg.ToServerConfig()

		hub := server.NewHub(scfg.JPEGQuality)
		st, err := newStack(cfg, hub)
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				slog.Error("Server cleanup error", "error", err)
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if auto, _ := cmd.Flags().GetBool("autostart"); auto {
			if err := st.ctrl.Start(ctx); err != nil {
				return err
			}
		}

		srv := server.New(scfg, st.ctrl, hub)
		if err := srv.Run(ctx, scfg.Addr()); err != nil {
			return err
		}
		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addPipelineFlags(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Bool("autostart", false, "start scanning immediately")
}
