package commands

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/hedgefactor/internal/api"
	"github.com/jmylchreest/hedgefactor/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the hedge factor API.

Endpoints:
  GET  /                          service status
  GET  /health                    liveness probe
  POST /api/update-hedge-factor   accept a validated update
  POST /api/chat                  extract an update from {"input": "..."}
  POST /api/report                map {"sellers": [...]} (or the built-in feed)

When no model provider can be created the server still starts and the
model-backed endpoints answer 503.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("addr", ":8000", "listen address")
	flags.Duration("request-timeout", 0, "per-request pipeline timeout (default 2m)")
	flags.StringSlice("cors-origin", nil, "allowed CORS origins (default *)")
	flags.String("charts-dir", "", "write report chart data to this directory")

	_ = viper.BindPFlag("server.addr", flags.Lookup("addr"))
	_ = viper.BindPFlag("server.request_timeout", flags.Lookup("request-timeout"))
	_ = viper.BindPFlag("server.cors_origins", flags.Lookup("cors-origin"))
}

func runServe(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := api.Config{
		Addr:           v.GetString("server.addr"),
		RequestTimeout: v.GetDuration("server.request_timeout"),
		CORSOrigins:    v.GetStringSlice("server.cors_origins"),
		ChartsDir:      stringFlagOrConfig(cmd, "charts-dir", v, "report.charts_dir"),
		MeanTolerance:  v.GetFloat64("report.mean_tolerance"),
		AccessLog:      io.Discard,
	}
	if v.GetBool("log.debug") {
		cfg.AccessLog = os.Stderr
	}

	var (
		update api.UpdateRunner
		rep    api.ReportRunner
	)
	gw, err := newGateway(v)
	if err != nil {
		logger.Warn("model gateway unavailable, serving without agent", "error", err)
	} else {
		up, err := newUpdatePipeline(v, gw)
		if err != nil {
			return err
		}
		update = up
		rep = newReportPipeline(v, gw)
		logger.Info("agent loaded", "provider", gw.Name(), "model", gw.Model())
	}

	return api.NewServer(cfg, update, rep).Run(ctx)
}
