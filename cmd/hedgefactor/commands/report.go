package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/hedgefactor/internal/logger"
	"github.com/jmylchreest/hedgefactor/internal/output"
	"github.com/jmylchreest/hedgefactor/internal/report"
	"github.com/jmylchreest/hedgefactor/internal/sellers"
	"github.com/jmylchreest/hedgefactor/pkg/hedge"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Map seller rates to hedge factors",
	Long: `Ask the model to map seller rates (0-1) onto the 15-55 factor scale and
validate the answer: every seller present once, anchors exact
(1.0=15, 0.88=28, 0.80=35, 0.74=40.5, 0.72=42, 0.0=55) and factors never
rising as the rate rises.

The seller feed is a JSON or YAML list of {"Id", "rt"} records, optionally
wrapped in {"sellers": [...]}. Without --sellers the built-in feed is used.

Examples:
  hedgefactor report -o factors.json
  hedgefactor report --sellers feed.yaml --format yaml --charts-dir charts`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	flags := reportCmd.Flags()
	flags.String("sellers", "", "seller feed file (.json, .yaml); default: built-in feed")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")
	flags.String("charts-dir", "", "write chart data to this directory")
	flags.Float64("mean-tolerance", 0, "warn when the factor mean is further than this from 35 (default 5)")

	_ = viper.BindPFlag("report.mean_tolerance", flags.Lookup("mean-tolerance"))
}

func runReport(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	records, err := loadSellers(cmd)
	if err != nil {
		return err
	}
	logger.Debug("sellers loaded", "count", len(records))

	gw, err := newGateway(v)
	if err != nil {
		return err
	}

	res, err := newReportPipeline(v, gw).Run(ctx, records)
	if err != nil {
		logger.Error("report failed", "error", err)
		return err
	}

	rep, err := report.Build(ctx, res.Records, report.Options{
		ChartsDir:     stringFlagOrConfig(cmd, "charts-dir", v, "report.charts_dir"),
		MeanTolerance: v.GetFloat64("report.mean_tolerance"),
	})
	if err != nil {
		return err
	}

	s := rep.Summary
	logInfo("Mapped %d sellers in %s", s.Count, res.Duration.Round(time.Millisecond))
	logInfo("  mean %.2f  std %.2f  median %.2f  range %.1f-%.1f  cv %.1f%%",
		s.Mean, s.StdDev, s.Median, s.Min, s.Max, s.CV)
	if rep.Charts != nil {
		logInfo("  charts: %s, %s", rep.Charts.Distribution, rep.Charts.StdDev)
	}

	path, _ := cmd.Flags().GetString("output")
	out, closeOut, err := output.Create(path)
	if err != nil {
		return err
	}
	if err := output.WriteList(out, format, rep.Records); err != nil {
		_ = closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return err
	}

	if path != "" && path != "-" {
		if info, err := os.Stat(path); err == nil {
			logInfo("Wrote %s (%s)", path, humanize.Bytes(uint64(info.Size())))
		}
	}
	return nil
}

func loadSellers(cmd *cobra.Command) ([]hedge.SellerRateRecord, error) {
	path, _ := cmd.Flags().GetString("sellers")
	if path == "" {
		return sellers.Default(), nil
	}
	return sellers.FromFile(path)
}
