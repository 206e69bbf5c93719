package commands

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/hedgefactor/internal/logger"
	"github.com/jmylchreest/hedgefactor/internal/output"
)

var updateCmd = &cobra.Command{
	Use:   "update <text>",
	Short: "Extract a hedge factor update from text and post it",
	Long: `Ask the model for a {sellerNumber, hedgeFactor} update described in
free text, validate it and POST it to the update endpoint.

Basis points are converted to decimals: 25bps is 0.0025, 100bps is 0.01.

Examples:
  hedgefactor update "set seller 12345 to 25bps"
  hedgefactor update --sink https://pricing.internal/api/update-hedge-factor \
      "seller 98765 hedge factor 0.01"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)

	flags := updateCmd.Flags()
	flags.String("sink", "", "update endpoint URL (default http://localhost:8000/api/update-hedge-factor)")
	flags.Duration("sink-timeout", 0, "update endpoint timeout (default 30s)")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")

	_ = viper.BindPFlag("sink.endpoint", flags.Lookup("sink"))
	_ = viper.BindPFlag("sink.timeout", flags.Lookup("sink-timeout"))
}

func runUpdate(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	gw, err := newGateway(v)
	if err != nil {
		return err
	}
	pipeline, err := newUpdatePipeline(v, gw)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(ctx, strings.Join(args, " "))
	if err != nil {
		logger.Error("update failed", "error", err)
		return err
	}
	logInfo("Updated seller %s: hedge factor %s (%s)", res.Update.SellerNumber, res.Update.HedgeFactor, res.Duration.Round(time.Millisecond))

	path, _ := cmd.Flags().GetString("output")
	out, closeOut, err := output.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = closeOut() }()

	w, err := output.NewWriter(out, format)
	if err != nil {
		return err
	}
	if err := w.Write(res.Ack); err != nil {
		return err
	}
	return w.Close()
}
