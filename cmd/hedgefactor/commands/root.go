// Package commands implements the CLI commands for hedgefactor.
package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/hedgefactor/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "hedgefactor",
	Short: "LLM-backed hedge factor extraction and validation",
	Long: `Hedgefactor turns hedge factor requests into validated updates.

It extracts {sellerNumber, hedgeFactor} updates from free text and posts
them to an update endpoint, and maps batches of seller rates onto the
15-55 factor scale, checking every answer against the anchor table.

Examples:
  # Run the HTTP API
  hedgefactor serve

  # Extract and post a single update
  hedgefactor update "set seller 12345 to 25bps"

  # Map the built-in seller feed and write chart data
  hedgefactor report --charts-dir charts -o factors.json

  # Use local Ollama
  hedgefactor report -p ollama -m llama3.2 --sellers sellers.yaml`,
	SilenceUsage:      true,
	PersistentPreRunE: initLogging,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.hedgefactor.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.Bool("log-json", false, "log as JSON")
	flags.String("log-file", "", "also write logs to this rotating file")

	// LLM settings
	flags.StringP("provider", "p", "", "LLM provider: bedrock, anthropic, openai, openrouter, gemini, ollama (auto-detects from env vars)")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.StringP("api-key", "k", "", "API key (or use env var)")
	flags.String("base-url", "", "custom API base URL")
	flags.String("region", "", "AWS region for bedrock")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("log.debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("log.quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("log.json", flags.Lookup("log-json"))
	_ = viper.BindPFlag("log.file", flags.Lookup("log-file"))
	_ = viper.BindPFlag("provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("model", flags.Lookup("model"))
	_ = viper.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = viper.BindPFlag("base_url", flags.Lookup("base-url"))
	_ = viper.BindPFlag("region", flags.Lookup("region"))

	setDefaults(viper.GetViper())
}

func initConfig() {
	// .env values never override variables already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: reading .env: %v\n", err)
	}

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".hedgefactor")
		viper.SetConfigType("yaml")
	}

	// Environment variables, e.g. HEDGEFACTOR_SINK_ENDPOINT
	viper.SetEnvPrefix("HEDGEFACTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

func initLogging(*cobra.Command, []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("log.debug"),
		Quiet: viper.GetBool("log.quiet"),
		JSON:  viper.GetBool("log.json"),
		File:  viper.GetString("log.file"),
	})
	if f := viper.ConfigFileUsed(); f != "" {
		logger.Debug("config loaded", "file", f)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	defer func() { _ = logger.Close() }()
	return rootCmd.Execute()
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("log.quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
