package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/hedgefactor/internal/api"
	"github.com/jmylchreest/hedgefactor/internal/logger"
	"github.com/jmylchreest/hedgefactor/internal/report"
	"github.com/jmylchreest/hedgefactor/pkg/hedge"
	"github.com/jmylchreest/hedgefactor/pkg/llm"
)

func setDefaults(v *viper.Viper) {
	def := api.DefaultConfig()

	v.SetDefault("update.max_tokens", hedge.DefaultUpdateOptions.MaxOutputTokens)
	v.SetDefault("report.max_tokens", hedge.DefaultReportOptions.MaxOutputTokens)
	v.SetDefault("report.mean_tolerance", report.DefaultMeanTolerance)
	v.SetDefault("server.addr", def.Addr)
	v.SetDefault("server.request_timeout", def.RequestTimeout)
	v.SetDefault("server.cors_origins", def.CORSOrigins)
	v.SetDefault("sink.endpoint", hedge.DefaultSinkEndpoint)
	v.SetDefault("sink.timeout", 30*time.Second)
}

// ProviderConfig holds provider-specific settings from the config file,
// under providers.<name>.
type ProviderConfig struct {
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
	Region  string `mapstructure:"region"`
	APIKey  string `mapstructure:"api_key"`
}

// resolveProvider picks the provider and builds its config. Flags and
// top-level keys win over providers.<name>, which wins over the environment.
func resolveProvider(v *viper.Viper) (string, llm.ProviderConfig, error) {
	name := v.GetString("provider")
	apiKey := v.GetString("api_key")
	if name == "" {
		var detected string
		name, detected = llm.DetectProvider()
		logger.Debug("provider auto-detected", "provider", name)
		if apiKey == "" {
			apiKey = detected
		}
	}
	if !llm.IsRegistered(name) {
		return "", llm.ProviderConfig{}, fmt.Errorf("unknown provider %q (available: %v)", name, llm.AvailableProviders())
	}

	providers := make(map[string]ProviderConfig)
	if err := v.UnmarshalKey("providers", &providers); err != nil {
		return "", llm.ProviderConfig{}, fmt.Errorf("reading providers config: %w", err)
	}
	pc := providers[name]

	cfg := llm.DefaultProviderConfig()
	cfg.Model = firstNonEmpty(v.GetString("model"), pc.Model)
	cfg.BaseURL = firstNonEmpty(v.GetString("base_url"), pc.BaseURL)
	cfg.Region = firstNonEmpty(v.GetString("region"), pc.Region)
	cfg.APIKey = firstNonEmpty(apiKey, pc.APIKey, llm.APIKeyFromEnv(name))
	return name, cfg, nil
}

// generateOptions overlays configured sampling settings on def. section is
// "update" or "report".
func generateOptions(v *viper.Viper, section string, def llm.GenerateOptions) llm.GenerateOptions {
	opts := def
	if v.IsSet("temperature") {
		opts.Temperature = v.GetFloat64("temperature")
	}
	if n := v.GetInt(section + ".max_tokens"); n > 0 {
		opts.MaxOutputTokens = n
	}
	return opts
}

// stringFlagOrConfig prefers an explicitly set flag over the config key. Used
// for flags that several commands share a key with.
func stringFlagOrConfig(cmd *cobra.Command, flag string, v *viper.Viper, key string) string {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		return f.Value.String()
	}
	return v.GetString(key)
}

func firstNonEmpty(values ...string) string {
	for _, s := range values {
		if s != "" {
			return s
		}
	}
	return ""
}
