package commands

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/hedgefactor/pkg/hedge"
	"github.com/jmylchreest/hedgefactor/pkg/llm"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENROUTER_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY",
		"AWS_ACCESS_KEY_ID", "AWS_PROFILE", "AWS_REGION",
	} {
		t.Setenv(key, "")
	}
}

func newTestViper(t *testing.T, yamlConfig string) *viper.Viper {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	if yamlConfig != "" {
		v.SetConfigType("yaml")
		if err := v.ReadConfig(strings.NewReader(yamlConfig)); err != nil {
			t.Fatalf("reading test config: %v", err)
		}
	}
	return v
}

func TestSetDefaults(t *testing.T) {
	v := newTestViper(t, "")

	if got := v.GetString("server.addr"); got != ":8000" {
		t.Errorf("server.addr = %q", got)
	}
	if got := v.GetDuration("server.request_timeout"); got != 120*time.Second {
		t.Errorf("server.request_timeout = %v", got)
	}
	if got := v.GetString("sink.endpoint"); got != hedge.DefaultSinkEndpoint {
		t.Errorf("sink.endpoint = %q", got)
	}
	if got := v.GetInt("report.max_tokens"); got != 8192 {
		t.Errorf("report.max_tokens = %d", got)
	}
	if got := v.GetFloat64("report.mean_tolerance"); got != 5 {
		t.Errorf("report.mean_tolerance = %v", got)
	}
}

func TestResolveProvider(t *testing.T) {
	t.Run("explicit provider with per-provider config", func(t *testing.T) {
		clearProviderEnv(t)
		v := newTestViper(t, `
provider: bedrock
providers:
  bedrock:
    model: amazon.nova-pro-v1:0
    region: eu-west-1
`)
		name, cfg, err := resolveProvider(v)
		if err != nil {
			t.Fatalf("resolveProvider() error = %v", err)
		}
		if name != "bedrock" || cfg.Model != "amazon.nova-pro-v1:0" || cfg.Region != "eu-west-1" {
			t.Errorf("got %s %+v", name, cfg)
		}
		if cfg.MaxRetries != 0 {
			t.Errorf("MaxRetries = %d, want 0", cfg.MaxRetries)
		}
	})

	t.Run("top-level keys win", func(t *testing.T) {
		clearProviderEnv(t)
		v := newTestViper(t, `
provider: ollama
model: qwen2.5
base_url: http://gpu:11434
providers:
  ollama:
    model: llama3.2
    base_url: http://localhost:11434
`)
		_, cfg, err := resolveProvider(v)
		if err != nil {
			t.Fatalf("resolveProvider() error = %v", err)
		}
		if cfg.Model != "qwen2.5" || cfg.BaseURL != "http://gpu:11434" {
			t.Errorf("got %+v", cfg)
		}
	})

	t.Run("auto-detect from env", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv("ANTHROPIC_API_KEY", "sk-test")
		name, cfg, err := resolveProvider(newTestViper(t, ""))
		if err != nil {
			t.Fatalf("resolveProvider() error = %v", err)
		}
		if name != "anthropic" || cfg.APIKey != "sk-test" {
			t.Errorf("got %s key=%q", name, cfg.APIKey)
		}
	})

	t.Run("api key from env for explicit provider", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv("GEMINI_API_KEY", "g-key")
		_, cfg, err := resolveProvider(newTestViper(t, "provider: gemini\n"))
		if err != nil {
			t.Fatalf("resolveProvider() error = %v", err)
		}
		if cfg.APIKey != "g-key" {
			t.Errorf("APIKey = %q", cfg.APIKey)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		clearProviderEnv(t)
		_, _, err := resolveProvider(newTestViper(t, "provider: watsonx\n"))
		if err == nil || !strings.Contains(err.Error(), "unknown provider") {
			t.Errorf("expected unknown provider error, got %v", err)
		}
	})
}

func TestGenerateOptions(t *testing.T) {
	v := newTestViper(t, "")
	got := generateOptions(v, "update", hedge.DefaultUpdateOptions)
	if got != hedge.DefaultUpdateOptions {
		t.Errorf("defaults changed: %+v", got)
	}

	v = newTestViper(t, "temperature: 0\nreport:\n  max_tokens: 4000\n")
	got = generateOptions(v, "report", hedge.DefaultReportOptions)
	want := llm.GenerateOptions{Temperature: 0, MaxOutputTokens: 4000}
	if got != want {
		t.Errorf("generateOptions() = %+v, want %+v", got, want)
	}
}

func TestNewGateway_Ollama(t *testing.T) {
	clearProviderEnv(t)
	gw, err := newGateway(newTestViper(t, "provider: ollama\n"))
	if err != nil {
		t.Fatalf("newGateway() error = %v", err)
	}
	if gw.Name() != "ollama" || gw.Model() != llm.GetDefaultModel("ollama") {
		t.Errorf("gateway = %s/%s", gw.Name(), gw.Model())
	}
}

func TestStringFlagOrConfig(t *testing.T) {
	v := newTestViper(t, "report:\n  charts_dir: from-config\n")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("charts-dir", "", "")

	if got := stringFlagOrConfig(cmd, "charts-dir", v, "report.charts_dir"); got != "from-config" {
		t.Errorf("unset flag: got %q, want config value", got)
	}

	if err := cmd.Flags().Set("charts-dir", "from-flag"); err != nil {
		t.Fatal(err)
	}
	if got := stringFlagOrConfig(cmd, "charts-dir", v, "report.charts_dir"); got != "from-flag" {
		t.Errorf("set flag: got %q, want flag value", got)
	}
}
