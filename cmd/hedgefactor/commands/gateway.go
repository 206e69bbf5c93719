package commands

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/jmylchreest/hedgefactor/internal/logger"
	"github.com/jmylchreest/hedgefactor/pkg/hedge"
	"github.com/jmylchreest/hedgefactor/pkg/llm"
)

// newGateway builds the model gateway from configuration. In debug mode
// every call is logged through an observer.
func newGateway(v *viper.Viper) (*llm.Gateway, error) {
	name, cfg, err := resolveProvider(v)
	if err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(name, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s provider: %w", name, err)
	}
	logger.Debug("provider ready", "provider", provider.Name(), "model", provider.Model())

	var opts []llm.GatewayOption
	if v.GetBool("log.debug") {
		opts = append(opts, llm.WithObserver(llm.NewLogObserver(logger.With("component", "llm"))))
	}
	return llm.NewGateway(provider, opts...)
}

func newSink(v *viper.Viper) (*hedge.HTTPSink, error) {
	return hedge.NewHTTPSink(v.GetString("sink.endpoint"), hedge.WithSinkTimeout(v.GetDuration("sink.timeout")))
}

func newUpdatePipeline(v *viper.Viper, gen hedge.Generator) (*hedge.UpdatePipeline, error) {
	sink, err := newSink(v)
	if err != nil {
		return nil, err
	}
	return hedge.NewUpdatePipeline(gen, sink,
		hedge.WithGenerateOptions(generateOptions(v, "update", hedge.DefaultUpdateOptions))), nil
}

func newReportPipeline(v *viper.Viper, gen hedge.Generator) *hedge.ReportPipeline {
	return hedge.NewReportPipeline(gen,
		hedge.WithGenerateOptions(generateOptions(v, "report", hedge.DefaultReportOptions)))
}
