package hedge

import (
	"context"
	"time"

	"github.com/jmylchreest/hedgefactor/internal/logger"
	"github.com/jmylchreest/hedgefactor/pkg/extractor"
	"github.com/jmylchreest/hedgefactor/pkg/llm"
)

// Stage is a pipeline state. Runs only move forward; any failure ends in
// StageFailed.
type Stage int

const (
	StageStart Stage = iota
	StagePrompted
	StageExtracted
	StageValidated
	StageSunk
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StagePrompted:
		return "prompted"
	case StageExtracted:
		return "extracted"
	case StageValidated:
		return "validated"
	case StageSunk:
		return "sunk"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Generator is the model gateway contract. Implementations must be safe for
// concurrent use; llm.Gateway is the production implementation.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error)
}

// UpdateSink receives validated updates.
type UpdateSink interface {
	Update(ctx context.Context, u HedgeFactorUpdate) (*Acknowledgement, error)
}

// Default generation settings per pipeline.
var (
	DefaultUpdateOptions = llm.GenerateOptions{Temperature: 0.7, MaxOutputTokens: 512}
	DefaultReportOptions = llm.GenerateOptions{Temperature: 0.7, MaxOutputTokens: 8192}
)

// Option configures a pipeline.
type Option func(*pipelineConfig)

type pipelineConfig struct {
	opts llm.GenerateOptions
}

// WithGenerateOptions overrides the model call settings.
func WithGenerateOptions(opts llm.GenerateOptions) Option {
	return func(c *pipelineConfig) { c.opts = opts }
}

// run tracks one invocation through the stages.
type run struct {
	pipeline string
	stage    Stage
	started  time.Time
}

func newRun(pipeline string) *run {
	return &run{pipeline: pipeline, stage: StageStart, started: time.Now()}
}

func (r *run) advance(ctx context.Context, to Stage) {
	logger.DebugContext(ctx, "pipeline stage",
		"pipeline", r.pipeline,
		"from", r.stage.String(),
		"to", to.String(),
		"elapsed", time.Since(r.started))
	r.stage = to
}

// fail moves the run to StageFailed and returns err unchanged.
func (r *run) fail(ctx context.Context, err error) error {
	logger.WarnContext(ctx, "pipeline failed",
		"pipeline", r.pipeline,
		"stage", r.stage.String(),
		"error", err)
	r.stage = StageFailed
	return err
}

func generate(ctx context.Context, gen Generator, prompt string, opts llm.GenerateOptions) (string, error) {
	raw, err := gen.Generate(ctx, prompt, opts)
	if err != nil {
		gerr := &GatewayError{Err: err}
		if named, ok := gen.(interface{ Name() string }); ok {
			gerr.Provider = named.Name()
		}
		return "", gerr
	}
	return raw, nil
}

// UpdateResult is the outcome of a successful update run.
type UpdateResult struct {
	Update   HedgeFactorUpdate
	Ack      *Acknowledgement
	Raw      string
	Stage    Stage
	Duration time.Duration
}

// UpdatePipeline extracts one hedge factor update from free text and hands
// it to the sink.
type UpdatePipeline struct {
	gen  Generator
	sink UpdateSink
	cfg  pipelineConfig
}

// NewUpdatePipeline creates an update pipeline.
func NewUpdatePipeline(gen Generator, sink UpdateSink, opts ...Option) *UpdatePipeline {
	cfg := pipelineConfig{opts: DefaultUpdateOptions}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &UpdatePipeline{gen: gen, sink: sink, cfg: cfg}
}

// Run executes prompt, generate, extract, validate and sink once each. The
// first error is returned as is.
func (p *UpdatePipeline) Run(ctx context.Context, text string) (*UpdateResult, error) {
	r := newRun("update")

	prompt, err := BuildUpdatePrompt(text)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	r.advance(ctx, StagePrompted)

	raw, err := generate(ctx, p.gen, prompt, p.cfg.opts)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	payload, err := extractor.Extract(raw, extractor.UpdateTarget)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	r.advance(ctx, StageExtracted)

	update, err := ValidateUpdate(payload)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	r.advance(ctx, StageValidated)

	ack, err := p.sink.Update(ctx, update)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	r.advance(ctx, StageSunk)

	logger.InfoContext(ctx, "hedge factor updated",
		"seller", update.SellerNumber,
		"hedge_factor", update.HedgeFactor.String(),
		"duration", time.Since(r.started))

	return &UpdateResult{
		Update:   update,
		Ack:      ack,
		Raw:      raw,
		Stage:    r.stage,
		Duration: time.Since(r.started),
	}, nil
}

// ReportResult is the outcome of a successful report run.
type ReportResult struct {
	Records  []SellerFactorRecord
	Raw      string
	Stage    Stage
	Duration time.Duration
}

// ReportPipeline maps a batch of seller rates onto the factor scale.
type ReportPipeline struct {
	gen Generator
	cfg pipelineConfig
}

// NewReportPipeline creates a report pipeline.
func NewReportPipeline(gen Generator, opts ...Option) *ReportPipeline {
	cfg := pipelineConfig{opts: DefaultReportOptions}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ReportPipeline{gen: gen, cfg: cfg}
}

// Run maps records to factors. The returned records are in input order.
func (p *ReportPipeline) Run(ctx context.Context, records []SellerRateRecord) (*ReportResult, error) {
	r := newRun("report")

	prompt, err := BuildReportPrompt(records)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	r.advance(ctx, StagePrompted)

	raw, err := generate(ctx, p.gen, prompt, p.cfg.opts)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	payload, err := extractor.Extract(raw, extractor.BatchTarget)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	r.advance(ctx, StageExtracted)

	out, err := ValidateBatch(payload, records)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	r.advance(ctx, StageValidated)

	// The validated list is the sink for this pipeline.
	r.advance(ctx, StageSunk)

	logger.InfoContext(ctx, "factors generated",
		"records", len(out),
		"duration", time.Since(r.started))

	return &ReportResult{
		Records:  out,
		Raw:      raw,
		Stage:    r.stage,
		Duration: time.Since(r.started),
	}, nil
}
