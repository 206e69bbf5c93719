package report

import (
	"context"

	"github.com/jmylchreest/hedgefactor/pkg/hedge"
)

// DefaultMeanTolerance is how far the factor mean may drift from the target
// before a warning is logged.
const DefaultMeanTolerance = 5.0

// Options configures Build.
type Options struct {
	// ChartsDir receives chart data. Empty skips rendering.
	ChartsDir     string
	MeanTolerance float64
	Renderer      ChartRenderer
}

// Report is a validated batch with its statistics and chart files.
type Report struct {
	Records []hedge.SellerFactorRecord `json:"data" yaml:"data"`
	Summary Summary                    `json:"summary" yaml:"summary"`
	MeanOK  bool                       `json:"mean_within_tolerance" yaml:"mean_within_tolerance"`
	Charts  *Artifacts                 `json:"charts,omitempty" yaml:"charts,omitempty"`
}

// Build summarizes records, checks the mean and renders charts when a
// directory is configured. A zero MeanTolerance means DefaultMeanTolerance.
func Build(ctx context.Context, records []hedge.SellerFactorRecord, opts Options) (*Report, error) {
	summary, err := Summarize(records)
	if err != nil {
		return nil, err
	}

	tolerance := opts.MeanTolerance
	if tolerance <= 0 {
		tolerance = DefaultMeanTolerance
	}

	rep := &Report{
		Records: records,
		Summary: summary,
		MeanOK:  CheckMean(ctx, summary, tolerance),
	}

	if opts.ChartsDir == "" {
		return rep, nil
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = DataRenderer{}
	}
	rep.Charts, err = renderer.Render(ctx, records, opts.ChartsDir)
	if err != nil {
		return nil, err
	}
	return rep, nil
}
