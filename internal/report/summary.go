// Package report summarizes validated factor batches and writes chart data
// for external plotting tools.
package report

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/jmylchreest/hedgefactor/internal/logger"
	"github.com/jmylchreest/hedgefactor/pkg/hedge"
)

// ErrNoData is returned when there is nothing to summarize.
var ErrNoData = errors.New("report: no records")

// varianceEpsilon is the spread below which a trend line is not fitted.
const varianceEpsilon = 1e-10

// Trend is the least-squares line rate = Slope*factor + Intercept.
type Trend struct {
	Slope     float64 `json:"slope" yaml:"slope"`
	Intercept float64 `json:"intercept" yaml:"intercept"`
}

// Summary holds factor statistics for a batch. StdDev is the population
// standard deviation; CV is StdDev/Mean in percent.
type Summary struct {
	Count  int     `json:"count" yaml:"count"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	Median float64 `json:"median" yaml:"median"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Range  float64 `json:"range" yaml:"range"`
	CV     float64 `json:"cv_percent" yaml:"cv_percent"`

	// Trend is nil when rates or factors have no spread.
	Trend *Trend `json:"trend,omitempty" yaml:"trend,omitempty"`

	Within1Sigma int `json:"within_1_sigma" yaml:"within_1_sigma"`
	Within2Sigma int `json:"within_2_sigma" yaml:"within_2_sigma"`
	Within3Sigma int `json:"within_3_sigma" yaml:"within_3_sigma"`
}

// Summarize computes factor statistics for records.
func Summarize(records []hedge.SellerFactorRecord) (Summary, error) {
	if len(records) == 0 {
		return Summary{}, ErrNoData
	}

	factors := make([]float64, len(records))
	rates := make([]float64, len(records))
	for i, r := range records {
		factors[i] = r.Factor.InexactFloat64()
		rates[i] = r.Rate.InexactFloat64()
	}

	mean := meanOf(factors)
	std := stdDevOf(factors, mean)

	sorted := append([]float64(nil), factors...)
	sort.Float64s(sorted)

	s := Summary{
		Count:  len(factors),
		Mean:   mean,
		StdDev: std,
		Median: medianOf(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}
	s.Range = s.Max - s.Min
	if mean != 0 {
		s.CV = std / mean * 100
	}

	for _, f := range factors {
		d := math.Abs(f - mean)
		if d <= std {
			s.Within1Sigma++
		}
		if d <= 2*std {
			s.Within2Sigma++
		}
		if d <= 3*std {
			s.Within3Sigma++
		}
	}

	s.Trend = fitTrend(factors, rates)
	return s, nil
}

// MeanDeviation returns how far the batch mean is from the target mean.
func (s Summary) MeanDeviation() float64 {
	return s.Mean - hedge.TargetMeanFactor.InexactFloat64()
}

// CheckMean logs a warning when the mean is further than tolerance from the
// target. It reports whether the mean is within tolerance.
func CheckMean(ctx context.Context, s Summary, tolerance float64) bool {
	dev := s.MeanDeviation()
	if math.Abs(dev) <= tolerance {
		return true
	}
	logger.WarnContext(ctx, "factor mean is off target",
		"mean", s.Mean,
		"target", hedge.TargetMeanFactor.String(),
		"deviation", dev,
		"tolerance", tolerance)
	return false
}

func fitTrend(x, y []float64) *Trend {
	if len(x) < 2 {
		return nil
	}
	mx, my := meanOf(x), meanOf(y)
	if stdDevOf(x, mx) <= varianceEpsilon || stdDevOf(y, my) <= varianceEpsilon {
		return nil
	}

	var cov, varX float64
	for i := range x {
		dx := x[i] - mx
		cov += dx * (y[i] - my)
		varX += dx * dx
	}
	slope := cov / varX
	return &Trend{Slope: slope, Intercept: my - slope*mx}
}

func meanOf(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func stdDevOf(v []float64, mean float64) float64 {
	var ss float64
	for _, x := range v {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(v)))
}

// medianOf expects sorted input.
func medianOf(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
