package report

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/hedgefactor/internal/logger"
	"github.com/jmylchreest/hedgefactor/internal/output"
	"github.com/jmylchreest/hedgefactor/pkg/hedge"
)

// Chart data file names.
const (
	DistributionFile = "rate_factor_distribution.json"
	StdDevFile       = "standard_deviation_chart.json"
)

// maxBins caps the histogram bin count.
const maxBins = 30

// Artifacts lists the files a renderer produced.
type Artifacts struct {
	Distribution string `json:"distribution" yaml:"distribution"`
	StdDev       string `json:"standard_deviation" yaml:"standard_deviation"`
}

// ChartRenderer turns a validated batch into chart output under dir.
type ChartRenderer interface {
	Render(ctx context.Context, records []hedge.SellerFactorRecord, dir string) (*Artifacts, error)
}

// DataRenderer writes chart series and statistics as JSON so any plotting
// tool can draw them.
type DataRenderer struct{}

// Point is one seller on the distribution chart.
type Point struct {
	ID     string  `json:"id"`
	Factor float64 `json:"factor"`
	Rate   float64 `json:"rate"`
	Label  bool    `json:"label"`
}

// Axis is a padded plotting range.
type Axis struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Distribution is the factor (x) against rate (y) scatter.
type Distribution struct {
	Title  string  `json:"title"`
	XLabel string  `json:"x_label"`
	YLabel string  `json:"y_label"`
	XAxis  Axis    `json:"x_axis"`
	YAxis  Axis    `json:"y_axis"`
	Points []Point `json:"points"`
	Trend  *Trend  `json:"trend,omitempty"`
}

// Band is a mean ± k·σ interval.
type Band struct {
	Sigma int     `json:"sigma"`
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
}

// Bin is one histogram bucket. Zone is "1σ", "2σ", "3σ" or "beyond" for the
// bin center.
type Bin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
	Zone  string  `json:"zone"`
}

// StdDevChart is the factor histogram with σ bands.
type StdDevChart struct {
	Title     string  `json:"title"`
	Stats     Summary `json:"stats"`
	Bands     []Band  `json:"bands"`
	Histogram []Bin   `json:"histogram"`
}

// Render writes both chart files into dir, creating it if needed.
func (DataRenderer) Render(ctx context.Context, records []hedge.SellerFactorRecord, dir string) (*Artifacts, error) {
	summary, err := Summarize(records)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create charts directory: %w", err)
	}

	arts := &Artifacts{
		Distribution: filepath.Join(dir, DistributionFile),
		StdDev:       filepath.Join(dir, StdDevFile),
	}
	if err := writeJSON(ctx, arts.Distribution, BuildDistribution(records, summary)); err != nil {
		return nil, err
	}
	if err := writeJSON(ctx, arts.StdDev, BuildStdDevChart(records, summary)); err != nil {
		return nil, err
	}
	return arts, nil
}

// BuildDistribution lays out the scatter data. Every tenth point is
// labelled, or all of them for small batches.
func BuildDistribution(records []hedge.SellerFactorRecord, s Summary) Distribution {
	d := Distribution{
		Title:  "Seller Factor vs Rate Distribution",
		XLabel: "Factor",
		YLabel: "Rate (rt)",
		Points: make([]Point, len(records)),
		Trend:  s.Trend,
	}

	minRate, maxRate := math.Inf(1), math.Inf(-1)
	for i, r := range records {
		rate := r.Rate.InexactFloat64()
		d.Points[i] = Point{
			ID:     r.ID,
			Factor: r.Factor.InexactFloat64(),
			Rate:   rate,
			Label:  i%10 == 0 || len(records) < 20,
		}
		minRate = math.Min(minRate, rate)
		maxRate = math.Max(maxRate, rate)
	}

	d.XAxis = padded(s.Min, s.Max, 2.0)
	d.YAxis = padded(minRate, maxRate, 0.1)
	return d
}

// padded widens [lo, hi] by 5% of its span, or by fallback when the span is
// empty.
func padded(lo, hi, fallback float64) Axis {
	pad := 0.05 * (hi - lo)
	if hi-lo < varianceEpsilon {
		pad = fallback
	}
	return Axis{Min: lo - pad, Max: hi + pad}
}

// BuildStdDevChart lays out the histogram and σ bands.
func BuildStdDevChart(records []hedge.SellerFactorRecord, s Summary) StdDevChart {
	c := StdDevChart{
		Title: "Factor Distribution with Standard Deviation Bands",
		Stats: s,
	}
	for k := 1; k <= 3; k++ {
		c.Bands = append(c.Bands, Band{
			Sigma: k,
			Low:   s.Mean - float64(k)*s.StdDev,
			High:  s.Mean + float64(k)*s.StdDev,
		})
	}

	n := int(math.Sqrt(float64(len(records))))
	if n > maxBins {
		n = maxBins
	}
	if n < 1 {
		n = 1
	}

	lo, hi := s.Min, s.Max
	if hi-lo < varianceEpsilon {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / float64(n)

	c.Histogram = make([]Bin, n)
	for i := range c.Histogram {
		b := &c.Histogram[i]
		b.Low = lo + float64(i)*width
		b.High = lo + float64(i+1)*width
		b.Zone = zone(math.Abs((b.Low+b.High)/2-s.Mean), s.StdDev)
	}
	for _, r := range records {
		idx := int((r.Factor.InexactFloat64() - lo) / width)
		if idx >= n {
			idx = n - 1
		}
		if idx < 0 {
			idx = 0
		}
		c.Histogram[idx].Count++
	}
	return c
}

func zone(dist, std float64) string {
	switch {
	case dist <= std:
		return "1σ"
	case dist <= 2*std:
		return "2σ"
	case dist <= 3*std:
		return "3σ"
	default:
		return "beyond"
	}
}

func writeJSON(ctx context.Context, path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}

	w, err := output.NewWriter(f, output.FormatJSON)
	if err == nil {
		err = w.Write(v)
	}
	if err == nil {
		err = w.Close()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	if info, statErr := os.Stat(path); statErr == nil {
		logger.DebugContext(ctx, "chart data written", "path", path, "size", humanize.Bytes(uint64(info.Size())))
	}
	return nil
}
