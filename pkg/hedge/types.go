// Package hedge turns hedge factor requests into validated updates.
//
// Two pipelines are provided. UpdatePipeline extracts a single
// {sellerNumber, hedgeFactor} record from free text and posts it to an
// update endpoint. ReportPipeline asks the model to map a batch of seller
// rates onto the bounded factor scale and validates the result against the
// anchor table.
package hedge

import (
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

// Factor scale bounds and the soft target for the batch mean.
var (
	FactorMin        = decimal.NewFromInt(15)
	FactorMax        = decimal.NewFromInt(55)
	TargetMeanFactor = decimal.NewFromInt(35)
)

// Anchor is a fixed (rate, factor) pair the mapping must pass through.
type Anchor struct {
	Rate   decimal.Decimal
	Factor decimal.Decimal
}

// Anchors is the rate to factor anchor table, ordered by descending rate.
var Anchors = []Anchor{
	{Rate: decimal.RequireFromString("1.0"), Factor: decimal.RequireFromString("15")},
	{Rate: decimal.RequireFromString("0.88"), Factor: decimal.RequireFromString("28")},
	{Rate: decimal.RequireFromString("0.80"), Factor: decimal.RequireFromString("35")},
	{Rate: decimal.RequireFromString("0.74"), Factor: decimal.RequireFromString("40.5")},
	{Rate: decimal.RequireFromString("0.72"), Factor: decimal.RequireFromString("42")},
	{Rate: decimal.RequireFromString("0.0"), Factor: decimal.RequireFromString("55")},
}

// HedgeFactorUpdate is a single seller update extracted from free text.
type HedgeFactorUpdate struct {
	SellerNumber string          `json:"sellerNumber" validate:"required,number"`
	HedgeFactor  decimal.Decimal `json:"hedgeFactor" validate:"dec_gte=0,dec_lte=1"`
}

// MarshalJSON encodes hedgeFactor as a JSON number.
func (u HedgeFactorUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SellerNumber string      `json:"sellerNumber"`
		HedgeFactor  json.Number `json:"hedgeFactor"`
	}{
		SellerNumber: u.SellerNumber,
		HedgeFactor:  json.Number(u.HedgeFactor.String()),
	})
}

// MarshalYAML encodes hedgeFactor as a YAML float.
func (u HedgeFactorUpdate) MarshalYAML() (any, error) {
	return struct {
		SellerNumber string  `yaml:"sellerNumber"`
		HedgeFactor  float64 `yaml:"hedgeFactor"`
	}{u.SellerNumber, u.HedgeFactor.InexactFloat64()}, nil
}

// Map returns the generic JSON form of the update, as the extractor would
// produce it.
func (u HedgeFactorUpdate) Map() map[string]any {
	return map[string]any{
		"sellerNumber": u.SellerNumber,
		"hedgeFactor":  json.Number(u.HedgeFactor.String()),
	}
}

// SellerRateRecord is one input row of the batch mapping.
type SellerRateRecord struct {
	ID   string          `json:"Id" validate:"required"`
	Rate decimal.Decimal `json:"rt" validate:"dec_gte=0,dec_lte=1"`
}

// MarshalJSON encodes the record in the seller feed shape {"Id", "rt"}.
func (r SellerRateRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID   string      `json:"Id"`
		Rate json.Number `json:"rt"`
	}{
		ID:   r.ID,
		Rate: json.Number(r.Rate.String()),
	})
}

// UnmarshalJSON accepts both the feed keys {"Id", "rt"} and the longer
// {"id", "rate"} spelling. A record without a rate is rejected.
func (r *SellerRateRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   string           `json:"Id"`
		Rt   *decimal.Decimal `json:"rt"`
		Rate *decimal.Decimal `json:"rate"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ID = raw.ID
	switch {
	case raw.Rt != nil:
		r.Rate = *raw.Rt
	case raw.Rate != nil:
		r.Rate = *raw.Rate
	default:
		return errors.New("rt: is required")
	}
	return nil
}

// SellerFactorRecord is a rate record with its mapped factor.
type SellerFactorRecord struct {
	ID     string          `json:"Id" validate:"required"`
	Rate   decimal.Decimal `json:"rt" validate:"dec_gte=0,dec_lte=1"`
	Factor decimal.Decimal `json:"factor" validate:"dec_gte=15,dec_lte=55"`
}

// MarshalJSON encodes rt and factor as JSON numbers.
func (r SellerFactorRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID     string      `json:"Id"`
		Rate   json.Number `json:"rt"`
		Factor json.Number `json:"factor"`
	}{
		ID:     r.ID,
		Rate:   json.Number(r.Rate.String()),
		Factor: json.Number(r.Factor.String()),
	})
}

// MarshalYAML encodes rt and factor as YAML floats.
func (r SellerFactorRecord) MarshalYAML() (any, error) {
	return struct {
		ID     string  `yaml:"Id"`
		Rate   float64 `yaml:"rt"`
		Factor float64 `yaml:"factor"`
	}{r.ID, r.Rate.InexactFloat64(), r.Factor.InexactFloat64()}, nil
}

// RateRecord returns the input half of the record.
func (r SellerFactorRecord) RateRecord() SellerRateRecord {
	return SellerRateRecord{ID: r.ID, Rate: r.Rate}
}

// Map returns the generic JSON form of the record.
func (r SellerFactorRecord) Map() map[string]any {
	return map[string]any{
		"Id":     r.ID,
		"rt":     json.Number(r.Rate.String()),
		"factor": json.Number(r.Factor.String()),
	}
}

// BatchMap returns the generic {"output": [...]} form of a batch.
func BatchMap(records []SellerFactorRecord) map[string]any {
	out := make([]any, 0, len(records))
	for _, r := range records {
		out = append(out, r.Map())
	}
	return map[string]any{"output": out}
}

// Acknowledgement is the update endpoint's reply.
type Acknowledgement struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Data    *HedgeFactorUpdate `json:"data,omitempty"`
}
