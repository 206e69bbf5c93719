package hedge

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jmylchreest/hedgefactor/pkg/extractor"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func rateRecords(pairs ...string) []SellerRateRecord {
	out := make([]SellerRateRecord, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, SellerRateRecord{ID: pairs[i], Rate: dec(pairs[i+1])})
	}
	return out
}

// parse decodes s the way the extractor does, keeping json.Number values.
func parse(t *testing.T, s string) any {
	t.Helper()
	v, err := extractor.Extract(s, extractor.BatchTarget)
	if err != nil {
		v, err = extractor.Extract(s, extractor.UpdateTarget)
	}
	if err != nil {
		t.Fatalf("parse(%s): %v", s, err)
	}
	return v
}

func requireViolation(t *testing.T, err error, key string) *SchemaViolationError {
	t.Helper()
	if err == nil {
		t.Fatal("expected schema violation, got nil")
	}
	if !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
	var sv *SchemaViolationError
	if !errors.As(err, &sv) {
		t.Fatalf("expected *SchemaViolationError, got %T", err)
	}
	if sv.Key != key {
		t.Errorf("violation key = %q, want %q (%v)", sv.Key, key, err)
	}
	return sv
}

// --- ValidateUpdate Tests ---

func TestValidateUpdate(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantSeller string
		wantFactor string
	}{
		{"string seller", `{"sellerNumber":"123450001","hedgeFactor":0.0025}`, "123450001", "0.0025"},
		{"numeric seller", `{"sellerNumber":123450001,"hedgeFactor":0.01}`, "123450001", "0.01"},
		{"string factor", `{"sellerNumber":"42","hedgeFactor":"0.0025"}`, "42", "0.0025"},
		{"padded seller", `{"sellerNumber":" 42 ","hedgeFactor":0}`, "42", "0"},
		{"upper bound", `{"sellerNumber":"42","hedgeFactor":1}`, "42", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateUpdate(parse(t, tt.payload))
			if err != nil {
				t.Fatalf("ValidateUpdate() error = %v", err)
			}
			if got.SellerNumber != tt.wantSeller {
				t.Errorf("SellerNumber = %q, want %q", got.SellerNumber, tt.wantSeller)
			}
			if !got.HedgeFactor.Equal(dec(tt.wantFactor)) {
				t.Errorf("HedgeFactor = %s, want %s", got.HedgeFactor, tt.wantFactor)
			}
		})
	}
}

func TestValidateUpdate_Violations(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		key     string
		reason  string
	}{
		{"non-digit seller", `{"sellerNumber":"12a","hedgeFactor":0.01}`, "sellerNumber", "digits only"},
		{"empty seller", `{"sellerNumber":"  ","hedgeFactor":0.01}`, "sellerNumber", "required"},
		{"fractional seller", `{"sellerNumber":12.5,"hedgeFactor":0.01}`, "sellerNumber", "expected a string"},
		{"boolean seller", `{"sellerNumber":true,"hedgeFactor":0.01}`, "sellerNumber", "boolean"},
		{"missing factor", `{"sellerNumber":"1","hedgeFactor":null}`, "hedgeFactor", "required"},
		{"factor too large", `{"sellerNumber":"1","hedgeFactor":25}`, "hedgeFactor", "at most 1"},
		{"negative factor", `{"sellerNumber":"1","hedgeFactor":-0.1}`, "hedgeFactor", "at least 0"},
		{"factor just above one", `{"sellerNumber":"1","hedgeFactor":1.0000000000000000001}`, "hedgeFactor", "at most 1"},
		{"factor just below zero", `{"sellerNumber":"1","hedgeFactor":"-0.0000000000000000001"}`, "hedgeFactor", "at least 0"},
		{"non-numeric factor", `{"sellerNumber":"1","hedgeFactor":"25bps"}`, "hedgeFactor", "decimal number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateUpdate(parse(t, tt.payload))
			sv := requireViolation(t, err, tt.key)
			if !strings.Contains(sv.Reason, tt.reason) {
				t.Errorf("reason = %q, want it to contain %q", sv.Reason, tt.reason)
			}
		})
	}
}

func TestValidateUpdate_ExactBounds(t *testing.T) {
	for _, factor := range []string{"0", "1", "1.0000000000000000000"} {
		if _, err := ValidateUpdate(parse(t, `{"sellerNumber":"1","hedgeFactor":`+factor+`}`)); err != nil {
			t.Errorf("hedgeFactor %s: error = %v", factor, err)
		}
	}
}

func TestValidateUpdate_NotAnObject(t *testing.T) {
	_, err := ValidateUpdate([]any{"x"})
	requireViolation(t, err, "")
}

func TestValidateUpdate_Idempotent(t *testing.T) {
	first, err := ValidateUpdate(parse(t, `{"sellerNumber":"123450001","hedgeFactor":0.0025}`))
	if err != nil {
		t.Fatalf("ValidateUpdate() error = %v", err)
	}
	second, err := ValidateUpdate(first.Map())
	if err != nil {
		t.Fatalf("re-validation error = %v", err)
	}
	if second.SellerNumber != first.SellerNumber || !second.HedgeFactor.Equal(first.HedgeFactor) {
		t.Errorf("re-validation changed the update: %+v vs %+v", second, first)
	}
}

// --- ValidateRecords Tests ---

func TestValidateRecords(t *testing.T) {
	if err := ValidateRecords(rateRecords("968ABC8", "1.0", "329ABC0", "0.74")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		records []SellerRateRecord
		want    string
	}{
		{"empty", nil, "empty"},
		{"missing id", rateRecords("", "0.5"), "sellers[0].Id"},
		{"rate above one", rateRecords("A", "0.5", "B", "1.2"), "sellers[1].rt"},
		{"negative rate", rateRecords("A", "-0.01"), "sellers[0].rt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecords(tt.records)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

// --- ValidateBatch Tests ---

var batchInput = rateRecords(
	"A", "1.0",
	"B", "0.88",
	"C", "0.80",
	"D", "0.74",
	"E", "0.72",
	"F", "0.0",
	"G", "0.9",
	"H", "0.5",
)

const validBatch = `{"output":[
	{"Id":"H","rt":0.5,"factor":48},
	{"Id":"A","rt":1.0,"factor":15},
	{"Id":"B","rt":0.88,"factor":28},
	{"Id":"C","rt":0.80,"factor":35},
	{"Id":"D","rt":0.74,"factor":40.5},
	{"Id":"E","rt":0.72,"factor":42},
	{"Id":"F","rt":0.0,"factor":55},
	{"Id":"G","rt":0.9,"factor":25}
]}`

func TestValidateBatch_Valid(t *testing.T) {
	got, err := ValidateBatch(parse(t, validBatch), batchInput)
	if err != nil {
		t.Fatalf("ValidateBatch() error = %v", err)
	}
	if len(got) != len(batchInput) {
		t.Fatalf("got %d records, want %d", len(got), len(batchInput))
	}
	for i, r := range got {
		if r.ID != batchInput[i].ID || !r.Rate.Equal(batchInput[i].Rate) {
			t.Errorf("record %d = %s/%s, want input order %s/%s", i, r.ID, r.Rate, batchInput[i].ID, batchInput[i].Rate)
		}
		if r.Factor.LessThan(FactorMin) || r.Factor.GreaterThan(FactorMax) {
			t.Errorf("record %d factor %s out of range", i, r.Factor)
		}
	}
	if !got[0].Factor.Equal(dec("15")) || !got[5].Factor.Equal(dec("55")) {
		t.Errorf("boundary anchors not honored: %s, %s", got[0].Factor, got[5].Factor)
	}
}

func TestValidateBatch_Idempotent(t *testing.T) {
	first, err := ValidateBatch(parse(t, validBatch), batchInput)
	if err != nil {
		t.Fatalf("ValidateBatch() error = %v", err)
	}
	second, err := ValidateBatch(BatchMap(first), batchInput)
	if err != nil {
		t.Fatalf("re-validation error = %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("re-validation changed the length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.ID != b.ID || !a.Rate.Equal(b.Rate) || !a.Factor.Equal(b.Factor) {
			t.Errorf("record %d changed: %+v vs %+v", i, a, b)
		}
	}
}

func TestValidateBatch_NumericIDs(t *testing.T) {
	input := rateRecords("1234567", "1.0", "7654321", "0.0")
	got, err := ValidateBatch(parse(t, `{"output":[{"Id":1234567,"rt":1,"factor":15},{"Id":"7654321","rt":0,"factor":55}]}`), input)
	if err != nil {
		t.Fatalf("ValidateBatch() error = %v", err)
	}
	if got[0].ID != "1234567" {
		t.Errorf("ID = %q", got[0].ID)
	}
}

func TestValidateBatch_DuplicateIDsArePositional(t *testing.T) {
	input := rateRecords("329ABC0", "0.74", "329ABC0", "0.8")
	payload := `{"output":[{"Id":"329ABC0","rt":0.8,"factor":35},{"Id":"329ABC0","rt":0.74,"factor":40.5}]}`

	got, err := ValidateBatch(parse(t, payload), input)
	if err != nil {
		t.Fatalf("ValidateBatch() error = %v", err)
	}
	if !got[0].Rate.Equal(dec("0.74")) || !got[0].Factor.Equal(dec("40.5")) {
		t.Errorf("first duplicate = %+v", got[0])
	}
	if !got[1].Rate.Equal(dec("0.8")) || !got[1].Factor.Equal(dec("35")) {
		t.Errorf("second duplicate = %+v", got[1])
	}
}

func TestValidateBatch_Violations(t *testing.T) {
	small := rateRecords("A", "1.0", "X", "0.6", "Y", "0.6", "F", "0.0")

	tests := []struct {
		name    string
		payload string
		input   []SellerRateRecord
		key     string
		reason  string
	}{
		{
			name:    "missing output",
			payload: `{"output":null}`,
			input:   small,
			key:     "output",
			reason:  "required",
		},
		{
			name:    "output not an array",
			payload: `{"output":{"Id":"A"}}`,
			input:   small,
			key:     "output",
			reason:  "array",
		},
		{
			name:    "element not an object",
			payload: `{"output":["A"]}`,
			input:   small,
			key:     "",
			reason:  "expected an object",
		},
		{
			name:    "missing rt",
			payload: `{"output":[{"Id":"A","factor":15}]}`,
			input:   small,
			key:     "rt",
			reason:  "required",
		},
		{
			name:    "factor above max",
			payload: `{"output":[{"Id":"A","rt":1,"factor":56}]}`,
			input:   small,
			key:     "factor",
			reason:  "at most 55",
		},
		{
			name:    "factor just above max",
			payload: `{"output":[{"Id":"A","rt":1,"factor":55.0000000000000000001}]}`,
			input:   small,
			key:     "factor",
			reason:  "at most 55",
		},
		{
			name:    "factor below min",
			payload: `{"output":[{"Id":"A","rt":1,"factor":14.9}]}`,
			input:   small,
			key:     "factor",
			reason:  "at least 15",
		},
		{
			name:    "rt above one",
			payload: `{"output":[{"Id":"A","rt":1.5,"factor":15}]}`,
			input:   small,
			key:     "rt",
			reason:  "at most 1",
		},
		{
			name:    "rt just above one",
			payload: `{"output":[{"Id":"A","rt":1.0000000000000000001,"factor":15}]}`,
			input:   small,
			key:     "rt",
			reason:  "at most 1",
		},
		{
			name:    "unexpected id",
			payload: `{"output":[{"Id":"A","rt":1,"factor":15},{"Id":"Z","rt":0.6,"factor":45},{"Id":"Y","rt":0.6,"factor":45},{"Id":"F","rt":0,"factor":55}]}`,
			input:   small,
			key:     "Id",
			reason:  `"Z" is not expected`,
		},
		{
			name:    "missing id",
			payload: `{"output":[{"Id":"A","rt":1,"factor":15},{"Id":"X","rt":0.6,"factor":45},{"Id":"F","rt":0,"factor":55}]}`,
			input:   small,
			key:     "Id",
			reason:  `missing output for "Y"`,
		},
		{
			name:    "rate changed",
			payload: `{"output":[{"Id":"A","rt":1,"factor":15},{"Id":"X","rt":0.61,"factor":45},{"Id":"Y","rt":0.6,"factor":45},{"Id":"F","rt":0,"factor":55}]}`,
			input:   small,
			key:     "rt",
			reason:  "does not match input rate",
		},
		{
			name:    "anchor not exact",
			payload: `{"output":[{"Id":"A","rt":1,"factor":15.5},{"Id":"X","rt":0.6,"factor":45},{"Id":"Y","rt":0.6,"factor":45},{"Id":"F","rt":0,"factor":55}]}`,
			input:   small,
			key:     "factor",
			reason:  "anchor rate 1 must map to factor 15",
		},
		{
			name:    "equal rates differ",
			payload: `{"output":[{"Id":"A","rt":1,"factor":15},{"Id":"X","rt":0.6,"factor":45},{"Id":"Y","rt":0.6,"factor":46},{"Id":"F","rt":0,"factor":55}]}`,
			input:   small,
			key:     "factor",
			reason:  "maps to both",
		},
		{
			name:    "factor increases with rate",
			payload: strings.Replace(validBatch, `"rt":0.9,"factor":25`, `"rt":0.9,"factor":30`, 1),
			input:   batchInput,
			key:     "factor",
			reason:  "must not increase",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateBatch(parse(t, tt.payload), tt.input)
			sv := requireViolation(t, err, tt.key)
			if !strings.Contains(sv.Reason, tt.reason) {
				t.Errorf("reason = %q, want it to contain %q", sv.Reason, tt.reason)
			}
		})
	}
}

func TestValidateBatch_ViolationIndexPointsAtModelOutput(t *testing.T) {
	payload := strings.Replace(validBatch, `"rt":0.9,"factor":25`, `"rt":0.9,"factor":30`, 1)
	_, err := ValidateBatch(parse(t, payload), batchInput)
	var sv *SchemaViolationError
	if !errors.As(err, &sv) {
		t.Fatalf("expected *SchemaViolationError, got %v", err)
	}
	// G is the last element of the model output.
	if sv.Index != 7 {
		t.Errorf("Index = %d, want 7 (%v)", sv.Index, err)
	}
}

func TestValidateBatch_NotAnObject(t *testing.T) {
	_, err := ValidateBatch("text", batchInput)
	requireViolation(t, err, "")
}

// --- Record Tests ---

func TestSellerRateRecord_JSON(t *testing.T) {
	var recs []SellerRateRecord
	if err := json.Unmarshal([]byte(`[{"Id":"968ABC8","rt":1.0},{"id":"X","rate":0.25}]`), &recs); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if recs[0].ID != "968ABC8" || !recs[0].Rate.Equal(dec("1")) {
		t.Errorf("first record = %+v", recs[0])
	}
	if recs[1].ID != "X" || !recs[1].Rate.Equal(dec("0.25")) {
		t.Errorf("alias record = %+v", recs[1])
	}

	var missing []SellerRateRecord
	err := json.Unmarshal([]byte(`[{"Id":"A"}]`), &missing)
	if err == nil || !strings.Contains(err.Error(), "rt: is required") {
		t.Errorf("record without rate: error = %v, want rt required", err)
	}

	data, err := json.Marshal(SellerRateRecord{ID: "A", Rate: dec("0.88")})
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(data) != `{"Id":"A","rt":0.88}` {
		t.Errorf("Marshal = %s", data)
	}
}

func TestHedgeFactorUpdate_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(HedgeFactorUpdate{SellerNumber: "123450001", HedgeFactor: dec("0.0025")})
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(data) != `{"sellerNumber":"123450001","hedgeFactor":0.0025}` {
		t.Errorf("Marshal = %s", data)
	}
}
