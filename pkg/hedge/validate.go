package hedge

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// validate is shared; validator.Validate is safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// dec_gte and dec_lte compare decimals exactly.
	_ = v.RegisterValidation("dec_gte", decimalBound(func(c int) bool { return c >= 0 }))
	_ = v.RegisterValidation("dec_lte", decimalBound(func(c int) bool { return c <= 0 }))

	// Report JSON keys rather than Go field names.
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return sf.Name
		}
		return name
	})
	return v
}

// Validate checks the update's field constraints.
func (u HedgeFactorUpdate) Validate() error {
	return validateStruct(u, -1)
}

// Validate checks the record's field constraints.
func (r SellerRateRecord) Validate() error {
	return validateStruct(r, -1)
}

// Validate checks the record's field constraints.
func (r SellerFactorRecord) Validate() error {
	return validateStruct(r, -1)
}

// decimalBound builds a validation comparing a decimal field with the tag
// parameter. ok receives the result of field.Cmp(param).
func decimalBound(ok func(int) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		d, isDecimal := fl.Field().Interface().(decimal.Decimal)
		if !isDecimal {
			return false
		}
		bound, err := decimal.NewFromString(fl.Param())
		if err != nil {
			panic(fmt.Sprintf("hedge: bad decimal bound %q", fl.Param()))
		}
		return ok(d.Cmp(bound))
	}
}

func validateStruct(s any, index int) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return violation(index, "", "%v", err)
	}
	fe := fieldErrs[0]
	return violation(index, fe.Field(), "%s", formatValidationError(fe))
}

// formatValidationError creates a human-readable error message.
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "number":
		return fmt.Sprintf("must contain digits only, got %q", e.Value())
	case "gte", "dec_gte":
		return fmt.Sprintf("must be at least %s, got %v", e.Param(), e.Value())
	case "lte", "dec_lte":
		return fmt.Sprintf("must be at most %s, got %v", e.Param(), e.Value())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}

// ValidateUpdate coerces a parsed payload into a HedgeFactorUpdate.
// sellerNumber may be a string or an integral number; hedgeFactor may be a
// number or a numeric string and must lie in [0,1].
func ValidateUpdate(v any) (HedgeFactorUpdate, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return HedgeFactorUpdate{}, violation(-1, "", "expected a JSON object, got %s", describe(v))
	}

	seller, err := coerceString(obj, "sellerNumber", -1)
	if err != nil {
		return HedgeFactorUpdate{}, err
	}
	factor, err := coerceDecimal(obj, "hedgeFactor", -1)
	if err != nil {
		return HedgeFactorUpdate{}, err
	}

	u := HedgeFactorUpdate{SellerNumber: seller, HedgeFactor: factor}
	if err := u.Validate(); err != nil {
		return HedgeFactorUpdate{}, err
	}
	return u, nil
}

// ValidateRecords checks caller-supplied batch input. Failures are
// ErrInvalidInput since they happen before any model call.
func ValidateRecords(records []SellerRateRecord) error {
	if len(records) == 0 {
		return invalidInput("seller list is empty")
	}
	for i, r := range records {
		if err := validateStruct(r, i); err != nil {
			var sv *SchemaViolationError
			if errors.As(err, &sv) {
				return invalidInput("sellers[%d].%s: %s", i, sv.Key, sv.Reason)
			}
			return invalidInput("sellers[%d]: %v", i, err)
		}
	}
	return nil
}

// ValidateBatch coerces a parsed {"output": [...]} payload into factor
// records and checks it against the input batch. The result is ordered like
// input. The whole batch is rejected on the first problem:
//   - an element misses Id, rt or factor, or has an out-of-range value;
//   - the multiset of ids differs from the input;
//   - an element's rt differs from the input record it answers;
//   - an anchor rate does not map exactly to its anchor factor;
//   - factors are not monotonically non-increasing in rate.
func ValidateBatch(v any, input []SellerRateRecord) ([]SellerFactorRecord, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, violation(-1, "", "expected a JSON object, got %s", describe(v))
	}
	rawOut, ok := obj["output"]
	if !ok || rawOut == nil {
		return nil, violation(-1, "output", "is required")
	}
	items, ok := rawOut.([]any)
	if !ok {
		return nil, violation(-1, "output", "expected an array, got %s", describe(rawOut))
	}

	parsed := make([]SellerFactorRecord, len(items))
	for i, item := range items {
		rec, err := coerceFactorRecord(item, i)
		if err != nil {
			return nil, err
		}
		parsed[i] = rec
	}

	if err := checkIDMultiset(parsed, input); err != nil {
		return nil, err
	}

	aligned, positions, err := alignToInput(parsed, input)
	if err != nil {
		return nil, err
	}
	if err := checkAnchors(aligned, positions); err != nil {
		return nil, err
	}
	if err := checkMonotonic(aligned, positions); err != nil {
		return nil, err
	}
	return aligned, nil
}

func coerceFactorRecord(item any, index int) (SellerFactorRecord, error) {
	el, ok := item.(map[string]any)
	if !ok {
		return SellerFactorRecord{}, violation(index, "", "expected an object, got %s", describe(item))
	}
	id, err := coerceString(el, "Id", index)
	if err != nil {
		return SellerFactorRecord{}, err
	}
	rate, err := coerceDecimal(el, "rt", index)
	if err != nil {
		return SellerFactorRecord{}, err
	}
	factor, err := coerceDecimal(el, "factor", index)
	if err != nil {
		return SellerFactorRecord{}, err
	}
	rec := SellerFactorRecord{ID: id, Rate: rate, Factor: factor}
	if err := validateStruct(rec, index); err != nil {
		return SellerFactorRecord{}, err
	}
	return rec, nil
}

func checkIDMultiset(output []SellerFactorRecord, input []SellerRateRecord) error {
	want := make(map[string]int, len(input))
	for _, r := range input {
		want[r.ID]++
	}
	for i, r := range output {
		if want[r.ID] == 0 {
			return violation(i, "Id", "id set mismatch: %q is not expected (or repeated more often than in the input)", r.ID)
		}
		want[r.ID]--
	}
	for _, r := range input {
		if want[r.ID] > 0 {
			return violation(-1, "Id", "id set mismatch: missing output for %q", r.ID)
		}
	}
	return nil
}

// alignToInput orders output like input. Duplicate ids are distinct
// positional entries: each input row takes an unused output with the same
// id, preferring one with the same rate. positions maps aligned rows back
// to their index in the model output.
func alignToInput(output []SellerFactorRecord, input []SellerRateRecord) ([]SellerFactorRecord, []int, error) {
	byID := make(map[string][]int, len(input))
	for i, r := range output {
		byID[r.ID] = append(byID[r.ID], i)
	}
	used := make([]bool, len(output))

	aligned := make([]SellerFactorRecord, len(input))
	positions := make([]int, len(input))
	for j, in := range input {
		pick := -1
		for _, i := range byID[in.ID] {
			if used[i] {
				continue
			}
			if pick < 0 {
				pick = i
			}
			if output[i].Rate.Equal(in.Rate) {
				pick = i
				break
			}
		}
		used[pick] = true

		if !output[pick].Rate.Equal(in.Rate) {
			return nil, nil, violation(pick, "rt", "rate %s does not match input rate %s for %q",
				output[pick].Rate, in.Rate, in.ID)
		}
		aligned[j] = output[pick]
		positions[j] = pick
	}
	return aligned, positions, nil
}

func checkAnchors(records []SellerFactorRecord, positions []int) error {
	for j, r := range records {
		for _, a := range Anchors {
			if r.Rate.Equal(a.Rate) && !r.Factor.Equal(a.Factor) {
				return violation(positions[j], "factor", "anchor rate %s must map to factor %s, got %s",
					a.Rate, a.Factor, r.Factor)
			}
		}
	}
	return nil
}

func checkMonotonic(records []SellerFactorRecord, positions []int) error {
	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return records[order[a]].Rate.LessThan(records[order[b]].Rate)
	})

	for k := 1; k < len(order); k++ {
		lo, hi := records[order[k-1]], records[order[k]]
		switch {
		case lo.Rate.Equal(hi.Rate) && !lo.Factor.Equal(hi.Factor):
			return violation(positions[order[k]], "factor", "rate %s maps to both %s and %s",
				hi.Rate, lo.Factor, hi.Factor)
		case hi.Factor.GreaterThan(lo.Factor):
			return violation(positions[order[k]], "factor",
				"factor must not increase with rate: rate %s -> %s but rate %s -> %s",
				lo.Rate, lo.Factor, hi.Rate, hi.Factor)
		}
	}
	return nil
}

func coerceString(obj map[string]any, key string, index int) (string, error) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return "", violation(index, key, "is required")
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case json.Number:
		if _, err := strconv.ParseInt(v.String(), 10, 64); err != nil {
			return "", violation(index, key, "expected a string, got number %s", v)
		}
		return v.String(), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return "", violation(index, key, "expected a string, got number %v", v)
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", violation(index, key, "expected a string, got %s", describe(raw))
	}
}

func coerceDecimal(obj map[string]any, key string, index int) (decimal.Decimal, error) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return decimal.Zero, violation(index, key, "is required")
	}
	switch v := raw.(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, violation(index, key, "invalid number %s", v)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, violation(index, key, "expected a decimal number, got %q", v)
		}
		return d, nil
	default:
		return decimal.Zero, violation(index, key, "expected a decimal number, got %s", describe(raw))
	}
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
