package hedge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmylchreest/hedgefactor/pkg/extractor"
)

// Error kinds surfaced by the pipelines. Match them with errors.Is.
var (
	// ErrInvalidInput is returned for missing or malformed caller data,
	// before any model call is made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrGateway is returned when the model service is unreachable or fails.
	ErrGateway = errors.New("model gateway error")

	// ErrMalformedModelOutput is returned when no JSON payload can be recovered
	// from the model text. The concrete error is *extractor.MalformedOutputError.
	ErrMalformedModelOutput = extractor.ErrMalformedOutput

	// ErrSchemaViolation is returned when the parsed payload is missing fields,
	// has mistyped or out-of-range values, or does not match the input batch.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrSink is returned when the downstream update call fails.
	ErrSink = errors.New("sink error")
)

// invalidInput builds an ErrInvalidInput with a reason.
func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// SchemaViolationError describes the first offending element of a payload.
// Index is -1 for top-level or batch-wide problems.
type SchemaViolationError struct {
	Index  int
	Key    string
	Reason string
}

func (e *SchemaViolationError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrSchemaViolation.Error())
	sb.WriteString(": ")
	if e.Index >= 0 {
		sb.WriteString("output[")
		sb.WriteString(strconv.Itoa(e.Index))
		sb.WriteString("]")
		if e.Key != "" {
			sb.WriteString(".")
		}
	}
	if e.Key != "" {
		sb.WriteString(e.Key)
	}
	if e.Index >= 0 || e.Key != "" {
		sb.WriteString(": ")
	}
	sb.WriteString(e.Reason)
	return sb.String()
}

// Is reports whether target is ErrSchemaViolation.
func (e *SchemaViolationError) Is(target error) bool {
	return target == ErrSchemaViolation
}

func violation(index int, key, format string, args ...any) *SchemaViolationError {
	return &SchemaViolationError{Index: index, Key: key, Reason: fmt.Sprintf(format, args...)}
}

// GatewayError wraps a failed model call.
type GatewayError struct {
	Provider string
	Err      error
}

func (e *GatewayError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("%s: %v", ErrGateway, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", ErrGateway, e.Provider, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Is reports whether target is ErrGateway.
func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}

// SinkError wraps a failed update call. Status is zero when no HTTP
// response was received.
type SinkError struct {
	Endpoint string
	Status   int
	Body     string
	Err      error
}

func (e *SinkError) Error() string {
	msg := fmt.Sprintf("%s: POST %s", ErrSink, e.Endpoint)
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	if e.Body != "" {
		msg += fmt.Sprintf(" (body: %s)", truncate(e.Body, 200))
	}
	return msg
}

func (e *SinkError) Unwrap() error { return e.Err }

// Is reports whether target is ErrSink.
func (e *SinkError) Is(target error) bool {
	return target == ErrSink
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
