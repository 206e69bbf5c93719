// Package output writes pipeline results as JSON, JSONL or YAML.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// ParseFormat converts a flag value into a Format. "yml" is accepted as YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s (want json, jsonl or yaml)", s)
	}
}

// Writer handles output serialization.
type Writer interface {
	// Write outputs a single result.
	Write(data any) error

	// WriteAll outputs multiple results.
	WriteAll(data []any) error

	// Flush ensures all data is written.
	Flush() error

	// Close releases resources.
	Close() error
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	pretty bool
	indent string
	array  bool
}

// WithPretty enables pretty-printing.
func WithPretty(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.pretty = enabled
	}
}

// WithIndent sets the indentation string.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) {
		c.indent = indent
	}
}

// WithArray makes JSON and YAML output a list even for a single item, so a
// one-seller batch keeps the shape of a larger one.
func WithArray(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.array = enabled
	}
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{
		pretty: true,
		indent: "  ",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatJSON:
		jw := NewJSONWriter(w, cfg.pretty, cfg.indent)
		jw.array = cfg.array
		return jw, nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		yw := NewYAMLWriter(w)
		yw.array = cfg.array
		return yw, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteList writes items in one pass and closes the writer.
func WriteList[T any](w io.Writer, format Format, items []T, opts ...WriterOption) error {
	ow, err := NewWriter(w, format, append([]WriterOption{WithArray(true)}, opts...)...)
	if err != nil {
		return err
	}
	all := make([]any, len(items))
	for i, item := range items {
		all[i] = item
	}
	if err := ow.WriteAll(all); err != nil {
		return err
	}
	return ow.Close()
}

// Create opens path for writing, or returns stdout when path is "" or "-".
// The returned close function is safe to call for stdout.
func Create(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}
