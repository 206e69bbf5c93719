package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// resetLogger resets the logger to default state for test isolation
func resetLogger() {
	Init(Options{})
}

// --- Level Tests ---

func TestInit_Levels(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		logged    []string
		notLogged []string
	}{
		{
			name:      "default is info",
			opts:      Options{},
			logged:    []string{"info-msg", "warn-msg", "error-msg"},
			notLogged: []string{"debug-msg"},
		},
		{
			name:   "debug enables everything",
			opts:   Options{Debug: true},
			logged: []string{"debug-msg", "info-msg", "warn-msg", "error-msg"},
		},
		{
			name:      "quiet keeps errors only",
			opts:      Options{Quiet: true},
			logged:    []string{"error-msg"},
			notLogged: []string{"debug-msg", "info-msg", "warn-msg"},
		},
		{
			name:      "quiet overrides debug",
			opts:      Options{Debug: true, Quiet: true},
			logged:    []string{"error-msg"},
			notLogged: []string{"debug-msg", "info-msg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			opts := tt.opts
			opts.Output = buf
			Init(opts)
			defer resetLogger()

			Debug("debug-msg")
			Info("info-msg")
			Warn("warn-msg")
			Error("error-msg")

			out := buf.String()
			for _, want := range tt.logged {
				if !strings.Contains(out, want) {
					t.Errorf("expected %q to be logged, output: %s", want, out)
				}
			}
			for _, unwanted := range tt.notLogged {
				if strings.Contains(out, unwanted) {
					t.Errorf("expected %q not to be logged, output: %s", unwanted, out)
				}
			}
		})
	}
}

// --- Format Tests ---

func TestInit_JSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{JSON: true, Output: buf})
	defer resetLogger()

	Info("pipeline stage", "pipeline", "update", "to", "prompted")

	out := buf.String()
	for _, want := range []string{`"msg":"pipeline stage"`, `"pipeline":"update"`, `"level":"INFO"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in JSON output, got %s", want, out)
		}
	}
}

func TestInit_TextFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	Info("hedge factor updated", "seller", "123450001")

	out := buf.String()
	if !strings.Contains(out, "level=INFO") {
		t.Errorf("expected level=INFO in text output, got %s", out)
	}
	if !strings.Contains(out, "seller=123450001") {
		t.Errorf("expected seller attribute in text output, got %s", out)
	}
}

func TestInit_CustomLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	custom := slog.New(slog.NewJSONHandler(buf, nil))
	Init(Options{Logger: custom, Quiet: true})
	defer resetLogger()

	Info("from custom logger")

	if !strings.Contains(buf.String(), "from custom logger") {
		t.Error("custom logger should ignore Quiet and log info")
	}
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hedgefactor.log")
	buf := &bytes.Buffer{}
	Init(Options{Output: buf, File: path})
	defer resetLogger()

	Info("written twice")
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "written twice") {
		t.Errorf("expected message in log file, got %q", data)
	}
	if !strings.Contains(buf.String(), "written twice") {
		t.Error("expected message in primary output too")
	}
}

func TestClose_NoFile(t *testing.T) {
	Init(Options{Output: &bytes.Buffer{}})
	defer resetLogger()

	if err := Close(); err != nil {
		t.Errorf("Close without file should be a no-op, got %v", err)
	}
}

// --- With / Context Tests ---

func TestWith_ReturnsLoggerWithAttrs(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	l := With("request_id", "abc")
	l.Info("request done")

	out := buf.String()
	if !strings.Contains(out, "request done") || !strings.Contains(out, "request_id=abc") {
		t.Errorf("expected message and attribute, got %s", out)
	}
}

func TestContextVariants(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Debug: true, Output: buf})
	defer resetLogger()

	ctx := context.Background()
	DebugContext(ctx, "debug with context")
	InfoContext(ctx, "info with context")
	WarnContext(ctx, "warn with context")
	ErrorContext(ctx, "error with context")

	out := buf.String()
	for _, want := range []string{"debug with context", "info with context", "warn with context", "error with context"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output", want)
		}
	}
}

func TestSetLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	SetLogger(slog.New(slog.NewTextHandler(buf, nil)))
	defer resetLogger()

	Warn("set logger works")

	if !strings.Contains(buf.String(), "set logger works") {
		t.Error("expected SetLogger output to be used")
	}
}
