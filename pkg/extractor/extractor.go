// Package extractor recovers a JSON payload from free-form model output.
//
// Models often wrap their answer in a fenced code block or surround it with
// prose even when told not to. Extract tries, in order:
//
//  1. the contents of the first fenced code block;
//  2. the whole text, when it is a bare object;
//  3. the smallest balanced object in the text carrying every key of the
//     target.
//
// The located text must then parse as JSON. There is no partial parsing and
// no defaulting: anything else is a MalformedOutputError.
package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedOutput is matched by every MalformedOutputError.
var ErrMalformedOutput = errors.New("malformed model output")

// Target names the top-level keys a payload must carry.
type Target struct {
	Name string
	Keys []string
}

// Known payload shapes.
var (
	UpdateTarget = Target{Name: "hedge factor update", Keys: []string{"sellerNumber", "hedgeFactor"}}
	BatchTarget  = Target{Name: "factor batch", Keys: []string{"output"}}
)

// Tier identifies which strategy located the payload.
type Tier int

const (
	TierNone Tier = iota
	TierFenced
	TierBare
	TierScanned
)

func (t Tier) String() string {
	switch t {
	case TierFenced:
		return "fenced"
	case TierBare:
		return "bare"
	case TierScanned:
		return "scanned"
	default:
		return "none"
	}
}

// MalformedOutputError carries the raw model text for diagnostics.
type MalformedOutputError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *MalformedOutputError) Error() string {
	msg := ErrMalformedOutput.Error() + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + " (response: " + truncateForError(e.Raw) + ")"
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMalformedOutput.
func (e *MalformedOutputError) Is(target error) bool {
	return target == ErrMalformedOutput
}

// Extract locates and parses the payload for t in raw. Numbers are decoded
// as json.Number so decimal values survive unchanged.
func Extract(raw string, t Target) (any, error) {
	candidate, tier := Locate(raw, t)
	if tier == TierNone {
		return nil, &MalformedOutputError{
			Raw:    raw,
			Reason: fmt.Sprintf("no JSON object with keys %s found", strings.Join(t.Keys, ", ")),
		}
	}

	v, err := decode(candidate)
	if err != nil {
		return nil, &MalformedOutputError{
			Raw:    raw,
			Reason: fmt.Sprintf("%s payload is not valid JSON", tier),
			Err:    err,
		}
	}
	return v, nil
}

// Locate returns the payload text for t and the tier that found it.
func Locate(raw string, t Target) (string, Tier) {
	if block, ok := FencedBlock(raw); ok {
		return block, TierFenced
	}

	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed, TierBare
	}

	if obj, ok := smallestObject(raw, t.Keys); ok {
		return obj, TierScanned
	}
	return "", TierNone
}

// FencedBlock returns the trimmed contents of the first ``` block. An
// unterminated block runs to the end of the text.
func FencedBlock(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	rest := s[start+3:]

	// Drop a language tag such as ```json.
	tag := 0
	for tag < len(rest) && isTagByte(rest[tag]) {
		tag++
	}
	if tag > 0 && (tag == len(rest) || isSpace(rest[tag]) || rest[tag] == '{' || rest[tag] == '[') {
		rest = rest[tag:]
	}

	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}

// smallestObject scans every '{' for a balanced, valid object whose top
// level holds all keys, and returns the shortest one.
func smallestObject(s string, keys []string) (string, bool) {
	best := ""
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		end := matchBrace(s, i)
		if end < 0 {
			continue
		}
		cand := s[i : end+1]
		if best != "" && len(cand) >= len(best) {
			continue
		}
		if hasKeys(cand, keys) {
			best = cand
		}
	}
	return best, best != ""
}

// matchBrace returns the index of the '}' closing the '{' at open, or -1.
// Braces inside string literals are ignored.
func matchBrace(s string, open int) int {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func hasKeys(candidate string, keys []string) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return false
	}
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			return false
		}
	}
	return true
}

// decode parses exactly one JSON value.
func decode(s string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}

func isTagByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '-' || c == '+' || c == '.'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// truncateForError truncates content for error messages.
func truncateForError(s string) string {
	if len(s) <= 200 {
		return s
	}
	return s[:200] + "..."
}
