// Package sellers provides seller rate feeds for the report pipeline.
package sellers

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/hedgefactor/pkg/hedge"
)

//go:embed sellers.json
var defaultFeed []byte

// Default returns the built-in seller dataset. Ids are not unique; a seller
// may appear more than once with different rates.
func Default() []hedge.SellerRateRecord {
	records, err := Parse(defaultFeed, FormatJSON)
	if err != nil {
		panic(fmt.Sprintf("sellers: embedded feed is invalid: %v", err))
	}
	return records
}

// Format is a feed encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported seller feed extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}

// FromFile loads a seller feed from a .json, .yaml or .yml file.
func FromFile(path string) ([]hedge.SellerRateRecord, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seller feed: %w", err)
	}
	records, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// yamlRecord mirrors the feed shape. Rates are read as strings so decimals
// keep their written precision.
type yamlRecord struct {
	ID   string `yaml:"Id"`
	Rt   string `yaml:"rt"`
	Rate string `yaml:"rate"`
}

// Parse decodes a feed: a list of {"Id", "rt"} records, optionally wrapped
// as {"sellers": [...]}. Records are checked with hedge.ValidateRecords.
func Parse(data []byte, format Format) ([]hedge.SellerRateRecord, error) {
	var (
		records []hedge.SellerRateRecord
		err     error
	)
	switch format {
	case FormatJSON:
		records, err = parseJSON(data)
	case FormatYAML:
		records, err = parseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported seller feed format: %s", format)
	}
	if err != nil {
		return nil, err
	}
	if err := hedge.ValidateRecords(records); err != nil {
		return nil, err
	}
	return records, nil
}

// invalidInput marks a problem with caller-supplied feed data.
func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", hedge.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func parseJSON(data []byte) ([]hedge.SellerRateRecord, error) {
	var raw []json.RawMessage
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var wrapped struct {
			Sellers []json.RawMessage `json:"sellers"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, invalidInput("failed to parse JSON seller feed: %v", err)
		}
		raw = wrapped.Sellers
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, invalidInput("failed to parse JSON seller feed: %v", err)
	}

	records := make([]hedge.SellerRateRecord, len(raw))
	for i, item := range raw {
		if err := json.Unmarshal(item, &records[i]); err != nil {
			return nil, invalidInput("sellers[%d]: %v", i, err)
		}
	}
	return records, nil
}

func parseYAML(data []byte) ([]hedge.SellerRateRecord, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, invalidInput("failed to parse YAML seller feed: %v", err)
	}

	if len(node.Content) == 0 {
		return nil, nil
	}

	var raw []yamlRecord
	if node.Content[0].Kind == yaml.MappingNode {
		var wrapped struct {
			Sellers []yamlRecord `yaml:"sellers"`
		}
		if err := node.Decode(&wrapped); err != nil {
			return nil, invalidInput("failed to parse YAML seller feed: %v", err)
		}
		raw = wrapped.Sellers
	} else if err := node.Decode(&raw); err != nil {
		return nil, invalidInput("failed to parse YAML seller feed: %v", err)
	}

	records := make([]hedge.SellerRateRecord, 0, len(raw))
	for i, r := range raw {
		value := r.Rt
		if value == "" {
			value = r.Rate
		}
		if value == "" {
			return nil, invalidInput("sellers[%d].rt: is required", i)
		}
		rate, err := decimal.NewFromString(value)
		if err != nil {
			return nil, invalidInput("sellers[%d].rt: invalid rate %q", i, value)
		}
		records = append(records, hedge.SellerRateRecord{ID: r.ID, Rate: rate})
	}
	return records, nil
}
