package usage

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"strings"
)

// Pricing is a model's rate in USD per million tokens.
type Pricing struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

type PricingTable map[string]Pricing

// DefaultPricing returns the built-in rates for vision-capable chat models.
// gpt-4o carries its launch rates.
func DefaultPricing() PricingTable {
	return PricingTable{
		"gpt-4o":       {Input: 5.00, Output: 15.00},
		"gpt-4o-mini":  {Input: 0.15, Output: 0.60},
		"gpt-4-turbo":  {Input: 10.00, Output: 30.00},
		"gpt-4.1":      {Input: 2.00, Output: 8.00},
		"gpt-4.1-mini": {Input: 0.40, Output: 1.60},
		"gpt-4.1-nano": {Input: 0.10, Output: 0.40},
		"o3":           {Input: 2.00, Output: 8.00},
		"o4-mini":      {Input: 1.10, Output: 4.40},
		"o1":           {Input: 15.00, Output: 60.00},
	}
}

// LoadPricing returns the default table with the overrides from the JSON
// file at path applied on top. An empty path returns the defaults.
func LoadPricing(path string) (PricingTable, error) {
	pricing := DefaultPricing()
	if path == "" {
		return pricing, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}

	var overrides map[string]Pricing
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse pricing file: %w", err)
	}

	maps.Copy(pricing, overrides)

	return pricing, nil
}

func PricingForModel(pricing PricingTable, model string) (Pricing, bool) {
	normalized := normalizeModel(model)
	price, ok := pricing[normalized]
	if ok {
		return price, true
	}
	price, ok = pricing[model]
	return price, ok
}

func normalizeModel(model string) string {
	normalized := strings.ToLower(strings.TrimSpace(model))
	if normalized == "" {
		return normalized
	}

	// Strip OpenAI-style date suffix: -YYYY-MM-DD
	normalized = stripDateSuffix(normalized)

	normalized = strings.ReplaceAll(normalized, "-4-1", "-4.1")
	return normalized
}

// stripDateSuffix removes a trailing -YYYY-MM-DD date suffix from a model name.
func stripDateSuffix(model string) string {
	if len(model) < 12 {
		return model
	}

	suffix := model[len(model)-11:]
	if suffix[0] != '-' {
		return model
	}
	date := suffix[1:] // "YYYY-MM-DD"
	if isDigits(date[0:4]) && date[4] == '-' && isDigits(date[5:7]) && date[7] == '-' && isDigits(date[8:10]) {
		return model[:len(model)-11]
	}
	return model
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
