package config

import "github.com/papercomputeco/sketchtable/pkg/llm"

const (
	defaultProgressCap      = 4096
	defaultInstructionsPath = "example.xlsx"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Endpoint:    llm.DefaultEndpoint,
			Model:       llm.DefaultModel,
			Temperature: llm.DefaultTemperature,
			TopP:        llm.DefaultTopP,
			MaxTokens:   llm.DefaultMaxTokens,
			User:        llm.DefaultUser,
		},
		Stream: StreamConfig{
			ProgressCap: defaultProgressCap,
		},
		Instructions: InstructionsConfig{
			Path: defaultInstructionsPath,
		},
	}
}
