package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// ReadCodexAuthFile reads ~/.codex/auth.json and returns its contents and path.
// Returns nil, "" if the file cannot be read.
func ReadCodexAuthFile() ([]byte, string) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, ""
	}

	authPath := filepath.Join(home, ".codex", "auth.json")
	data, err := os.ReadFile(authPath)
	if err != nil {
		return nil, ""
	}

	return data, authPath
}

// CodexAPIKey returns the OPENAI_API_KEY stored in a codex auth.json, or ""
// when the JSON cannot be parsed or holds no key.
func CodexAPIKey(data []byte) string {
	var auth struct {
		OpenAIAPIKey *string `json:"OPENAI_API_KEY"`
	}
	if err := json.Unmarshal(data, &auth); err != nil || auth.OpenAIAPIKey == nil {
		return ""
	}
	return strings.TrimSpace(*auth.OpenAIAPIKey)
}
