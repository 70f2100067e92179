package llm

import "encoding/json"

// ErrorResponse is the JSON body an OpenAI-compatible API returns alongside
// a non-2xx status.
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type,omitempty"`
		Code    any    `json:"code,omitempty"`
	} `json:"error"`
}

// ParseErrorMessage extracts error.message from body. It returns "" when the
// body is not an error object.
func ParseErrorMessage(body []byte) string {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return resp.Error.Message
}
