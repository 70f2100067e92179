package llm

import (
	"errors"
	"fmt"
)

const (
	DefaultEndpoint    = "https://api.openai.com/v1/chat/completions"
	DefaultModel       = "gpt-4o"
	DefaultTemperature = 0.5
	DefaultTopP        = 0.5
	DefaultMaxTokens   = 4096
	DefaultUser        = "my_customer"

	systemPromptPrefix = "I am an assistant that provides detailed descriptions and useful links based on these instructions"
)

// ErrInvalidRequest is wrapped by every StreamRequest validation failure.
var ErrInvalidRequest = errors.New("invalid stream request")

// ChatPayload is the JSON body of a streaming chat-completions request.
type ChatPayload struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	User        string    `json:"user,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	TopP        float64   `json:"top_p"`
	Stream      bool      `json:"stream"`
	Messages    []Message `json:"messages"`
}

// StreamRequest is everything needed to open one streaming analysis. It is
// treated as immutable once built.
type StreamRequest struct {
	// Endpoint is the full chat-completions URL.
	Endpoint string

	// APIKey is sent as a bearer token.
	APIKey string

	Payload ChatPayload

	// IsImage marks requests that carry an image part, which adds a one-time
	// image surcharge to the usage accounting.
	IsImage     bool
	ImageWidth  int
	ImageHeight int
}

// Validate reports whether the request can be sent.
func (r StreamRequest) Validate() error {
	if r.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is empty", ErrInvalidRequest)
	}
	if !r.Payload.Stream {
		return fmt.Errorf("%w: payload must set stream=true", ErrInvalidRequest)
	}
	if r.IsImage && (r.ImageWidth <= 0 || r.ImageHeight <= 0) {
		return fmt.Errorf("%w: image dimensions must be positive, got %dx%d",
			ErrInvalidRequest, r.ImageWidth, r.ImageHeight)
	}
	return nil
}

// AnalysisParams are the inputs for a sketch analysis request. Zero values
// fall back to the package defaults.
type AnalysisParams struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature *float64
	TopP        *float64
	MaxTokens   int
	User        string

	// Instructions is appended to the system message.
	Instructions string

	// Prompt is the user's typed text.
	Prompt string

	// Image data; an empty ImageBase64 produces a text-only request.
	ImageBase64    string
	ImageMediaType string
	ImageWidth     int
	ImageHeight    int
}

// NewAnalysisRequest builds the streaming request for a sketch: a system
// message carrying the instruction text and a user message with the prompt
// and the inline image.
func NewAnalysisRequest(p AnalysisParams) StreamRequest {
	payload := ChatPayload{
		Model:       p.Model,
		Temperature: DefaultTemperature,
		User:        p.User,
		MaxTokens:   p.MaxTokens,
		TopP:        DefaultTopP,
		Stream:      true,
	}
	if payload.Model == "" {
		payload.Model = DefaultModel
	}
	if p.Temperature != nil {
		payload.Temperature = *p.Temperature
	}
	if p.TopP != nil {
		payload.TopP = *p.TopP
	}
	if payload.MaxTokens <= 0 {
		payload.MaxTokens = DefaultMaxTokens
	}
	if payload.User == "" {
		payload.User = DefaultUser
	}

	system := NewTextMessage("system", systemPromptPrefix+p.Instructions+".")

	req := StreamRequest{
		Endpoint: p.Endpoint,
		APIKey:   p.APIKey,
	}
	if req.Endpoint == "" {
		req.Endpoint = DefaultEndpoint
	}

	if p.ImageBase64 == "" {
		payload.Messages = []Message{system, NewTextMessage("user", p.Prompt)}
		req.Payload = payload
		return req
	}

	mediaType := p.ImageMediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	payload.Messages = []Message{system, NewImageMessage(p.Prompt, mediaType, p.ImageBase64)}

	req.Payload = payload
	req.IsImage = true
	req.ImageWidth = p.ImageWidth
	req.ImageHeight = p.ImageHeight
	return req
}
