package llm

// Message is a single chat message in the OpenAI chat-completions shape.
// Content is either a plain string or a list of ContentParts, so it is kept
// as any and built through the constructors below.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content any    `json:"content"`
}

// ContentPart is one element of a multimodal user message.
type ContentPart struct {
	Type string `json:"type"` // "text", "image_url"

	// Text content (type="text")
	Text string `json:"text,omitempty"`

	// Image content (type="image_url")
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL wraps an image reference. For local sketches the URL is a
// data URI: data:<mime>;base64,<payload>.
type ImageURL struct {
	URL string `json:"url"`
}

// NewTextMessage creates a simple text message with the given role and content.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Content: text}
}

// NewImageMessage creates a user message carrying a text part followed by an
// inline image part.
func NewImageMessage(text, mediaType, base64Data string) Message {
	return Message{
		Role: "user",
		Content: []ContentPart{
			{Type: "text", Text: text},
			{Type: "image_url", ImageURL: &ImageURL{URL: DataURI(mediaType, base64Data)}},
		},
	}
}

// DataURI formats base64 image data as an inline data URI.
func DataURI(mediaType, base64Data string) string {
	return "data:" + mediaType + ";base64," + base64Data
}

// GetText returns the concatenated text content of the message.
func (m *Message) GetText() string {
	switch c := m.Content.(type) {
	case string:
		return c
	case []ContentPart:
		var result string
		for _, part := range c {
			if part.Type == "text" {
				result += part.Text
			}
		}
		return result
	}
	return ""
}
