package llm

// Delta is a non-empty text fragment from one streamed choice. Deltas
// concatenate in arrival order into the full reply.
type Delta struct {
	// Index of the choice the fragment belongs to.
	Index int `json:"index"`

	Content string `json:"content"`
}

// StreamChunk is one "data:" payload of a chat-completions stream.
type StreamChunk struct {
	ID      string        `json:"id,omitempty"`
	Object  string        `json:"object,omitempty"`
	Created int64         `json:"created,omitempty"`
	Model   string        `json:"model,omitempty"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is a single entry of StreamChunk.Choices.
type ChunkChoice struct {
	Index int `json:"index"`
	Delta struct {
		Role    string `json:"role,omitempty"`
		Content string `json:"content,omitempty"`
	} `json:"delta"`

	// FinishReason is only present on the last chunk of a choice.
	FinishReason *string `json:"finish_reason,omitempty"`
}

// Deltas returns the non-empty content fragments of the chunk in choice order.
func (c *StreamChunk) Deltas() []Delta {
	var out []Delta
	for _, choice := range c.Choices {
		if choice.Delta.Content == "" {
			continue
		}
		out = append(out, Delta{Index: choice.Index, Content: choice.Delta.Content})
	}
	return out
}
