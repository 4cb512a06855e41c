package metrics

// TokenUsage captures LLM token counts used to satisfy a request.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens,omitempty"`
	TotalTokens      int `json:"totalTokens"`
}

// IsZero reports whether usage data is absent.
func (u TokenUsage) IsZero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0
}

// Add accumulates another usage sample.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// Since returns the usage accumulated after the earlier snapshot.
func (u TokenUsage) Since(earlier TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens - earlier.PromptTokens,
		CompletionTokens: u.CompletionTokens - earlier.CompletionTokens,
		TotalTokens:      u.TotalTokens - earlier.TotalTokens,
	}
}
