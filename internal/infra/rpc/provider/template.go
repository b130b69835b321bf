package provider

import "encoding/json"

// Template is the fixed chat payload each input is embedded into.
type Template struct {
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// DefaultTemplate mirrors the payload the upstream API expects by default.
var DefaultTemplate = Template{
	SystemPrompt: "You are a helpful assistant.",
	Temperature:  0.4,
	MaxTokens:    120,
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// Build renders the request body for one input.
func (t Template) Build(input string) ([]byte, error) {
	return json.Marshal(chatRequest{
		Model: t.Model,
		Messages: []chatMessage{
			{Role: "system", Content: t.SystemPrompt},
			{Role: "user", Content: input},
		},
		Temperature: t.Temperature,
		MaxTokens:   t.MaxTokens,
	})
}
