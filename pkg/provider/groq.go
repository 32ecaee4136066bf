package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// GroqAdapter implements the Adapter interface for Groq-hosted models.
// Groq uses an OpenAI-compatible API format.
type GroqAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// groqRequest represents the OpenAI-compatible request format.
type groqRequest struct {
	Model     string        `json:"model"`
	Messages  []groqMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

// groqMessage represents a chat message.
type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// groqResponse represents the OpenAI-compatible response format.
type groqResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// NewGroqAdapter creates a new Groq adapter.
func NewGroqAdapter(apiKey string) (*GroqAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}

	return &GroqAdapter{
		apiKey:     apiKey,
		baseURL:    groqBaseURL,
		httpClient: &http.Client{},
	}, nil
}

// Name returns the adapter identifier.
func (a *GroqAdapter) Name() string {
	return "groq"
}

// Invoke sends a prompt to Groq and returns the generated text.
func (a *GroqAdapter) Invoke(ctx context.Context, model string, prompt string) (*Result, error) {
	reqBody := groqRequest{
		Model: model,
		Messages: []groqMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens: 4096,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, NewError(a.Name(), 0, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, NewError(a.Name(), 0, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, NewError(a.Name(), 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(a.Name(), resp.StatusCode, fmt.Errorf("failed to read response body: %w", err))
	}

	var groqResp groqResponse
	if err := json.Unmarshal(body, &groqResp); err != nil {
		return nil, NewError(a.Name(), resp.StatusCode, fmt.Errorf("failed to parse response: %w", err))
	}

	if groqResp.Error != nil {
		return nil, NewError(a.Name(), resp.StatusCode, fmt.Errorf("groq API error: %s (type: %s, code: %s)",
			groqResp.Error.Message, groqResp.Error.Type, groqResp.Error.Code))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewError(a.Name(), resp.StatusCode, fmt.Errorf("groq API returned status %d", resp.StatusCode))
	}

	if len(groqResp.Choices) == 0 {
		return nil, NewError(a.Name(), 0, fmt.Errorf("groq returned no choices"))
	}

	return &Result{
		Output: groqResp.Choices[0].Message.Content,
		Usage: &Usage{
			PromptTokens:     groqResp.Usage.PromptTokens,
			CompletionTokens: groqResp.Usage.CompletionTokens,
			TotalTokens:      groqResp.Usage.TotalTokens,
		},
	}, nil
}
