package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultLocalBaseURL = "http://localhost:11434"

// LocalAdapter implements the Adapter interface for an Ollama-compatible
// local inference server. Local invocations are free but serialized by the
// router, since the server can typically hold one model in VRAM at a time.
type LocalAdapter struct {
	baseURL    string
	httpClient *http.Client
}

// localGenerateRequest is the Ollama generate request body.
type localGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// localGenerateResponse is the Ollama generate response body.
type localGenerateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// NewLocalAdapter creates an adapter for the local inference server.
// An empty baseURL falls back to the standard Ollama port.
func NewLocalAdapter(baseURL string) *LocalAdapter {
	if baseURL == "" {
		baseURL = defaultLocalBaseURL
	}
	return &LocalAdapter{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// Name returns the adapter identifier.
func (a *LocalAdapter) Name() string {
	return "local"
}

// Ping probes the local server so the router can skip a down backend
// without burning the full per-attempt timeout.
func (a *LocalAdapter) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", a.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return NewError(a.Name(), 0, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return NewError(a.Name(), resp.StatusCode, fmt.Errorf("local server returned status %d", resp.StatusCode))
	}
	return nil
}

// Invoke sends a prompt to the local server and returns the generated text.
func (a *LocalAdapter) Invoke(ctx context.Context, model string, prompt string) (*Result, error) {
	reqBody := localGenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, NewError(a.Name(), 0, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, NewError(a.Name(), 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, NewError(a.Name(), 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(a.Name(), resp.StatusCode, fmt.Errorf("failed to read response body: %w", err))
	}

	var localResp localGenerateResponse
	if err := json.Unmarshal(body, &localResp); err != nil {
		return nil, NewError(a.Name(), resp.StatusCode, fmt.Errorf("failed to parse response: %w", err))
	}

	if localResp.Error != "" {
		return nil, NewError(a.Name(), resp.StatusCode, fmt.Errorf("local server error: %s", localResp.Error))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewError(a.Name(), resp.StatusCode, fmt.Errorf("local server returned status %d", resp.StatusCode))
	}

	return &Result{
		Output: localResp.Response,
		Usage: &Usage{
			PromptTokens:     localResp.PromptEvalCount,
			CompletionTokens: localResp.EvalCount,
			TotalTokens:      localResp.PromptEvalCount + localResp.EvalCount,
		},
	}, nil
}
