package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultHost is the local Ollama endpoint the adapter talks to when no
// host is configured.
const DefaultHost = "http://localhost:11434"

// OllamaAdapter is an Adapter backed by a local or remote Ollama instance,
// grounded on the same request/response/HTTP-client shape the indexer's
// contextual-context generator uses against the same API.
type OllamaAdapter struct {
	client *http.Client
	host   string
	model  string
}

// NewOllamaAdapter builds an adapter. An empty host/model falls back to
// DefaultHost and "qwen3:0.6b" respectively.
func NewOllamaAdapter(host, model string, timeout time.Duration) *OllamaAdapter {
	if host == "" {
		host = DefaultHost
	}
	if model == "" {
		model = "qwen3:0.6b"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OllamaAdapter{
		client: &http.Client{Timeout: timeout},
		host:   host,
		model:  model,
	}
}

type ollamaOptions struct {
	Temperature float64  `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Complete issues one completion request to Ollama's /api/generate.
func (o *OllamaAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := req.SystemPrompt
	if req.UserMessage != "" {
		if prompt != "" {
			prompt += "\n\n"
		}
		prompt += req.UserMessage
	}

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
			Stop:        req.StopSequences,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return &Response{FinishReason: FinishError}, fmt.Errorf("ollama request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &Response{FinishReason: FinishError}, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var genResp ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return &Response{FinishReason: FinishError}, fmt.Errorf("decode ollama response: %w", err)
	}

	finish := FinishStop
	if req.MaxTokens > 0 && genResp.EvalCount >= req.MaxTokens {
		finish = FinishLength
	}

	return &Response{
		Content: strings.TrimSpace(genResp.Response),
		TokensUsed: TokensUsed{
			Prompt:     genResp.PromptEvalCount,
			Completion: genResp.EvalCount,
			Total:      genResp.PromptEvalCount + genResp.EvalCount,
		},
		FinishReason: finish,
	}, nil
}

// CountTokens approximates token count at ~4 characters per token, the
// same ratio the budgeter falls back to for unlisted models.
func (o *OllamaAdapter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Available checks whether the Ollama host is reachable.
func (o *OllamaAdapter) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}
