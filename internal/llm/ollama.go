package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/kbsync/internal/util"
)

// OllamaProvider runs completions on a local Ollama server
type OllamaProvider struct {
	baseURL  string
	endpoint jsonEndpoint
	config   Config
}

type ollamaGenerateRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	System  string `json:"system,omitempty"`
	Stream  bool   `json:"stream"`
	Options struct {
		Temperature float32 `json:"temperature,omitempty"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options"`
}

type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

func ollamaErrorMessage(body []byte) (string, bool) {
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error == "" {
		return "", false
	}
	return apiErr.Error, true
}

// NewOllamaProvider creates an Ollama provider. A model name is required.
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	// local models can be slow to load
	timeout := config.timeoutOr(5 * time.Minute)

	return &OllamaProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		endpoint: jsonEndpoint{
			provider:     "ollama",
			client:       util.NewHTTPClient(timeout, config.HTTPProxy, config.HTTPSProxy),
			errorMessage: ollamaErrorMessage,
		},
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks that the Ollama server answers
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	return p.endpoint.get(ctx, p.baseURL+"/api/tags")
}

// Complete runs a non-streaming generate call
func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	apiReq := ollamaGenerateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		System: req.System,
	}
	if apiReq.Model == "" {
		apiReq.Model = p.config.Model
	}
	apiReq.Options.Temperature = temperatureOr(req.Temperature, p.config.Temperature)
	apiReq.Options.NumPredict = p.config.maxTokens(req)

	var resp ollamaGenerateResponse
	if err := p.endpoint.post(ctx, p.baseURL+"/api/generate", apiReq, &resp); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(resp.Response)

	// some models report no counts; estimate at 4 characters per token
	tokensUsed := resp.PromptEvalCount + resp.EvalCount
	if tokensUsed == 0 {
		tokensUsed = (len(req.System) + len(req.Prompt) + len(text)) / 4
	}

	return &CompletionResponse{
		Text:       text,
		Model:      resp.Model,
		TokensUsed: tokensUsed,
	}, nil
}
