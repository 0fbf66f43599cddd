package ai

import (
	"context"
	"net/http"
	"strings"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "qwen2.5:7b"
)

// Ollama talks to a local Ollama server through /api/generate.
type Ollama struct {
	model       string
	endpoint    string
	temperature float64
	client      *http.Client
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	System  string        `json:"system,omitempty"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func NewOllama(cfg Config) (Provider, error) {
	base := cfg.BaseURL
	if base == "" {
		base = defaultOllamaBaseURL
	}
	p := &Ollama{
		model:       cfg.Model,
		endpoint:    strings.TrimRight(base, "/") + "/api/generate",
		temperature: cfg.Temperature,
		client:      cfg.httpClient(),
	}
	if p.model == "" {
		p.model = defaultOllamaModel
	}
	if p.temperature <= 0 {
		p.temperature = defaultTemperature
	}
	return p, nil
}

func (p *Ollama) ID() string    { return ProviderOllama }
func (p *Ollama) Model() string { return p.model }

func (p *Ollama) Complete(ctx context.Context, prompt Prompt) (string, error) {
	req := ollamaRequest{
		Model:   p.model,
		System:  prompt.System,
		Prompt:  prompt.User,
		Format:  "json",
		Options: ollamaOptions{Temperature: p.temperature},
	}
	var resp ollamaResponse
	if err := postJSON(ctx, p.client, ProviderOllama, p.endpoint, nil, req, &resp); err != nil {
		return "", err
	}
	if !resp.Done || strings.TrimSpace(resp.Response) == "" {
		return "", NewProviderError(ErrorInvalidResponse, ProviderOllama, "generation incomplete", nil)
	}
	return resp.Response, nil
}
