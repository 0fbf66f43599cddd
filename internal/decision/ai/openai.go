package ai

import (
	"context"
	"net/http"
	"strings"
)

// Provider names understood by DefaultRegistry.
const (
	ProviderOpenAI      = "openai"
	ProviderAzureOpenAI = "azure_openai"
	ProviderOllama      = "ollama"
	ProviderStatic      = "static"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultAzureAPIVersion = "2024-06-01"
	defaultMaxTokens       = 2000
	defaultTemperature     = 0.1
)

// OpenAI talks to an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	id          string
	model       string
	endpoint    string
	header      http.Header
	temperature float64
	maxTokens   int
	client      *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model,omitempty"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// NewOpenAI builds a provider for api.openai.com or any compatible base URL.
func NewOpenAI(cfg Config) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, NewProviderError(ErrorConfiguration, ProviderOpenAI, "api key is required", nil)
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)
	return newChatProvider(ProviderOpenAI, strings.TrimRight(base, "/")+"/chat/completions", header, cfg), nil
}

// NewAzureOpenAI builds a provider for an Azure OpenAI deployment. BaseURL is
// the deployment URL.
func NewAzureOpenAI(cfg Config) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, NewProviderError(ErrorConfiguration, ProviderAzureOpenAI, "api key is required", nil)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, NewProviderError(ErrorConfiguration, ProviderAzureOpenAI, "deployment base url is required", nil)
	}
	version := cfg.APIVersion
	if version == "" {
		version = defaultAzureAPIVersion
	}
	header := http.Header{}
	header.Set("api-key", cfg.APIKey)
	endpoint := strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions?api-version=" + version
	return newChatProvider(ProviderAzureOpenAI, endpoint, header, cfg), nil
}

func newChatProvider(id, endpoint string, header http.Header, cfg Config) *OpenAI {
	p := &OpenAI{
		id:          id,
		model:       cfg.Model,
		endpoint:    endpoint,
		header:      header,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      cfg.httpClient(),
	}
	if p.model == "" {
		p.model = defaultOpenAIModel
	}
	if p.maxTokens <= 0 {
		p.maxTokens = defaultMaxTokens
	}
	if p.temperature <= 0 {
		p.temperature = defaultTemperature
	}
	return p
}

func (p *OpenAI) ID() string    { return p.id }
func (p *OpenAI) Model() string { return p.model }

func (p *OpenAI) Complete(ctx context.Context, prompt Prompt) (string, error) {
	req := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		Temperature:    p.temperature,
		MaxTokens:      p.maxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	var resp chatResponse
	if err := postJSON(ctx, p.client, p.id, p.endpoint, p.header, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", NewProviderError(ErrorInvalidResponse, p.id, "completion has no content", nil)
	}
	return resp.Choices[0].Message.Content, nil
}
