package openrouter

import (
	"fmt"
	"net/http"
	"strings"

	"llamachat/pkg/provider"
	"llamachat/pkg/provider/openai"
)

// Config contains OpenRouter credential and runtime options.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	HTTPClient  *http.Client
	Temperature float64 // Default temperature
	Referer     string  // Optional: HTTP-Referer header required by OpenRouter when set in dashboard
	AppName     string  // Optional: X-Title header recommended by OpenRouter
}

const (
	defaultBaseURL   = "https://openrouter.ai/api/v1"
	defaultModel     = "meta-llama/llama-3.3-70b-instruct"
	refererHeaderKey = "HTTP-Referer"
	appNameHeaderKey = "X-Title"
)

// NewCompletionModel builds a raw prompt completion provider for OpenRouter's
// OpenAI-compatible API.
func NewCompletionModel(cfg Config) (*openai.CompletionModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openrouter api key is required")
	}

	baseURL := defaultBaseURL
	if strings.TrimSpace(cfg.BaseURL) != "" {
		baseURL = cfg.BaseURL
	}

	headers := map[string]string{}
	if strings.TrimSpace(cfg.Referer) != "" {
		headers[refererHeaderKey] = cfg.Referer
	}
	if strings.TrimSpace(cfg.AppName) != "" {
		headers[appNameHeaderKey] = cfg.AppName
	}

	httpClient := cfg.HTTPClient
	if len(headers) > 0 {
		httpClient = withHeaders(cfg.HTTPClient, headers)
	}

	modelName := cfg.Model
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultModel
	}

	return openai.NewCompletionModel(openai.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     baseURL,
		Model:       modelName,
		HTTPClient:  httpClient,
		Temperature: cfg.Temperature,
		Name:        "openrouter",
	})
}

// Helpers

type headerRoundTripper struct {
	headers map[string]string
	base    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range h.headers {
		if strings.TrimSpace(v) == "" {
			continue
		}
		req.Header.Set(k, v)
	}
	return h.base.RoundTrip(req)
}

// withHeaders wraps the provided HTTP client (or default) to inject headers.
func withHeaders(client *http.Client, headers map[string]string) *http.Client {
	if len(headers) == 0 {
		return client
	}

	baseClient := client
	if baseClient == nil {
		baseClient = &http.Client{}
	}

	clone := *baseClient
	baseTransport := baseClient.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	clone.Transport = &headerRoundTripper{
		headers: headers,
		base:    baseTransport,
	}

	return &clone
}

var _ provider.StreamingModel = (*openai.CompletionModel)(nil)
