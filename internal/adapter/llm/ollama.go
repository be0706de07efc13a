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

	"go.uber.org/zap"

	"docqa/internal/port"
)

// OllamaConfig configures the Ollama backend.
type OllamaConfig struct {
	BaseURL      string
	Model        string
	MaxNewTokens int
	Temperature  float64 // always sent, 0 means greedy decoding
	Options      map[string]any // merged over num_predict/temperature
	Timeout      time.Duration
	Logger       *zap.Logger
}

// Ollama generates text with a model served by an Ollama server.
type Ollama struct {
	baseURL string
	model   string
	options map[string]any
	client  *http.Client
	logger  *zap.Logger
}

var _ port.LLM = (*Ollama)(nil)

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func NewOllama(cfg OllamaConfig) *Ollama {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "llama2"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	options := map[string]any{}
	if cfg.MaxNewTokens > 0 {
		options["num_predict"] = cfg.MaxNewTokens
	}
	options["temperature"] = cfg.Temperature
	for k, v := range cfg.Options {
		options[k] = v
	}

	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		options: options,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Generate sends a prompt to /api/generate and returns the generated text.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := ollamaRequest{
		Model:   o.model,
		Prompt:  prompt,
		Stream:  false,
		Options: o.options,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama api request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama api error (status %d): %s", resp.StatusCode, string(body))
	}

	var out ollamaResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s", out.Error)
	}

	o.logger.Debug("ollama generation done",
		zap.String("model", o.model),
		zap.Duration("duration", time.Since(start)),
	)
	return out.Response, nil
}

func (o *Ollama) ModelName() string { return o.model }
