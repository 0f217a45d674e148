package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "google/gemini-flash-1.5"
	defaultTimeout           = 20 * time.Second
)

// OpenRouterConfig holds connection details for the OpenRouter evaluator.
type OpenRouterConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenRouter implements Judge against OpenRouter's OpenAI-compatible chat
// completions API. One client is built at startup and shared across
// requests; construction is the expensive part, invocation is not.
type OpenRouter struct {
	httpClient    *http.Client
	config        OpenRouterConfig
	logger        zerolog.Logger
	completionURL string
}

var _ Judge = (*OpenRouter)(nil)

func NewOpenRouter(cfg OpenRouterConfig, logger zerolog.Logger) *OpenRouter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenRouterBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenRouterModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	return &OpenRouter{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config:        cfg,
		logger:        logger.With().Str("component", "judge_openrouter").Logger(),
		completionURL: base + "/chat/completions",
	}
}

// Evaluate sends one chat completion and strictly parses the verdict.
// No retries: a failed call is fatal for the request that made it.
func (o *OpenRouter) Evaluate(ctx context.Context, jc Context) (Judgement, error) {
	payload := chatRequest{
		Model: o.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "system", Content: strings.Join(contextLines(jc), "\n")},
			{Role: "user", Content: "Please evaluate this answer"},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Judgement{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.completionURL, bytes.NewReader(body))
	if err != nil {
		return Judgement{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.config.APIKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return Judgement{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return Judgement{}, fmt.Errorf("%w: evaluator returned status %d", ErrUnavailable, resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Judgement{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if len(chatResp.Choices) == 0 {
		return Judgement{}, fmt.Errorf("%w: empty choices", ErrMalformedOutput)
	}

	verdict, err := parseJudgement(chatResp.Choices[0].Message.Content)
	if err != nil {
		o.logger.Warn().Str("model", o.config.Model).Msg("evaluator output failed contract parse")
		return Judgement{}, err
	}
	return finalize(verdict, jc), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
