package judge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig holds connection details for the direct Gemini backend.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Gemini implements Judge against the Gemini API directly. The generative
// model is configured once at construction and only read afterwards, so the
// instance is safe for concurrent Evaluate calls.
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
	logger  zerolog.Logger
}

var _ Judge = (*Gemini)(nil)

func NewGemini(ctx context.Context, cfg GeminiConfig, logger zerolog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	name := cfg.Model
	if name == "" {
		name = defaultGeminiModel
	}
	model := client.GenerativeModel(name)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Gemini{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger.With().Str("component", "judge_gemini").Logger(),
	}, nil
}

// Close releases the underlying API client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

func (g *Gemini) Evaluate(ctx context.Context, jc Context) (Judgement, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := strings.Join(contextLines(jc), "\n") + "\n\nPlease evaluate this answer"
	resp, err := g.model.GenerateContent(callCtx, genai.Text(prompt))
	if err != nil {
		return Judgement{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	raw := candidateText(resp)
	if raw == "" {
		return Judgement{}, fmt.Errorf("%w: empty candidate", ErrMalformedOutput)
	}

	verdict, err := parseJudgement(raw)
	if err != nil {
		g.logger.Warn().Msg("evaluator output failed contract parse")
		return Judgement{}, err
	}
	return finalize(verdict, jc), nil
}

func candidateText(resp *genai.GenerateContentResponse) string {
	var text string
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				text += string(txt)
			}
		}
	}
	return text
}
