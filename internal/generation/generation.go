// Package generation wraps the answer-generation LLM behind a small
// interface. Failures degrade to a fixed apologetic answer; raw provider
// errors never reach end users.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

var (
	// ErrInvalidConfig indicates invalid generation configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyResponse indicates the model returned nothing usable.
	ErrEmptyResponse = errors.New("empty model response")
)

// FallbackAnswer is returned when answer generation fails.
const FallbackAnswer = "죄송합니다. 지금은 답변을 생성할 수 없습니다. 잠시 후 다시 시도해 주세요."

// Completer produces free text from a prompt. The query rewriter and the
// orchestrator both consume this narrow surface.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds generation client configuration.
type Config struct {
	// BaseURL is an OpenAI-compatible endpoint.
	BaseURL string

	// Model is the chat model name.
	Model string

	// APIKey authenticates against the endpoint.
	APIKey string

	// Temperature controls sampling; zero keeps answers grounded.
	Temperature float64
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// Service is the langchaingo-backed generation client.
type Service struct {
	llm    llms.Model
	cfg    Config
	logger *zap.Logger
}

// NewService creates a generation client for an OpenAI-compatible endpoint.
func NewService(cfg Config, logger *zap.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}
	return &Service{llm: llm, cfg: cfg, logger: logger}, nil
}

// Complete runs one prompt and returns the raw completion.
func (s *Service) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt,
		llms.WithTemperature(s.cfg.Temperature))
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// AnswerRequest carries everything the answer prompt needs.
type AnswerRequest struct {
	Query   string
	Context []string
	History string
}

// Answer generates a grounded answer from retrieved context and optional
// history. On any failure it logs and returns the fixed fallback answer so
// the chat turn still completes.
func (s *Service) Answer(ctx context.Context, req AnswerRequest) string {
	prompt := buildAnswerPrompt(req)
	out, err := s.Complete(ctx, prompt)
	if err != nil {
		s.logger.Warn("answer generation failed, using fallback", zap.Error(err))
		return FallbackAnswer
	}
	return out
}

func buildAnswerPrompt(req AnswerRequest) string {
	var b strings.Builder
	b.WriteString("당신은 의회 문서 검색 도우미입니다. 아래 참고 자료만 근거로 질문에 답하세요. ")
	b.WriteString("자료에 없는 내용은 모른다고 답하세요.\n\n")

	if req.History != "" {
		b.WriteString("[이전 대화]\n")
		b.WriteString(req.History)
		b.WriteString("\n\n")
	}

	b.WriteString("[참고 자료]\n")
	for i, c := range req.Context {
		fmt.Fprintf(&b, "--- 자료 %d ---\n%s\n", i+1, c)
	}

	b.WriteString("\n[질문]\n")
	b.WriteString(req.Query)
	b.WriteString("\n\n[답변]\n")
	return b.String()
}

// TranscriptSummary is the structured output of transcript summarization.
type TranscriptSummary struct {
	Decisions   []string `json:"decisions"`
	ActionItems []string `json:"action_items"`
}

// SummarizeTranscript asks the model for structured JSON decisions and
// action items from a meeting transcript.
func (s *Service) SummarizeTranscript(ctx context.Context, transcript string) (*TranscriptSummary, error) {
	prompt := "다음 회의록에서 결정 사항과 후속 조치를 추출해 JSON으로만 답하세요.\n" +
		`형식: {"decisions": ["..."], "action_items": ["..."]}` + "\n\n" + transcript

	out, err := s.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var summary TranscriptSummary
	if err := json.Unmarshal([]byte(stripCodeFence(out)), &summary); err != nil {
		return nil, fmt.Errorf("parsing summary response: %w", err)
	}
	return &summary, nil
}

// stripCodeFence removes a surrounding markdown code fence, which chat
// models routinely add around JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
