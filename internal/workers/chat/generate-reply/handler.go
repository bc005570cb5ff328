package generatereply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	apperrors "travelgo-chat/internal/common/errors"
	"travelgo-chat/internal/common/logger"
	"travelgo-chat/internal/common/metrics"
)

const (
	TaskType = "generate-reply"
)

var (
	ErrGenerationUnavailable = errors.New("GENERATION_UNAVAILABLE")
)

// Generator is the text-generation collaborator. It only ever sees the
// instructions and context chosen by the pipeline.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Handler talks to an OpenAI-compatible chat completions endpoint.
type Handler struct {
	config *Config
	client *openai.Client
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	return NewHandlerWithClient(config, openai.NewClientWithConfig(clientConfig), log)
}

func NewHandlerWithClient(config *Config, client *openai.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		client: client,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.New("input cannot be nil")
	}
	reply, err := h.Generate(ctx, *input)
	if err != nil {
		return nil, err
	}
	return &Output{Reply: reply}, nil
}

// Generate returns the model's reply. Errors are GENERATION_TIMEOUT or
// GENERATION_UNAVAILABLE StandardErrors.
func (h *Handler) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := h.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       h.config.Model,
		Messages:    BuildMessages(req),
		MaxTokens:   h.config.MaxTokens,
		Temperature: h.config.Temperature,
	})
	elapsed := time.Since(start)

	if err == nil && (len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "") {
		err = errors.New("no choices returned")
	}
	if err != nil {
		metrics.GenerationDuration.WithLabelValues(string(req.Tier), "error").Observe(elapsed.Seconds())
		stdErr := h.classify(ctx, err)
		h.logger.Warn("generation failed", map[string]interface{}{
			"tier":      string(req.Tier),
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
		return "", stdErr
	}

	metrics.GenerationDuration.WithLabelValues(string(req.Tier), "ok").Observe(elapsed.Seconds())
	h.logger.Info("reply generated", map[string]interface{}{
		"tier":         string(req.Tier),
		"model":        resp.Model,
		"finishReason": string(resp.Choices[0].FinishReason),
		"duration":     elapsed.Milliseconds(),
	})
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (h *Handler) classify(ctx context.Context, err error) *apperrors.StandardError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewGenerationTimeoutError(h.config.Timeout)
	}
	return apperrors.NewGenerationUnavailableError(fmt.Errorf("%w: %v", ErrGenerationUnavailable, err))
}
