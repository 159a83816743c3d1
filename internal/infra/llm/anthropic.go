// Package llm adapts the Anthropic Messages API to the Completer port.
package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/halvorsen/vita-assistant-go/internal/infra/resilience"
)

var tracer = otel.Tracer("infra/llm")

// TokenRecorder receives prompt/completion token counts per call.
type TokenRecorder interface {
	RecordTokens(prompt, completion int)
	IncrExternalError(service string)
}

// AnthropicClient implements the Completer port on the Anthropic Messages
// API, with retry and a circuit breaker around every call.
type AnthropicClient struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	cb        *gobreaker.CircuitBreaker
	resCfg    resilience.Config
	metrics   TokenRecorder
	logger    *zap.Logger
}

// NewAnthropicClient builds a client. An empty apiKey falls through to the
// SDK's environment lookup.
func NewAnthropicClient(apiKey, model string, maxTokens int64, cb *gobreaker.CircuitBreaker, resCfg resilience.Config, metrics TokenRecorder, logger *zap.Logger) *AnthropicClient {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
		cb:        cb,
		resCfg:    resCfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// Complete sends one system+user prompt pair and returns the concatenated
// text blocks of the reply.
func (c *AnthropicClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "AnthropicClient.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", string(c.model)))

	var msg *anthropic.Message
	result, err := c.cb.Execute(func() (any, error) {
		var inner *anthropic.Message
		err := resilience.RetryWithBackoff(ctx, c.resCfg, func() error {
			params := anthropic.MessageNewParams{
				Model:     c.model,
				MaxTokens: c.maxTokens,
				Messages: []anthropic.MessageParam{
					anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
				},
			}
			if system != "" {
				params.System = []anthropic.TextBlockParam{{Text: system}}
			}
			m, err := c.client.Messages.New(ctx, params)
			if err != nil {
				return err
			}
			inner = m
			return nil
		})
		return inner, err
	})
	if err != nil {
		c.metrics.IncrExternalError("anthropic")
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return "", &domain.ErrCircuitOpen{Service: "anthropic"}
		}
		c.logger.Warn("completion failed", zap.Error(err))
		return "", &domain.ErrExternalService{Service: "anthropic", Err: err}
	}
	msg = result.(*anthropic.Message)

	c.metrics.RecordTokens(int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens))

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
