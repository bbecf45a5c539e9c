package reasoning

import (
	"apimatch/internal/core/errors"
	"apimatch/internal/shared/observability"
	"apimatch/internal/shared/util"
	"context"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
)

const systemPrompt = "You rate how well programming API classes and methods implement a described modelling step. Answer only with ratings in the requested format."

type OpenAIOptions struct {
	BaseURL       string
	Model         string
	APIKey        string
	Timeout       time.Duration
	MaxCandidates int
	Limiter       *util.Limiter
}

// OpenAIPort talks to any OpenAI-compatible chat completion endpoint, such as
// a local Ollama server under /v1.
type OpenAIPort struct {
	client *openai.Client
	opts   OpenAIOptions
}

func NewOpenAIPort(opts OpenAIOptions) *OpenAIPort {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	slog.Debug("initializing reasoning port", "base_url", cfg.BaseURL, "model", opts.Model)
	return &OpenAIPort{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
	}
}

func (p *OpenAIPort) Enabled() bool { return true }

// Rate sends one chat completion and parses the ratings from its content.
// Every failure is reported as REASONING_UNAVAILABLE; there is no retry.
func (p *OpenAIPort) Rate(ctx context.Context, req Request) ([]Rating, error) {
	if p.opts.MaxCandidates > 0 && len(req.Candidates) > p.opts.MaxCandidates {
		req.Candidates = req.Candidates[:p.opts.MaxCandidates]
	}
	if len(req.Candidates) == 0 {
		return nil, errors.New(errors.CodeReasoningUnavailable, "no candidates to rate")
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	if err := p.opts.Limiter.Wait(ctx, 1); err != nil {
		observability.ReasoningRequestsTotal.WithLabelValues("throttled").Inc()
		return nil, errors.Wrap(err, errors.CodeReasoningUnavailable, "rate limit wait")
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.opts.Model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		},
	})
	observability.ReasoningLatencySeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.ReasoningRequestsTotal.WithLabelValues("error").Inc()
		return nil, errors.Wrap(err, errors.CodeReasoningUnavailable, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		observability.ReasoningRequestsTotal.WithLabelValues("empty").Inc()
		return nil, errors.New(errors.CodeReasoningUnavailable, "reasoning backend returned no choices")
	}

	ratings, err := ParseRatings(resp.Choices[0].Message.Content, len(req.Candidates))
	if err != nil {
		observability.ReasoningRequestsTotal.WithLabelValues("unparsable").Inc()
		return nil, err
	}
	observability.ReasoningRequestsTotal.WithLabelValues("ok").Inc()
	return ratings, nil
}
