package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/discourselab/poliscope/internal/analysis"
)

// Fixed deadline for one completion round trip. A deadline hit is
// classified as unavailable so the engine's retry policy applies.
const requestTimeout = 90 * time.Second

const systemMessage = "You are a careful analyst of political discourse. You reply only in the JSON format the user specifies."

// OpenAI talks to any chat-completion endpoint speaking the OpenAI
// API: the hosted service, or a local server such as LMStudio when a
// base URL is configured.
type OpenAI struct {
	client *openai.Client
	cfg    analysis.Configuration
}

func NewOpenAI(cfg analysis.Configuration) (*OpenAI, error) {
	var client *openai.Client

	// Retry policy lives in the engine, so the client's own retries
	// are switched off.
	opts := []option.RequestOption{option.WithMaxRetries(0)}

	switch {
	case cfg.BaseURL != "":
		// Local endpoint: credential optional, model name passed
		// through without validation.
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		if cfg.Credential != "" {
			opts = append(opts, option.WithAPIKey(cfg.Credential))
		}
		client = openai.NewClient(opts...)
	default:
		if cfg.Credential == "" {
			return nil, errors.New("credential required for hosted provider")
		}
		client = openai.NewClient(append(opts, option.WithAPIKey(cfg.Credential))...)
	}

	return &OpenAI{
		client: client,
		cfg:    cfg,
	}, nil
}

func (o *OpenAI) Complete(ctx context.Context, prompt string, opts ...Option) (*Completion, error) {
	// Apply options over the configured defaults
	options := &Options{
		Model:       o.cfg.Model,
		Temperature: o.cfg.Temperature,
		MaxTokens:   4096,
	}
	for _, opt := range opts {
		opt(options)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := o.client.Chat.Completions.New(
		ctx,
		openai.ChatCompletionNewParams{
			Model: openai.F(options.Model),
			Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemMessage),
				openai.UserMessage(prompt),
			}),
			Temperature: openai.F(options.Temperature),
			MaxTokens:   openai.F(options.MaxTokens),
		},
	)
	if err != nil {
		return nil, classify(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no completion choices returned", ErrUnavailable)
	}

	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// classify maps transport and provider failures onto the two backend
// failure classes.
func classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusUnauthorized,
			apierr.StatusCode == http.StatusForbidden,
			apierr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRejected, err)
		case apierr.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		default:
			// Remaining 4xx: the provider understood us and said no.
			return fmt.Errorf("%w: %v", ErrRejected, err)
		}
	}
	// No structured API error means the transport itself failed:
	// connection refused, DNS, or the per-call deadline.
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
