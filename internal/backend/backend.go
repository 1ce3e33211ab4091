package backend

import (
	"context"
	"errors"
)

// The two failure classes of the transport boundary. ErrUnavailable
// covers anything transient (connection refused, timeout, provider
// 5xx) and is retried by the engine; ErrRejected covers terminal
// provider refusals such as auth or quota errors, which no retry can
// fix. Content problems are never classified here.
var (
	ErrUnavailable = errors.New("backend unavailable")
	ErrRejected    = errors.New("backend rejected request")
)

// Backend is the uniform interface to a chat-completion provider.
// One call performs exactly one network round trip.
type Backend interface {
	Complete(ctx context.Context, prompt string, opts ...Option) (*Completion, error)
}

type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

type Option func(*Options)

type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
}

// Completion is one raw model reply plus its token accounting.
type Completion struct {
	Content string
	Usage   Usage
}
