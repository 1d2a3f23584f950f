package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DirectKind is the kind of a non-text deliverable produced by a plugin.
type DirectKind string

const (
	DirectPhoto DirectKind = "photo"
	DirectGif   DirectKind = "gif"
	DirectFile  DirectKind = "file"
	DirectDice  DirectKind = "dice"
)

// DirectFormat says how the value of a direct result should be read.
type DirectFormat string

const (
	FormatURL  DirectFormat = "url"
	FormatPath DirectFormat = "path"
)

// DirectResult bypasses normal message rendering entirely. The wire layout
// is fixed; downstream plugins depend on it.
type DirectResult struct {
	Kind   DirectKind   `json:"kind"`
	Format DirectFormat `json:"format"`
	Value  string       `json:"value"`
}

// DirectEnvelope is the payload shape plugins emit in place of assistant text.
type DirectEnvelope struct {
	DirectResult *DirectResult `json:"direct_result"`
}

// ParseDirectResult extracts a direct result from a raw payload.
// Returns nil with no error when the payload is ordinary text.
func ParseDirectResult(raw string) (*DirectResult, error) {
	var env DirectEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, err
	}
	return env.DirectResult, nil
}

// UsageSignal reports whether the backend has finished and, if so,
// how many tokens the whole exchange consumed.
type UsageSignal struct {
	Finished bool
	Tokens   int
}

// Pending marks an in-progress item.
var Pending = UsageSignal{}

// Finished marks the terminal item of a stream.
func Finished(tokens int) UsageSignal {
	return UsageSignal{Finished: true, Tokens: tokens}
}

// StreamItem is one incremental update from the generative backend.
// Content is the full cumulative text so far, never a delta: each item
// replaces the previous render rather than appending to it.
type StreamItem struct {
	Content string
	Usage   UsageSignal
	Aux     bool // a side effect (e.g. image generation) happened this step
	Direct  *DirectResult
	Err     error // upstream backend failure; terminates the stream
}

// MessageRef identifies the one outgoing message a stream renders into.
// It is owned by the transport adapter; the renderer only carries it.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// MessageSink is the transport side of the renderer. Implementations must
// return the typed errors below so the backoff controller can classify
// failures; any other error is treated as a generic transport fault.
type MessageSink interface {
	SendMessage(ctx context.Context, text string) (MessageRef, error)
	EditMessage(ctx context.Context, ref MessageRef, text string) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	DeliverDirect(ctx context.Context, payload DirectResult) error
}

// UsageReporter receives the terminal token count of a rendered stream.
type UsageReporter interface {
	ReportUsage(ctx context.Context, tokens int) error
}

// RateLimitedError is returned by sinks when the transport floods.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %v", e.RetryAfter)
}

var (
	// ErrTimeout is a transient transport timeout.
	ErrTimeout = errors.New("transport timed out")
	// ErrUnmodified means an edit carried identical content; a no-op.
	ErrUnmodified = errors.New("message not modified")
)

// OutcomeKind discriminates the result of one Render call.
type OutcomeKind int

const (
	OutcomeRendered OutcomeKind = iota
	OutcomeDirectHandled
	OutcomeFailed
)

// Outcome is the terminal result of rendering one stream.
type Outcome struct {
	Kind      OutcomeKind
	FinalText string // complete rendered text (Rendered)
	Usage     int    // total tokens consumed
	Direct    *DirectResult
	LastText  string // last successfully rendered text (Failed)
	Err       error
}

// Config tunes one Driver. MaxMessageSize is the transport hard limit for
// a single message; IsGroup selects the stricter cadence tier.
type Config struct {
	MaxMessageSize    int
	IsGroup           bool
	BackoffStep       int
	TimeoutRetryDelay time.Duration
	FailureSuffix     string
}

// DefaultMaxMessageSize matches the Telegram message hard limit.
const DefaultMaxMessageSize = 4096

// DefaultBackoffStep is added to the cumulative backoff accumulator after
// every transient transport failure.
const DefaultBackoffStep = 5

func (c Config) withDefaults() Config {
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.BackoffStep <= 0 {
		c.BackoffStep = DefaultBackoffStep
	}
	if c.TimeoutRetryDelay <= 0 {
		c.TimeoutRetryDelay = 500 * time.Millisecond
	}
	return c
}
