package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/xpanvictor/telly/pkg/Logger"
)

// Driver walks a lazy stream of cumulative content items and renders them
// into the chat transport as a sequence of message edits. One Render call
// owns its whole render state; no two streams ever share one.
type Driver struct {
	cfg    Config
	logger *Logger.Logger
	usage  UsageReporter
}

func New(cfg Config, logger *Logger.Logger, usage UsageReporter) *Driver {
	return &Driver{cfg: cfg.withDefaults(), logger: logger, usage: usage}
}

// Render consumes the stream strictly in order and drives the chunk
// splitter, cadence controller, backoff controller and message lifecycle.
// It suspends only while awaiting the next item or inside a backoff sleep;
// both honor ctx. On cancellation the last successfully rendered message is
// left intact and a Failed outcome is returned.
func (d *Driver) Render(ctx context.Context, stream <-chan StreamItem, sink MessageSink) Outcome {
	cfg := d.cfg
	lc := newLifecycle(sink)
	bo := newBackoffController(cfg.BackoffStep, cfg.TimeoutRetryDelay)

	var (
		prev        string
		content     string
		first       = true
		totalTokens int
		chunkIdx    int
	)

loop:
	for {
		var item StreamItem
		select {
		case <-ctx.Done():
			return Outcome{Kind: OutcomeFailed, LastText: lc.lastText, Err: ctx.Err()}
		case it, ok := <-stream:
			if !ok {
				break loop
			}
			item = it
		}

		if item.Err != nil {
			return d.failWithSuffix(ctx, lc, item.Err)
		}
		if item.Direct != nil {
			lc.discard(ctx)
			if err := sink.DeliverDirect(ctx, *item.Direct); err != nil {
				return Outcome{Kind: OutcomeFailed, LastText: lc.lastText, Err: fmt.Errorf("direct delivery: %w", err)}
			}
			return Outcome{Kind: OutcomeDirectHandled, Direct: item.Direct, Usage: totalTokens}
		}

		content = item.Content
		if strings.TrimSpace(content) == "" {
			continue
		}

		chunks := SplitIntoChunks(content, cfg.MaxMessageSize)
		if len(chunks) > 1 {
			content = chunks[len(chunks)-1]
			if chunkIdx != len(chunks)-1 {
				chunkIdx++
				completed := chunks[len(chunks)-2]
				if !lc.hasMessage() {
					// first item already overflowed: the completed chunk
					// becomes the first permanent message on its own
					if err := lc.open(ctx, completed); err != nil {
						return d.fatalSend(lc, err)
					}
					first = false
				}
				if err := lc.rollover(ctx, completed, content); err != nil {
					d.logger.Warnf("chunk rollover failed: %v", err)
					continue
				}
				prev = content
				continue
			}
		}

		finished := item.Usage.Finished
		if finished {
			totalTokens = item.Usage.Tokens
		}
		cutoff := StreamCutoff(cfg.IsGroup, len(content)) + bo.accum

		if first {
			text := content
			status, err := bo.deliver(ctx, func(c context.Context) error {
				return lc.open(c, text)
			})
			switch status {
			case deliverOK:
				first = false
				prev = content
			case deliverSkipped:
				// no placeholder could be created; nothing to stream into
				return d.fatalSend(lc, err)
			case deliverAborted:
				return Outcome{Kind: OutcomeFailed, LastText: lc.lastText, Err: err}
			}
		} else if shouldRender(false, finished, prev, content, cutoff) {
			prev = content
			text := content
			status, err := bo.deliver(ctx, func(c context.Context) error {
				return lc.update(c, text)
			})
			switch status {
			case deliverSkipped:
				// a single failed cosmetic update never aborts the stream
				d.logger.Warnf("render edit skipped: %v", err)
			case deliverAborted:
				return Outcome{Kind: OutcomeFailed, LastText: lc.lastText, Err: err}
			}
		}
	}

	if err := lc.finalize(ctx, content); err != nil {
		d.logger.Warnf("finalize edit failed: %v", err)
	}
	d.reportUsage(ctx, totalTokens)
	return Outcome{Kind: OutcomeRendered, FinalText: lc.lastText, Usage: totalTokens}
}

func (d *Driver) fatalSend(lc *lifecycle, err error) Outcome {
	return Outcome{
		Kind:     OutcomeFailed,
		LastText: lc.lastText,
		Err:      fmt.Errorf("sending placeholder message: %w", err),
	}
}

// failWithSuffix keeps whatever was already rendered visible and appends a
// localized failure note so the user is never left with a silently stuck
// message.
func (d *Driver) failWithSuffix(ctx context.Context, lc *lifecycle, cause error) Outcome {
	last := lc.lastText
	if lc.hasMessage() && d.cfg.FailureSuffix != "" {
		if err := lc.update(ctx, last+"\n\n"+d.cfg.FailureSuffix); err != nil {
			d.logger.Warnf("failure suffix edit failed: %v", err)
		}
	}
	return Outcome{Kind: OutcomeFailed, LastText: last, Err: cause}
}

func (d *Driver) reportUsage(ctx context.Context, tokens int) {
	if tokens == 0 || d.usage == nil {
		return
	}
	if err := d.usage.ReportUsage(ctx, tokens); err != nil {
		d.logger.Errorf("usage report failed: %v", err)
	}
}
