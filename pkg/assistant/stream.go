package assistant

import (
	"fmt"
	"strings"

	"context"

	"github.com/xpanvictor/telly/pkg/Logger"
	"github.com/xpanvictor/telly/pkg/assistant/adapters"
	"github.com/xpanvictor/telly/pkg/render"
)

// Cumulative turns a channel of content deltas into the renderer's stream
// of cumulative items: every emitted item carries the full text so far and
// replaces the previous render. Payloads that look like a direct-result
// envelope are held back from rendering and resolved once the stream is
// done; a payload that names direct_result but fails to parse terminates
// the stream as an upstream error.
func Cumulative(ctx context.Context, logger *Logger.Logger, deltas <-chan adapters.ContractResponseDelta) <-chan render.StreamItem {
	out := make(chan render.StreamItem, 8)

	go func() {
		defer close(out)

		var b strings.Builder
		emit := func(item render.StreamItem) bool {
			select {
			case out <- item:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			var d adapters.ContractResponseDelta
			select {
			case <-ctx.Done():
				return
			case dd, ok := <-deltas:
				if !ok {
					return
				}
				d = dd
			}

			if d.Err != nil {
				emit(render.StreamItem{Err: d.Err})
				return
			}
			b.WriteString(d.Content)
			content := b.String()

			if looksLikeEnvelope(content) {
				if !d.Done {
					// hold partial JSON back; it must never hit the chat
					continue
				}
				direct, err := render.ParseDirectResult(content)
				switch {
				case err == nil && direct != nil:
					emit(render.StreamItem{Direct: direct, Aux: true})
				case err != nil && strings.Contains(content, "direct_result"):
					logger.Warnf("malformed direct result payload: %v", err)
					emit(render.StreamItem{Err: fmt.Errorf("malformed direct result: %w", err)})
				default:
					// JSON-shaped but ordinary text after all
					emit(render.StreamItem{Content: content, Usage: render.Finished(d.Tokens)})
				}
				return
			}

			usage := render.Pending
			if d.Done {
				usage = render.Finished(d.Tokens)
			}
			if !emit(render.StreamItem{Content: content, Usage: usage}) {
				return
			}
			if d.Done {
				return
			}
		}
	}()

	return out
}

func looksLikeEnvelope(content string) bool {
	return strings.HasPrefix(strings.TrimSpace(content), "{")
}
