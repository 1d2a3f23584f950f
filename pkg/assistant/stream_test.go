package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/xpanvictor/telly/pkg/Logger"
	"github.com/xpanvictor/telly/pkg/assistant/adapters"
	"github.com/xpanvictor/telly/pkg/render"
)

func deltasOf(deltas ...adapters.ContractResponseDelta) <-chan adapters.ContractResponseDelta {
	ch := make(chan adapters.ContractResponseDelta, len(deltas))
	for _, d := range deltas {
		ch <- d
	}
	close(ch)
	return ch
}

func collect(t *testing.T, items <-chan render.StreamItem) []render.StreamItem {
	t.Helper()
	var out []render.StreamItem
	for it := range items {
		out = append(out, it)
	}
	return out
}

func TestCumulativeAccumulatesDeltas(t *testing.T) {
	items := collect(t, Cumulative(context.Background(), Logger.New(true), deltasOf(
		adapters.ContractResponseDelta{Content: "partial"},
		adapters.ContractResponseDelta{Content: " A"},
		adapters.ContractResponseDelta{Content: "BC", Done: true, Tokens: 12},
	)))

	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	wantContent := []string{"partial", "partial A", "partial ABC"}
	for i, want := range wantContent {
		if items[i].Content != want {
			t.Fatalf("item %d content = %q, want %q", i, items[i].Content, want)
		}
	}
	if !items[2].Usage.Finished || items[2].Usage.Tokens != 12 {
		t.Fatalf("terminal usage = %+v, want finished with 12 tokens", items[2].Usage)
	}
	if items[0].Usage.Finished || items[1].Usage.Finished {
		t.Fatalf("intermediate items must be pending")
	}
}

func TestCumulativeDetectsDirectResult(t *testing.T) {
	payload := `{"direct_result":{"kind":"photo","format":"url","value":"http://x/y.png"}}`
	items := collect(t, Cumulative(context.Background(), Logger.New(true), deltasOf(
		adapters.ContractResponseDelta{Content: payload[:20]},
		adapters.ContractResponseDelta{Content: payload[20:], Done: true},
	)))

	if len(items) != 1 {
		t.Fatalf("items = %v, want the partial JSON suppressed and a single direct item", items)
	}
	d := items[0].Direct
	if d == nil || d.Kind != render.DirectPhoto || d.Format != render.FormatURL || d.Value != "http://x/y.png" {
		t.Fatalf("direct = %+v, want the photo payload", d)
	}
}

func TestCumulativeMalformedDirectResultIsUpstreamError(t *testing.T) {
	items := collect(t, Cumulative(context.Background(), Logger.New(true), deltasOf(
		adapters.ContractResponseDelta{Content: `{"direct_result":{"kind":`, Done: true},
	)))

	if len(items) != 1 || items[0].Err == nil {
		t.Fatalf("items = %+v, want a single error item", items)
	}
}

func TestCumulativeJSONLookingTextStillRenders(t *testing.T) {
	items := collect(t, Cumulative(context.Background(), Logger.New(true), deltasOf(
		adapters.ContractResponseDelta{Content: `{"answer": 42}`, Done: true, Tokens: 3},
	)))

	if len(items) != 1 || items[0].Content != `{"answer": 42}` {
		t.Fatalf("items = %+v, want the JSON text rendered as text", items)
	}
	if !items[0].Usage.Finished {
		t.Fatalf("terminal item must carry the finished signal")
	}
}

func TestCumulativePropagatesUpstreamError(t *testing.T) {
	boom := errors.New("model fell over")
	items := collect(t, Cumulative(context.Background(), Logger.New(true), deltasOf(
		adapters.ContractResponseDelta{Content: "part"},
		adapters.ContractResponseDelta{Err: boom},
	)))

	last := items[len(items)-1]
	if !errors.Is(last.Err, boom) {
		t.Fatalf("last item err = %v, want the upstream cause", last.Err)
	}
}
