package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xpanvictor/telly/pkg/Logger"
)

type captureUsage struct {
	calls []int
}

func (c *captureUsage) ReportUsage(_ context.Context, tokens int) error {
	c.calls = append(c.calls, tokens)
	return nil
}

func testDriver(cfg Config, usage UsageReporter) *Driver {
	return New(cfg, Logger.New(true), usage)
}

func TestRenderProgressiveStream(t *testing.T) {
	sink := &scriptedSink{}
	usage := &captureUsage{}
	d := testDriver(Config{}, usage)

	out := d.Render(context.Background(), streamOf(
		StreamItem{Content: "partial A", Usage: Pending},
		StreamItem{Content: "partial AB", Usage: Pending},
		StreamItem{Content: "partial ABC", Usage: Finished(12)},
	), sink)

	if out.Kind != OutcomeRendered {
		t.Fatalf("outcome = %v (err %v), want rendered", out.Kind, out.Err)
	}
	if len(sink.sends) != 1 || sink.sends[0] != "partial A" {
		t.Fatalf("sends = %v, want exactly one with the first content", sink.sends)
	}
	if len(sink.edits) != 1 || sink.edits[0] != "partial ABC" {
		t.Fatalf("edits = %v, want exactly the final flush", sink.edits)
	}
	if out.FinalText != "partial ABC" || out.Usage != 12 {
		t.Fatalf("final = (%q, %d), want (partial ABC, 12)", out.FinalText, out.Usage)
	}
	if len(usage.calls) != 1 || usage.calls[0] != 12 {
		t.Fatalf("usage reports = %v, want a single report of 12", usage.calls)
	}
}

func TestRenderDirectResultBypassesText(t *testing.T) {
	sink := &scriptedSink{}
	d := testDriver(Config{}, nil)

	payload := DirectResult{Kind: DirectPhoto, Format: FormatURL, Value: "http://x/y.png"}
	out := d.Render(context.Background(), streamOf(
		StreamItem{Direct: &payload},
	), sink)

	if out.Kind != OutcomeDirectHandled {
		t.Fatalf("outcome = %v, want direct handled", out.Kind)
	}
	if len(sink.sends)+len(sink.edits) != 0 {
		t.Fatalf("text transport touched on direct result: %v / %v", sink.sends, sink.edits)
	}
	if len(sink.directs) != 1 || sink.directs[0] != payload {
		t.Fatalf("direct deliveries = %v, want exactly the payload", sink.directs)
	}
}

func TestRenderDirectResultDeletesPlaceholder(t *testing.T) {
	sink := &scriptedSink{}
	d := testDriver(Config{}, nil)

	out := d.Render(context.Background(), streamOf(
		StreamItem{Content: "working on it", Usage: Pending},
		StreamItem{Direct: &DirectResult{Kind: DirectFile, Format: FormatPath, Value: "/tmp/out.pdf"}},
	), sink)

	if out.Kind != OutcomeDirectHandled {
		t.Fatalf("outcome = %v, want direct handled", out.Kind)
	}
	if len(sink.deletes) != 1 {
		t.Fatalf("deletes = %d, want the placeholder removed", len(sink.deletes))
	}
}

func TestRenderOverflowFinalizesChunkAndOpensNewMessage(t *testing.T) {
	sink := &scriptedSink{}
	d := testDriver(Config{MaxMessageSize: 10}, nil)

	out := d.Render(context.Background(), streamOf(
		StreamItem{Content: "12345678", Usage: Pending},
		StreamItem{Content: "1234567890AB", Usage: Pending},
	), sink)

	if out.Kind != OutcomeRendered {
		t.Fatalf("outcome = %v (err %v), want rendered", out.Kind, out.Err)
	}
	if len(sink.edits) == 0 || sink.edits[0] != "1234567890" {
		t.Fatalf("edits = %v, want the completed chunk finalized first", sink.edits)
	}
	if len(sink.sends) != 2 || sink.sends[1] != "AB" {
		t.Fatalf("sends = %v, want a second message carrying the remainder", sink.sends)
	}
}

func TestRenderIdenticalContentAbsorbedAsUnmodified(t *testing.T) {
	sink := &scriptedSink{editErrs: []error{ErrUnmodified}}
	d := testDriver(Config{}, nil)

	out := d.Render(context.Background(), streamOf(
		StreamItem{Content: "hello there, general", Usage: Pending},
		StreamItem{Content: "hello there, general", Usage: Finished(3)},
	), sink)

	if out.Kind != OutcomeRendered {
		t.Fatalf("outcome = %v (err %v), want rendered", out.Kind, out.Err)
	}
	if len(sink.edits) != 0 {
		t.Fatalf("edits applied = %v, want the duplicate absorbed as a no-op", sink.edits)
	}
	if out.FinalText != "hello there, general" {
		t.Fatalf("final text = %q", out.FinalText)
	}
}

func TestRenderFirstSendFailureIsFatal(t *testing.T) {
	sink := &scriptedSink{sendErrs: []error{errors.New("chat not found")}}
	d := testDriver(Config{}, nil)

	out := d.Render(context.Background(), streamOf(
		StreamItem{Content: "hello", Usage: Pending},
	), sink)

	if out.Kind != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed on first placeholder", out.Kind)
	}
	if out.Err == nil {
		t.Fatalf("failed outcome carries no error")
	}
}

func TestRenderEditFailureDoesNotAbortStream(t *testing.T) {
	sink := &scriptedSink{editErrs: []error{errors.New("bad markup")}}
	d := testDriver(Config{}, nil)

	long := make([]byte, 120)
	for i := range long {
		long[i] = 'x'
	}
	out := d.Render(context.Background(), streamOf(
		StreamItem{Content: "hi", Usage: Pending},
		StreamItem{Content: "hi " + string(long), Usage: Pending},
		StreamItem{Content: "hi " + string(long) + " done", Usage: Finished(7)},
	), sink)

	if out.Kind != OutcomeRendered {
		t.Fatalf("outcome = %v (err %v), want rendered despite a skipped edit", out.Kind, out.Err)
	}
	if out.Usage != 7 {
		t.Fatalf("usage = %d, want 7", out.Usage)
	}
}

func TestRenderUpstreamErrorAppendsFailureSuffix(t *testing.T) {
	sink := &scriptedSink{}
	d := testDriver(Config{FailureSuffix: "something went wrong"}, nil)

	boom := errors.New("backend hung up")
	out := d.Render(context.Background(), streamOf(
		StreamItem{Content: "partial answer", Usage: Pending},
		StreamItem{Err: boom},
	), sink)

	if out.Kind != OutcomeFailed || !errors.Is(out.Err, boom) {
		t.Fatalf("outcome = (%v, %v), want failed with the upstream cause", out.Kind, out.Err)
	}
	if out.LastText != "partial answer" {
		t.Fatalf("last text = %q, want the pre-failure render preserved", out.LastText)
	}
	last := sink.edits[len(sink.edits)-1]
	if last != "partial answer\n\nsomething went wrong" {
		t.Fatalf("final edit = %q, want the failure suffix appended", last)
	}
}

func TestRenderCancellationLeavesLastRenderIntact(t *testing.T) {
	sink := &scriptedSink{}
	d := testDriver(Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan StreamItem)
	done := make(chan Outcome, 1)
	go func() { done <- d.Render(ctx, ch, sink) }()

	ch <- StreamItem{Content: "first part", Usage: Pending}
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case out := <-done:
		if out.Kind != OutcomeFailed || !errors.Is(out.Err, context.Canceled) {
			t.Fatalf("outcome = (%v, %v), want failed with context.Canceled", out.Kind, out.Err)
		}
		if out.LastText != "first part" {
			t.Fatalf("last text = %q, want the last successful render", out.LastText)
		}
		if len(sink.edits) != 0 {
			t.Fatalf("edits after cancel = %v, want the message untouched", sink.edits)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("render did not return after cancellation")
	}
}

func TestRenderSkipsEmptyContentAndZeroUsageReport(t *testing.T) {
	sink := &scriptedSink{}
	usage := &captureUsage{}
	d := testDriver(Config{}, usage)

	out := d.Render(context.Background(), streamOf(
		StreamItem{Content: "", Usage: Pending},
		StreamItem{Content: "   ", Usage: Pending},
	), sink)

	if out.Kind != OutcomeRendered {
		t.Fatalf("outcome = %v, want rendered", out.Kind)
	}
	if len(sink.sends) != 0 {
		t.Fatalf("sends = %v, want none for blank content", sink.sends)
	}
	if len(usage.calls) != 0 {
		t.Fatalf("usage reports = %v, want none for a zero total", usage.calls)
	}
}
