package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
)

// Message lifecycle states. One stream owns at most one open message at a
// time; overflow finalizes the open one and immediately opens the next.
const (
	stateIdle       = "idle"
	stateSent       = "sent"
	stateFinalizing = "finalizing"
	stateDone       = "done"
)

const (
	eventSend     = "send"
	eventOverflow = "overflow"
	eventFinalize = "finalize"
	eventComplete = "complete"
	eventDirect   = "direct"
)

// lifecycle owns the single outgoing message that represents a stream and
// the transitions between "not yet sent", "sent and being edited",
// "finalized" and "replaced due to overflow".
type lifecycle struct {
	machine  *fsm.FSM
	sink     MessageSink
	ref      *MessageRef
	lastText string
}

func newLifecycle(sink MessageSink) *lifecycle {
	return &lifecycle{
		machine: fsm.NewFSM(
			stateIdle,
			fsm.Events{
				{Name: eventSend, Src: []string{stateIdle}, Dst: stateSent},
				{Name: eventOverflow, Src: []string{stateSent}, Dst: stateSent},
				{Name: eventFinalize, Src: []string{stateIdle, stateSent}, Dst: stateFinalizing},
				{Name: eventComplete, Src: []string{stateFinalizing}, Dst: stateDone},
				{Name: eventDirect, Src: []string{stateIdle, stateSent, stateFinalizing}, Dst: stateDone},
			},
			fsm.Callbacks{},
		),
		sink: sink,
	}
}

func (l *lifecycle) state() string { return l.machine.Current() }

func (l *lifecycle) hasMessage() bool { return l.ref != nil }

// open sends the placeholder message for this stream.
func (l *lifecycle) open(ctx context.Context, text string) error {
	ref, err := l.sink.SendMessage(ctx, text)
	if err != nil {
		return err
	}
	if err := l.machine.Event(ctx, eventSend); err != nil {
		return fmt.Errorf("lifecycle send: %w", err)
	}
	l.ref = &ref
	l.lastText = text
	return nil
}

// update edits the open message in place with new cumulative content.
func (l *lifecycle) update(ctx context.Context, text string) error {
	if l.ref == nil {
		return fmt.Errorf("no open message to edit")
	}
	if err := l.sink.EditMessage(ctx, *l.ref, text); err != nil {
		return err
	}
	l.lastText = text
	return nil
}

// rollover handles a chunk boundary crossed mid-stream: the now-complete
// earlier chunk becomes the permanent content of the current message and a
// fresh placeholder is opened for the remainder. Edits can only replace the
// open message, never retroactively append, so both steps are best-effort
// in isolation but the new placeholder must exist to keep streaming.
func (l *lifecycle) rollover(ctx context.Context, completedChunk, remainder string) error {
	if l.ref != nil {
		// finalize the completed chunk; a failed cosmetic edit is not fatal
		_ = l.sink.EditMessage(ctx, *l.ref, completedChunk)
	}
	if err := l.machine.Event(ctx, eventOverflow); err != nil {
		return fmt.Errorf("lifecycle overflow: %w", err)
	}
	next := remainder
	if next == "" {
		next = "..."
	}
	ref, err := l.sink.SendMessage(ctx, next)
	if err != nil {
		return err
	}
	l.ref = &ref
	l.lastText = next
	return nil
}

// finalize closes the stream's message out with its terminal content.
func (l *lifecycle) finalize(ctx context.Context, text string) error {
	if err := l.machine.Event(ctx, eventFinalize); err != nil {
		return fmt.Errorf("lifecycle finalize: %w", err)
	}
	var editErr error
	if l.ref != nil && text != "" && text != l.lastText {
		editErr = l.sink.EditMessage(ctx, *l.ref, text)
		if editErr == nil || errors.Is(editErr, ErrUnmodified) {
			l.lastText = text
			editErr = nil
		}
	}
	if err := l.machine.Event(ctx, eventComplete); err != nil {
		return fmt.Errorf("lifecycle complete: %w", err)
	}
	return editErr
}

// discard tears the placeholder down for the direct-result path. Deletion
// is best-effort; a leftover placeholder is preferable to a failed stream.
func (l *lifecycle) discard(ctx context.Context) {
	if l.ref != nil {
		_ = l.sink.DeleteMessage(ctx, *l.ref)
		l.ref = nil
		l.lastText = ""
	}
	_ = l.machine.Event(ctx, eventDirect)
}
