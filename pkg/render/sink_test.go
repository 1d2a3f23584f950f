package render

import (
	"context"
	"sync"
)

// scriptedSink records every transport call and pops pre-seeded errors so
// tests can script failure sequences.
type scriptedSink struct {
	mu       sync.Mutex
	sends    []string
	edits    []string
	deletes  []MessageRef
	directs  []DirectResult
	sendErrs []error
	editErrs []error
	nextID   int
}

func (s *scriptedSink) popErr(q *[]error) error {
	if len(*q) == 0 {
		return nil
	}
	err := (*q)[0]
	*q = (*q)[1:]
	return err
}

func (s *scriptedSink) SendMessage(_ context.Context, text string) (MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popErr(&s.sendErrs); err != nil {
		return MessageRef{}, err
	}
	s.nextID++
	s.sends = append(s.sends, text)
	return MessageRef{ChatID: 1, MessageID: s.nextID}, nil
}

func (s *scriptedSink) EditMessage(_ context.Context, _ MessageRef, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popErr(&s.editErrs); err != nil {
		return err
	}
	s.edits = append(s.edits, text)
	return nil
}

func (s *scriptedSink) DeleteMessage(_ context.Context, ref MessageRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, ref)
	return nil
}

func (s *scriptedSink) DeliverDirect(_ context.Context, payload DirectResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directs = append(s.directs, payload)
	return nil
}

func streamOf(items ...StreamItem) <-chan StreamItem {
	ch := make(chan StreamItem, len(items))
	for _, it := range items {
		ch <- it
	}
	close(ch)
	return ch
}
