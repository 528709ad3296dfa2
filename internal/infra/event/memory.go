package event

import (
	"context"
	"sync"
)

// 送ったイベントを覚えておく（テスト・ローカル用）
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, events ...Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.events))
	copy(out, r.events)
	return out
}

// 種別で絞る
func (r *Recorder) OfType(eventType string) []Envelope {
	var out []Envelope
	for _, e := range r.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type Nop struct{}

func (Nop) Publish(context.Context, ...Envelope) error { return nil }

var (
	_ Publisher = (*Recorder)(nil)
	_ Publisher = Nop{}
)
