package usecase

import (
	"context"
	"time"

	"shop/internal/infra/event"

	"go.uber.org/zap"
)

// コミット後にやること（イベント送信・メトリクス）をためておく
// ロールバックしたら捨てる
type outbox struct {
	events  []event.Envelope
	hooks   []func()
	dropped []droppedEvent
}

// 組み立てに失敗したイベント（flushでWarnを出す）
type droppedEvent struct {
	eventType     string
	correlationID string
	err           error
}

func (o *outbox) add(eventType string, correlationID string, at time.Time, payload any) {
	env, err := event.New(eventType, correlationID, at, payload)
	if err != nil {
		o.dropped = append(o.dropped, droppedEvent{eventType: eventType, correlationID: correlationID, err: err})
		return
	}
	o.events = append(o.events, env)
}

func (o *outbox) onCommit(fn func()) {
	o.hooks = append(o.hooks, fn)
}

// 送信失敗はログだけ
func (o *outbox) flush(ctx context.Context, pub event.Publisher, log *zap.Logger) {
	for _, fn := range o.hooks {
		fn()
	}
	for _, d := range o.dropped {
		log.Warn("event dropped",
			zap.String("event_type", d.eventType),
			zap.String("correlation_id", d.correlationID),
			zap.Error(d.err),
		)
	}
	if len(o.events) == 0 || pub == nil {
		return
	}
	if err := pub.Publish(ctx, o.events...); err != nil {
		log.Warn("event publish failed",
			zap.Int("events", len(o.events)),
			zap.String("first_type", o.events[0].EventType),
			zap.Error(err),
		)
	}
}
