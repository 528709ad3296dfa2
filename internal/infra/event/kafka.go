package event

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"shop/internal/infra/metrics"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// *kafka.Writer を差し替えられるようにする
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// kafkaへの送信をサーキットブレーカー越しに行う
type KafkaPublisher struct {
	w       MessageWriter
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	log     *zap.Logger
}

func NewKafkaPublisher(w MessageWriter, m *metrics.Metrics, log *zap.Logger) *KafkaPublisher {
	const name = "kafka-events"

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		OnStateChange: func(n string, from, to gobreaker.State) {
			m.BreakerState.WithLabelValues(n).Set(stateValue(to))
			log.Warn("event breaker state changed",
				zap.String("breaker", n),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	m.BreakerState.WithLabelValues(name).Set(0)

	return &KafkaPublisher{w: w, cb: cb, timeout: 5 * time.Second, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...Envelope) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.EventType),
			Value: b,
			Time:  e.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(e.EventType)},
				{Key: "event_id", Value: []byte(e.EventID)},
			},
		})
	}

	_, err := p.cb.Execute(func() (interface{}, error) {
		//リクエストのキャンセルに引きずられないようにする
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		return nil, p.w.WriteMessages(wctx, msgs...)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrBreakerOpen
	}
	return err
}

func (p *KafkaPublisher) State() gobreaker.State {
	return p.cb.State()
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

var ErrBreakerOpen = errors.New("event publisher circuit open")

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

var _ Publisher = (*KafkaPublisher)(nil)
