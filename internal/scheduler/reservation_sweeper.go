package scheduler

import (
	"context"
	"time"

	"shop/internal/infra/metrics"

	"go.uber.org/zap"
)

// 期限切れ引当を EXPIRED にする処理
type ExpirySweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

type Clock interface {
	Now() time.Time
}

// 一定間隔でスイープする
// 失敗はログに出して次の回でやり直す（チェックアウトは止めない）
type ReservationSweeper struct {
	sweeper  ExpirySweeper
	clock    Clock
	interval time.Duration
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewReservationSweeper(s ExpirySweeper, clock Clock, interval time.Duration, m *metrics.Metrics, log *zap.Logger) *ReservationSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationSweeper{
		sweeper:  s,
		clock:    clock,
		interval: interval,
		metrics:  m,
		log:      log.Named("reservation_sweeper"),
	}
}

// ctxが終わるまで回す（起動直後に1回実行）
func (s *ReservationSweeper) Run(ctx context.Context) error {
	s.log.Info("reservation sweeper started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("reservation sweeper stopped")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *ReservationSweeper) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.sweeper.SweepExpired(ctx, s.clock.Now())
	s.metrics.SweepDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		s.metrics.SweepRuns.WithLabelValues("error").Inc()
		s.log.Error("reservation sweep failed", zap.Error(err))
		return 0, err
	}

	s.metrics.SweepRuns.WithLabelValues("ok").Inc()
	if n > 0 {
		s.log.Info("expired reservations swept", zap.Int64("count", n))
	}
	return n, nil
}
