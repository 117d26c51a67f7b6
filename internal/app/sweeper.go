package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// Sweeper expires broadcasts whose end time has passed, so rooms nobody is
// watching still go away.
type Sweeper struct {
	broadcasts *Broadcasts
	interval   time.Duration
	now        func() time.Time
}

func NewSweeper(broadcasts *Broadcasts, interval time.Duration, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{broadcasts: broadcasts, interval: interval, now: now}
}

// Run sweeps every interval until ctx is done. A zero interval disables it.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		log.Info().Str("module", "app.sweeper").Msg("sweeper disabled")
		return nil
	}
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.sweeper").Msg("sweeper stopped")
			return nil
		case <-t.C:
			if _, err := s.Sweep(ctx); err != nil {
				log.Error().Err(err).Str("module", "app.sweeper").Msg("sweep failed")
			}
		}
	}
}

// Sweep expires every due broadcast once and returns how many it removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	active, err := s.broadcasts.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	var n atomic.Int64
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(4)
	for _, b := range active {
		if !b.Expired(now) {
			continue
		}
		p.Go(func(ctx context.Context) error {
			if err := s.broadcasts.Expire(ctx, b.ID); err != nil {
				return err
			}
			n.Add(1)
			return nil
		})
	}
	err = p.Wait()
	if n.Load() > 0 {
		log.Info().Str("module", "app.sweeper").Int64("expired", n.Load()).Msg("swept")
	}
	return int(n.Load()), err
}
