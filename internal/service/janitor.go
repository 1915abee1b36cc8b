package service

import (
	"context"
	"sync"
	"time"

	"github.com/Payphone-Digital/identity/internal/repository"
	ctxutil "github.com/Payphone-Digital/identity/pkg/context"
	"github.com/Payphone-Digital/identity/pkg/logger"
)

// SessionJanitor periodically removes refresh sessions past their expiry.
// Refresh already rejects them; this only keeps the table small.
type SessionJanitor struct {
	sessions repository.RefreshSessionRepository
	every    time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewSessionJanitor(sessions repository.RefreshSessionRepository, every time.Duration) *SessionJanitor {
	return &SessionJanitor{
		sessions: sessions,
		every:    every,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start sweeps once immediately and then on every tick until Stop.
func (j *SessionJanitor) Start(ctx context.Context) {
	ctx = ctxutil.WithFunction(ctx, "janitor", "SweepSessions")
	go func() {
		defer close(j.done)
		ticker := time.NewTicker(j.every)
		defer ticker.Stop()

		j.sweepAndLog(ctx)
		for {
			select {
			case <-ticker.C:
				j.sweepAndLog(ctx)
			case <-j.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (j *SessionJanitor) Sweep(ctx context.Context) (int64, error) {
	return j.sessions.DeleteExpired(ctx, j.now())
}

func (j *SessionJanitor) sweepAndLog(ctx context.Context) {
	start := time.Now()
	n, err := j.Sweep(ctx)
	if err != nil {
		logger.ErrorWithContext(ctx, "Session sweep failed").Err(err).Log()
		return
	}
	if n > 0 {
		logger.InfoWithContext(ctx, "Expired sessions removed").
			Int64("count", n).
			Duration(time.Since(start)).
			Log()
	}
}

// Stop ends the loop and waits for an in-flight sweep.
func (j *SessionJanitor) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
	<-j.done
}
