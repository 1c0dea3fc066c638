package bot

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/airalert/airalert/internal/telegram"
)

// UpdateSource long-polls for updates.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64) ([]telegram.Update, error)
}

// PollerConfig holds configuration for a Poller.
type PollerConfig struct {
	Source     UpdateSource
	Dispatcher *Dispatcher

	// MaxBackoff caps the wait after consecutive poll failures (default: 1 minute).
	MaxBackoff time.Duration

	Logger zerolog.Logger
}

// Poller receives updates with getUpdates and hands them to a Dispatcher.
type Poller struct {
	source     UpdateSource
	dispatcher *Dispatcher
	maxBackoff time.Duration
	logger     zerolog.Logger
}

// NewPoller creates a Poller.
func NewPoller(cfg PollerConfig) *Poller {
	maxBackoff := cfg.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = time.Minute
	}
	return &Poller{
		source:     cfg.Source,
		dispatcher: cfg.Dispatcher,
		maxBackoff: maxBackoff,
		logger:     cfg.Logger,
	}
}

// Run polls until ctx is cancelled, then returns nil. Poll failures are
// logged and retried with backoff; they never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = min(time.Second, p.maxBackoff)
	bo.MaxInterval = p.maxBackoff
	bo.MaxElapsedTime = 0

	var offset int64

	p.logger.Info().Msg("telegram poller started")
	defer p.logger.Info().Msg("telegram poller stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		updates, err := p.source.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			wait := bo.NextBackOff()
			p.logger.Warn().Err(err).Dur("retry_in", wait).Msg("telegram poll failed")
			if !sleep(ctx, wait) {
				return nil
			}
			continue
		}
		bo.Reset()

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.dispatcher.Dispatch(ctx, u)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
