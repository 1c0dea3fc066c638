package bot

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/airalert/airalert/internal/telegram"
)

// MessageHandler handles one chat message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, chatID, text string)
}

// Dispatcher runs each update on its own goroutine. The poller and the
// webhook share one Dispatcher.
type Dispatcher struct {
	handler MessageHandler
	logger  zerolog.Logger
	sem     chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher running at most maxInFlight handlers
// at once (default: 16).
func NewDispatcher(handler MessageHandler, maxInFlight int, logger zerolog.Logger) *Dispatcher {
	if maxInFlight <= 0 {
		maxInFlight = 16
	}
	return &Dispatcher{
		handler: handler,
		logger:  logger,
		sem:     make(chan struct{}, maxInFlight),
	}
}

// Dispatch starts handling u and returns. Updates without text are dropped.
// While maxInFlight handlers are running Dispatch blocks, so a burst of
// updates slows the poller down; if ctx is done first the update is dropped.
// The handler runs on a context that is not cancelled with ctx, so a reply
// in progress is finished on shutdown; use Wait to wait for it.
func (d *Dispatcher) Dispatch(ctx context.Context, u telegram.Update) {
	if u.Message == nil || u.Message.Text == "" {
		return
	}

	select {
	case d.sem <- struct{}{}:
	default:
		select {
		case d.sem <- struct{}{}:
		case <-ctx.Done():
			d.logger.Warn().
				Int64("update_id", u.UpdateID).
				Msg("dropping update, dispatcher busy")
			return
		}
	}

	chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
	text := u.Message.Text
	handlerCtx := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.sem }()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error().
					Interface("panic", r).
					Int64("update_id", u.UpdateID).
					Msg("command handler panicked")
			}
		}()

		d.handler.HandleMessage(handlerCtx, chatID, text)
	}()
}

// Wait blocks until every dispatched handler has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
