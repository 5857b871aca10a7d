// Package discovery implements the discovery watcher: a long-poll over
// the engine's event stream translated into the router's discovery
// message vocabulary, reconnecting itself with bounded backoff instead
// of terminating the channel on error.
package discovery

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mobystash/mobystash/internal/domain"
	"github.com/mobystash/mobystash/internal/mobyclient"
	"github.com/rs/zerolog"
)

// Watcher turns engine container lifecycle events into discovery
// messages. It owns its own reconnect/backoff policy so a transport
// hiccup never surfaces as a dropped container.
type Watcher struct {
	engine mobyclient.EngineClient
	logger zerolog.Logger
}

func New(engine mobyclient.EngineClient, logger zerolog.Logger) *Watcher {
	return &Watcher{engine: engine, logger: logger}
}

// Subscribe starts the watch loop and returns a channel of discovery
// messages. The channel is closed when ctx is canceled. since is the
// starting point for the event long-poll (typically time.Now() at
// startup, since the router separately enumerates existing containers).
func (w *Watcher) Subscribe(ctx context.Context, since time.Time) <-chan domain.DiscoveryMessage {
	out := make(chan domain.DiscoveryMessage, 100)

	go func() {
		defer close(out)

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.Multiplier = 2
		b.MaxInterval = time.Minute
		b.MaxElapsedTime = 0

		cursor := since
		for {
			if ctx.Err() != nil {
				return
			}

			eventCh, errCh := w.engine.Events(ctx, cursor)
			connErr := w.pump(ctx, eventCh, errCh, out, &cursor)
			if ctx.Err() != nil {
				return
			}
			if connErr == nil {
				// Channel closed cleanly without ctx cancellation: engine
				// hung up: reconnect without treating it as an escalating
				// failure.
				b.Reset()
				continue
			}

			wait := b.NextBackOff()
			w.logger.Warn().Err(connErr).Dur("backoff", wait).Msg("Lost connection to engine event stream; reconnecting")

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()

	return out
}

// pump relays one connection's worth of events onto out, advancing
// *cursor past each delivered event's time so a reconnect only
// re-requests a small overlap rather than the full history. It returns
// nil if the event channel closed without an explicit error (treated as
// a clean disconnect worth an immediate reconnect), or the transport
// error otherwise.
func (w *Watcher) pump(ctx context.Context, eventCh <-chan mobyclient.Event, errCh <-chan error, out chan<- domain.DiscoveryMessage, cursor *time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errCh:
			if ok && err != nil {
				return err
			}
		case ev, ok := <-eventCh:
			if !ok {
				return nil
			}
			*cursor = ev.Time

			msg, handled := translate(ev)
			if !handled {
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func translate(ev mobyclient.Event) (domain.DiscoveryMessage, bool) {
	if ev.Type != "container" {
		return domain.DiscoveryMessage{}, false
	}
	switch ev.Action {
	case "start", "create":
		return domain.Created(ev.Id), true
	case "die", "destroy", "kill":
		return domain.Destroyed(ev.Id), true
	default:
		return domain.DiscoveryMessage{}, false
	}
}
