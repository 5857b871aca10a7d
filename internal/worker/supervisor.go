package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mobystash/mobystash/internal/metrics"
	"github.com/rs/zerolog"
)

// Runner is the minimal interface the Supervisor drives — a strategy
// object, favoring a dedicated supervisor type over baking
// restart/backoff policy into the worker itself.
type Runner interface {
	RunOnce(ctx context.Context) error
}

// Supervisor wraps a Runner with the restart policy: on a transient
// error, retry with bounded exponential backoff and increment an
// exception counter; never give up unless the context is canceled. It
// is built as its own type over cenkalti/backoff rather than a mixed-in
// base class, which Go doesn't have.
type Supervisor struct {
	name, id string
	runner   Runner
	logger   zerolog.Logger
}

func NewSupervisor(name, id string, runner Runner, logger zerolog.Logger) *Supervisor {
	return &Supervisor{name: name, id: id, runner: runner, logger: logger}
}

// Run loops RunOnce until it returns ErrTerminated, ctx is canceled, or
// RunOnce returns nil having completed cleanly under cancellation.
func (s *Supervisor) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = 2 * time.Minute
	b.MaxElapsedTime = 0 // never give up

	for {
		err := s.runner.RunOnce(ctx)
		if err == nil {
			if ctx.Err() != nil {
				return nil
			}
			b.Reset()
			continue
		}
		if errors.Is(err, ErrTerminated) {
			s.logger.Info().Str("container_id", s.id).Msg("Container terminated; worker exiting")
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		metrics.ReadEventExceptions.WithLabelValues(s.name, s.id, fmt.Sprintf("%T", err)).Inc()
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		s.logger.Warn().Err(err).Dur("backoff", wait).Msg("Transient error reading container logs; retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
