// Package worker implements the per-container lifecycle: attach,
// stream, parse, sample, forward, checkpoint.
package worker

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/mobystash/mobystash/internal/chunkparser"
	"github.com/mobystash/mobystash/internal/domain"
	"github.com/mobystash/mobystash/internal/eventbuilder"
	"github.com/mobystash/mobystash/internal/metrics"
	"github.com/mobystash/mobystash/internal/mobyclient"
	"github.com/mobystash/mobystash/internal/sampler"
	"github.com/mobystash/mobystash/internal/sink"
	"github.com/mobystash/mobystash/internal/syslogparser"
	"github.com/rs/zerolog"
)

// ErrTerminated is returned by RunOnce when the engine reports the
// container gone (404) or failing server-side (5xx): a terminal
// condition the supervisor must not retry.
var ErrTerminated = errors.New("container terminated")

// Worker owns one container's id: it pulls the inspect record, builds
// the descriptor, and tails the log stream until told to stop.
type Worker struct {
	id        string
	engine    mobyclient.EngineClient
	sampler   sampler.Sampler
	sink      sink.Sink
	logger    zerolog.Logger
	container *domain.Container
}

// New builds a Worker for id, inheriting cursor from initialTimestamp
// (empty means "no persisted state", seeded to the epoch).
func New(id string, engine mobyclient.EngineClient, smpl sampler.Sampler, snk sink.Sink, logger zerolog.Logger, initialTimestamp string) (*Worker, error) {
	ctx := context.Background()
	info, err := engine.Inspect(ctx, id)
	if err != nil {
		return nil, err
	}

	pl, err := parseLabels(info.Labels)
	if err != nil {
		return nil, err
	}

	name := strings.TrimPrefix(info.Name, "/")
	baseTags := domain.Tags{
		"moby": domain.Tags{
			"name":     name,
			"id":       info.Id,
			"hostname": info.Hostname,
			"image":    info.Image,
			"image_id": info.ImageId,
		},
	}
	// Invariant 3: labels extending moby.* deep-merge but never
	// overwrite the fixed id/name — moby is merged last into pl.tags so
	// a stray "tag.moby.id" label cannot clobber it.
	tags := domain.DeepMerge(pl.tags, baseTags)

	container := domain.NewContainer(id, name, tags, pl.captureLogs, pl.parseSyslog, pl.filterRegex, info.Tty, initialTimestamp)

	return &Worker{
		id:        id,
		engine:    engine,
		sampler:   smpl,
		sink:      snk,
		logger:    logger.With().Str("container_id", id).Str("container_name", name).Logger(),
		container: container,
	}, nil
}

// Container exposes the descriptor so the router can read
// LastLogTimestamp for checkpointing.
func (w *Worker) Container() *domain.Container { return w.container }

// RunOnce executes one iteration of the main loop. It returns
// ErrTerminated when the container is gone for good,
// nil when ctx was canceled cleanly, and any other error for a
// transient failure the supervisor should retry after a backoff.
func (w *Worker) RunOnce(ctx context.Context) error {
	if !w.container.CaptureLogs {
		<-ctx.Done()
		return nil
	}

	w.primeCounters()

	info, err := w.engine.Inspect(ctx, w.id)
	if err != nil {
		var nf *mobyclient.NotFoundError
		var se *mobyclient.ServerError
		if errors.As(err, &nf) || errors.As(err, &se) {
			return ErrTerminated
		}
		return err
	}

	if !info.Running {
		return w.waitForRestart(ctx)
	}

	return w.streamLogs(ctx, info.Tty)
}

// waitForRestart subscribes to engine events since cursor+1ns, advances
// the cursor to each event's time, and returns once a container event
// for this id arrives (so the caller restarts the main loop and
// re-checks state).
func (w *Worker) waitForRestart(ctx context.Context) error {
	since, err := timestampToTime(w.container.LastLogTimestamp())
	if err != nil {
		return err
	}
	since = since.Add(time.Nanosecond)

	eventCh, errCh := w.engine.Events(ctx, since)
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
			w.container.AdvanceLastLogTimestamp(ev.Time.UTC().Format(domain.TimestampLayout))
			if ev.Type == "container" && ev.Id == w.id {
				return nil
			}
		}
	}
}

// streamLogs opens the streaming GET, pipes bytes through the chunk
// parser, and calls sendEvent per line. It blocks until the engine
// closes the stream or ctx is canceled.
func (w *Worker) streamLogs(ctx context.Context, tty bool) error {
	since, err := w.container.SinceQuery()
	if err != nil {
		return err
	}

	rc, err := w.engine.Logs(ctx, w.id, mobyclient.LogsQuery{
		Since:      since,
		Timestamps: true,
		Follow:     true,
		Stdout:     true,
		Stderr:     true,
	})
	if err != nil {
		var nf *mobyclient.NotFoundError
		var se *mobyclient.ServerError
		if errors.As(err, &nf) || errors.As(err, &se) {
			return ErrTerminated
		}
		return err
	}
	defer rc.Close()

	go func() {
		<-ctx.Done()
		rc.Close()
	}()

	parser := chunkparser.New(tty, func(line, stream string) {
		w.sendEvent(line, stream)
	})

	_, err = io.Copy(parser, rc)
	if err != nil && ctx.Err() != nil {
		// Stream aborted by our own cancellation (shutdown); not an error.
		return nil
	}
	return err
}

// sendEvent parses, samples, filters, and forwards a single log line.
func (w *Worker) sendEvent(line, stream string) {
	metrics.LogEntriesRead.WithLabelValues(w.container.Name, w.id, stream).Inc()

	idx := strings.IndexByte(line, ' ')
	if idx < 0 {
		metrics.ParseErrors.WithLabelValues(w.container.Name, w.id).Inc()
		return
	}
	tsPrefix, message := line[:idx], line[idx+1:]

	ts, err := timestampToTime(tsPrefix)
	if err != nil {
		metrics.ParseErrors.WithLabelValues(w.container.Name, w.id).Inc()
		return
	}
	w.container.AdvanceLastLogTimestamp(tsPrefix)
	metrics.LastLogEntryAt.WithLabelValues(w.container.Name, w.id).Set(float64(ts.UnixNano()) / 1e9)

	var syslogFields domain.Tags
	if w.container.ParseSyslog {
		message, syslogFields = syslogparser.Parse(message)
	} else {
		syslogFields = domain.Tags{}
	}

	passed, sampleMeta := w.sampler.Sample(message)
	if !passed {
		return
	}

	if w.container.FilterRegex != nil && w.container.FilterRegex.MatchString(message) {
		return
	}

	built, err := eventbuilder.Build(message, tsPrefix, stream, w.container.Tags, syslogFields, sampleMeta)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to build event")
		return
	}

	w.sink.Send(built.Event)
	metrics.LogEntriesSent.WithLabelValues(w.container.Name, w.id, stream).Inc()
}

func (w *Worker) primeCounters() {
	metrics.Prime(w.container.Name, w.id, "stdout", "stderr", "tty")
}

func timestampToTime(ts string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, ts)
}
