// Package router owns the id→worker map and the dispatch loop that
// reacts to discovery messages, driven from a single goroutine so at
// most one active worker per id holds by construction.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/mobystash/mobystash/internal/discovery"
	"github.com/mobystash/mobystash/internal/domain"
	"github.com/mobystash/mobystash/internal/mobyclient"
	"github.com/mobystash/mobystash/internal/sampler"
	"github.com/mobystash/mobystash/internal/sink"
	"github.com/mobystash/mobystash/internal/statestore"
	"github.com/mobystash/mobystash/internal/worker"
	"github.com/rs/zerolog"
)

// supervisedWorker pairs a worker with the cancel func that stops the
// goroutine running its Supervisor, and a channel closed when that
// goroutine exits.
type supervisedWorker struct {
	w      *worker.Worker
	cancel context.CancelFunc
	done   chan struct{}
}

// Router is the core's single point of coordination: it is the only
// component that mutates the id→worker map, so invariant 2 ("at most
// one active worker per id") holds by construction — every mutation
// happens on the dispatch goroutine.
type Router struct {
	engine             mobyclient.EngineClient
	sampler            sampler.Sampler
	sink               sink.Sink
	statePath          string
	checkpointInterval time.Duration

	logger zerolog.Logger

	mu      sync.Mutex
	workers map[string]*supervisedWorker
}

// New builds a Router. statePath may be empty to disable persistence.
func New(engine mobyclient.EngineClient, smpl sampler.Sampler, snk sink.Sink, statePath string, checkpointInterval time.Duration, logger zerolog.Logger) *Router {
	return &Router{
		engine:             engine,
		sampler:            smpl,
		sink:               snk,
		statePath:          statePath,
		checkpointInterval: checkpointInterval,
		logger:             logger,
		workers:            make(map[string]*supervisedWorker),
	}
}

// Run executes the startup sequence and dispatch loop; it returns when
// ctx is canceled or a terminate message is dispatched, after writing a
// final checkpoint and signalling every worker to stop. It does not wait
// for the workers to exit.
func (r *Router) Run(ctx context.Context) error {
	go func() {
		if err := r.sink.Run(); err != nil {
			r.logger.Error().Err(err).Msg("Sink exited with error")
		}
	}()
	defer r.sink.Stop()

	startedAt := time.Now()
	watcher := discovery.New(r.engine, r.logger)
	discoveryCh := watcher.Subscribe(ctx, startedAt)

	state := statestore.Load(r.statePath)

	if err := r.enumerateExisting(ctx, state); err != nil {
		r.logger.Error().Err(err).Msg("Failed to enumerate existing containers at startup")
	}

	ticker := time.NewTicker(r.checkpointInterval)
	defer ticker.Stop()

	inbound := make(chan domain.DiscoveryMessage, 100)
	go func() {
		defer close(inbound)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-discoveryCh:
				if !ok {
					return
				}
				select {
				case inbound <- msg:
				case <-ctx.Done():
					return
				}
			case <-ticker.C:
				select {
				case inbound <- domain.Checkpoint():
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			r.checkpoint()
			r.shutdown()
			return nil
		case msg, ok := <-inbound:
			if !ok {
				r.checkpoint()
				r.shutdown()
				return nil
			}
			r.dispatch(ctx, msg)
			if msg.Kind == domain.DiscoveryTerminate {
				return nil
			}
		}
	}
}

// enumerateExisting constructs a worker for every currently running
// container, inheriting its cursor from the loaded state map.
func (r *Router) enumerateExisting(ctx context.Context, state map[string]string) error {
	containers, err := r.engine.List(ctx)
	if err != nil {
		return err
	}
	for _, c := range containers {
		r.start(ctx, c.Id, state[c.Id])
	}
	return nil
}

// dispatch applies one discovery message to the worker map.
func (r *Router) dispatch(ctx context.Context, msg domain.DiscoveryMessage) {
	switch msg.Kind {
	case domain.DiscoveryCreated:
		r.mu.Lock()
		_, exists := r.workers[msg.Id]
		r.mu.Unlock()
		if exists {
			return
		}
		r.start(ctx, msg.Id, "")

	case domain.DiscoveryDestroyed:
		r.mu.Lock()
		sw, exists := r.workers[msg.Id]
		if exists {
			delete(r.workers, msg.Id)
		}
		r.mu.Unlock()
		if exists {
			sw.cancel()
		}

	case domain.DiscoveryCheckpoint:
		r.checkpoint()

	case domain.DiscoveryTerminate:
		r.checkpoint()
		r.shutdown()

	default:
		r.logger.Error().Str("kind", string(msg.Kind)).Msg("Unrecognized discovery message")
	}
}

// start inspects id, constructs a worker and supervisor for it, and
// registers it in the map. A 404 on inspect (container gone between
// discovery and start) is dropped silently.
func (r *Router) start(ctx context.Context, id, initialTimestamp string) {
	w, err := worker.New(id, r.engine, r.sampler, r.sink, r.logger, initialTimestamp)
	if err != nil {
		if _, ok := err.(*mobyclient.NotFoundError); ok {
			return
		}
		r.logger.Error().Err(err).Str("container_id", id).Msg("Failed to construct worker")
		return
	}

	workerCtx, cancel := context.WithCancel(ctx)
	sup := worker.NewSupervisor(w.Container().Name, id, w, r.logger)
	done := make(chan struct{})

	r.mu.Lock()
	r.workers[id] = &supervisedWorker{w: w, cancel: cancel, done: done}
	r.mu.Unlock()

	go func() {
		defer close(done)
		if err := sup.Run(workerCtx); err != nil {
			r.logger.Error().Err(err).Str("container_id", id).Msg("Worker supervisor exited with error")
		}
	}()
}

// checkpoint snapshots every worker's cursor under its own mutex and
// persists the map.
func (r *Router) checkpoint() {
	if r.statePath == "" {
		return
	}

	r.mu.Lock()
	snapshot := make(map[string]string, len(r.workers))
	for id, sw := range r.workers {
		snapshot[id] = sw.w.Container().LastLogTimestamp()
	}
	r.mu.Unlock()

	if err := statestore.Save(r.statePath, snapshot); err != nil {
		r.logger.Error().Err(err).Msg("Failed to checkpoint state")
	}
}

// shutdown signals every worker to stop and does not wait beyond
// canceling their contexts; the supervisor goroutines exit on their own
// as the contexts propagate.
func (r *Router) shutdown() {
	r.mu.Lock()
	workers := make([]*supervisedWorker, 0, len(r.workers))
	for _, sw := range r.workers {
		workers = append(workers, sw)
	}
	r.workers = make(map[string]*supervisedWorker)
	r.mu.Unlock()

	for _, sw := range workers {
		sw.cancel()
	}
}
