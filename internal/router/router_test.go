package router

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mobystash/mobystash/internal/domain"
	"github.com/mobystash/mobystash/internal/mobyclient"
	"github.com/mobystash/mobystash/internal/sampler"
	"github.com/mobystash/mobystash/internal/statestore"
	"github.com/rs/zerolog"
)

type fakeEngine struct {
	mu        sync.Mutex
	inspected map[string]mobyclient.InspectResult
	missing   map[string]bool
	listIds   []string
}

func (f *fakeEngine) Inspect(ctx context.Context, id string) (mobyclient.InspectResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[id] {
		return mobyclient.InspectResult{}, &mobyclient.NotFoundError{Id: id}
	}
	if info, ok := f.inspected[id]; ok {
		return info, nil
	}
	return mobyclient.InspectResult{Id: id, Name: id}, nil
}

func (f *fakeEngine) Logs(ctx context.Context, id string, q mobyclient.LogsQuery) (io.ReadCloser, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeEngine) Events(ctx context.Context, since time.Time) (<-chan mobyclient.Event, <-chan error) {
	ch := make(chan mobyclient.Event)
	errCh := make(chan error)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, errCh
}

func (f *fakeEngine) List(ctx context.Context) ([]mobyclient.ContainerSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]mobyclient.ContainerSummary, 0, len(f.listIds))
	for _, id := range f.listIds {
		out = append(out, mobyclient.ContainerSummary{Id: id})
	}
	return out, nil
}

func (f *fakeEngine) Close() error { return nil }

type fakeSink struct{}

func (fakeSink) Send(event domain.Tags) {}
func (fakeSink) Run() error             { return nil }
func (fakeSink) Stop()                  {}
func (fakeSink) ForceDisconnect()       {}

func TestCreatedDoesNotDuplicateActiveWorker(t *testing.T) {
	engine := &fakeEngine{missing: map[string]bool{}}
	r := New(engine, sampler.Always{}, fakeSink{}, "", time.Hour, zerolog.Nop())

	ctx := context.Background()
	r.start(ctx, "abc", "")
	r.dispatch(ctx, domain.Created("abc"))

	r.mu.Lock()
	n := len(r.workers)
	r.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected exactly one worker for id, got %d", n)
	}
}

func TestCreatedDropsSilentlyOn404(t *testing.T) {
	engine := &fakeEngine{missing: map[string]bool{"gone": true}}
	r := New(engine, sampler.Always{}, fakeSink{}, "", time.Hour, zerolog.Nop())

	r.dispatch(context.Background(), domain.Created("gone"))

	r.mu.Lock()
	n := len(r.workers)
	r.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected no worker registered for a 404'd container, got %d", n)
	}
}

func TestDestroyedRemovesFromMap(t *testing.T) {
	engine := &fakeEngine{}
	r := New(engine, sampler.Always{}, fakeSink{}, "", time.Hour, zerolog.Nop())
	ctx := context.Background()

	r.start(ctx, "abc", "")
	r.dispatch(ctx, domain.Destroyed("abc"))

	r.mu.Lock()
	_, exists := r.workers["abc"]
	r.mu.Unlock()
	if exists {
		t.Fatal("expected worker to be removed from map on destroyed")
	}
}

func TestCheckpointWritesStateFile(t *testing.T) {
	engine := &fakeEngine{}
	path := filepath.Join(t.TempDir(), "state")
	r := New(engine, sampler.Always{}, fakeSink{}, path, time.Hour, zerolog.Nop())
	ctx := context.Background()

	r.start(ctx, "abc", "2020-01-01T00:00:00.000000000Z")
	r.checkpoint()

	r.mu.Lock()
	_, exists := r.workers["abc"]
	r.mu.Unlock()
	if !exists {
		t.Fatal("worker should still be registered after checkpoint")
	}
	if got := statestore.Load(path)["abc"]; got != "2020-01-01T00:00:00.000000000Z" {
		t.Fatalf("state file cursor for abc = %q, want %q", got, "2020-01-01T00:00:00.000000000Z")
	}
}

func TestEnumerateExistingInheritsPersistedCursor(t *testing.T) {
	engine := &fakeEngine{listIds: []string{"abc"}}
	r := New(engine, sampler.Always{}, fakeSink{}, "", time.Hour, zerolog.Nop())
	ctx := context.Background()

	state := map[string]string{"abc": "2020-06-01T00:00:00.000000000Z"}
	if err := r.enumerateExisting(ctx, state); err != nil {
		t.Fatal(err)
	}

	r.mu.Lock()
	sw, exists := r.workers["abc"]
	r.mu.Unlock()
	if !exists {
		t.Fatal("expected worker to be registered from enumeration")
	}
	if sw.w.Container().LastLogTimestamp() != state["abc"] {
		t.Fatalf("expected inherited cursor %q, got %q", state["abc"], sw.w.Container().LastLogTimestamp())
	}
}
