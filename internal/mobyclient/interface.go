// Package mobyclient narrows the Docker engine API client down to the
// four calls the core issues: Inspect, Logs, Events, List.
package mobyclient

import (
	"context"
	"io"
	"time"
)

// InspectResult is the subset of `GET /containers/{id}/json` the core
// consumes.
type InspectResult struct {
	Id       string
	Name     string
	Hostname string
	Image    string
	ImageId  string
	Tty      bool
	Labels   map[string]string
	Running  bool
}

// ContainerSummary is the subset of `GET /containers/json` entries the
// core consumes.
type ContainerSummary struct {
	Id string
}

// LogsQuery mirrors the query parameters issued against
// `/containers/{id}/logs`.
type LogsQuery struct {
	// Since is "<secs>.<nnnnnnnnn>", computed without round-tripping
	// through binary floating point.
	Since      string
	Timestamps bool
	Follow     bool
	Stdout     bool
	Stderr     bool
}

// Event is a decoded `GET /events` entry.
type Event struct {
	Type   string
	Action string
	Id     string
	Time   time.Time
}

// NotFoundError and ServerError let callers distinguish "container gone"
// (404) from "engine malfunctioning" (5xx) without depending on the
// Docker SDK's own error taxonomy throughout the core.
type NotFoundError struct{ Id string }

func (e *NotFoundError) Error() string { return "container not found: " + e.Id }

type ServerError struct {
	Id         string
	StatusCode int
}

func (e *ServerError) Error() string {
	return "engine server error for container " + e.Id
}

// EngineClient is the narrow seam the worker, discovery watcher, and
// router depend on instead of the full Docker SDK client.
type EngineClient interface {
	Inspect(ctx context.Context, id string) (InspectResult, error)
	Logs(ctx context.Context, id string, query LogsQuery) (io.ReadCloser, error)
	Events(ctx context.Context, since time.Time) (<-chan Event, <-chan error)
	List(ctx context.Context) ([]ContainerSummary, error)
	Close() error
}
