// Package metrics hosts the prometheus-backed counters and gauges the
// worker and its supervisor increment, and the HTTP server that
// internal/app starts to expose them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LogEntriesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mobystash",
		Name:      "log_entries_read_total",
		Help:      "Number of log lines read from a container stream.",
	}, []string{"name", "id", "stream"})

	LogEntriesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mobystash",
		Name:      "log_entries_sent_total",
		Help:      "Number of log events handed to the sink.",
	}, []string{"name", "id", "stream"})

	LastLogEntryAt = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mobystash",
		Name:      "last_log_entry_at",
		Help:      "Unix timestamp of the last log entry read from a container.",
	}, []string{"name", "id"})

	ReadEventExceptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mobystash",
		Name:      "read_event_exceptions_total",
		Help:      "Number of transient errors encountered while reading a container's log stream.",
	}, []string{"name", "id", "exception_class"})

	ParseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mobystash",
		Name:      "parse_errors_total",
		Help:      "Number of log lines skipped for failing to parse.",
	}, []string{"name", "id"})
)

// Prime increments every stream-keyed series by zero so downstream
// collectors see them before the first real log line arrives.
func Prime(name, id string, streams ...string) {
	for _, stream := range streams {
		LogEntriesRead.WithLabelValues(name, id, stream).Add(0)
		LogEntriesSent.WithLabelValues(name, id, stream).Add(0)
	}
}

// Server exposes the registered collectors over HTTP.
type Server struct {
	httpServer *http.Server
}

func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{httpServer: &http.Server{Addr: addr, Handler: mux}}
}

// Run starts serving and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
