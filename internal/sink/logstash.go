package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/mobystash/mobystash/internal/domain"
	"github.com/rs/zerolog"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 2 * time.Second
	defaultQueueSize     = 1000
)

// LogstashSink batches events and POSTs them as newline-delimited JSON
// to a Logstash HTTP input. It buffers internally: Send enqueues and
// returns at once unless the queue is full, and Run drains the queue on a flush timer or
// batch threshold rather than blocking per line.
type LogstashSink struct {
	url    string
	client *http.Client
	logger zerolog.Logger

	queue chan domain.Tags
	done  chan struct{}

	cancelMu   sync.Mutex
	cancelFunc context.CancelFunc
}

func NewLogstashSink(url string, logger zerolog.Logger) *LogstashSink {
	return &LogstashSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		queue:  make(chan domain.Tags, defaultQueueSize),
		done:   make(chan struct{}),
	}
}

// Send enqueues event. It blocks only if the internal queue is full;
// that back-pressure path is intentionally left to the caller rather
// than handled by the sink itself.
func (s *LogstashSink) Send(event domain.Tags) {
	s.queue <- event
}

// Run drains the queue, flushing batches on a timer or when a batch
// fills, until Stop is called.
func (s *LogstashSink) Run() error {
	ticker := time.NewTicker(defaultFlushInterval)
	defer ticker.Stop()

	batch := make([]domain.Tags, 0, defaultBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.post(batch); err != nil {
			s.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Failed to forward events to sink")
		}
		batch = batch[:0]
	}

	for {
		select {
		case event, ok := <-s.queue:
			if !ok {
				flush()
				return nil
			}
			batch = append(batch, event)
			if len(batch) >= defaultBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			// Drain whatever is already queued, then stop.
			for {
				select {
				case event := <-s.queue:
					batch = append(batch, event)
					if len(batch) >= defaultBatchSize {
						flush()
					}
				default:
					flush()
					return nil
				}
			}
		}
	}
}

// Stop signals Run to drain and return.
func (s *LogstashSink) Stop() {
	close(s.done)
}

// ForceDisconnect aborts any in-flight POST.
func (s *LogstashSink) ForceDisconnect() {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
}

func (s *LogstashSink) post(batch []domain.Tags) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, event := range batch {
		if err := enc.Encode(event); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelMu.Lock()
	s.cancelFunc = cancel
	s.cancelMu.Unlock()
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
