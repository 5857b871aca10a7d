// Package sink defines the downstream log-aggregation sink boundary,
// specified only by its interface, and a concrete HTTP/NDJSON
// implementation of it.
package sink

import "github.com/mobystash/mobystash/internal/domain"

// Sink is the interface the worker depends on. Send must not block the
// calling worker for long — its queue absorbs bursts.
type Sink interface {
	Send(event domain.Tags)
	Run() error
	Stop()
	ForceDisconnect()
}
