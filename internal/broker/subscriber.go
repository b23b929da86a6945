package broker

import "github.com/adred-codev/topicbroker/internal/codec"

// Subscriber is anything the engine can deliver wire messages to. The
// transport package's connection type is the only production
// implementation; tests use fakes.
type Subscriber interface {
	ID() uint64
	// Deliver hands a fully-formed message to the subscriber for writing
	// to its connection. Implementations must not block the calling
	// goroutine (the dispatcher) — a slow subscriber must never slow down
	// the rest of the broker.
	Deliver(codec.Message)
}
