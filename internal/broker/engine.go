// Package broker implements the single-dispatcher pub/sub engine: topic
// discovery, hierarchical fan-out, last-value replay and subscription
// bookkeeping (§4, §5). All mutable state is confined to one goroutine
// (Run) so none of it needs a mutex — connections talk to the engine only
// through Submit, which feeds the buffered events channel.
package broker

import (
	"context"

	"github.com/adred-codev/topicbroker/internal/codec"
	"github.com/adred-codev/topicbroker/internal/monitoring"
	"github.com/rs/zerolog"
)

// eventQueueSize bounds how far a burst of inbound operations can outrun
// the dispatcher before Submit starts to push back on callers.
const eventQueueSize = 4096

// Engine is the broker's event loop and topic registry. The zero value is
// not usable; construct with New.
type Engine struct {
	log     zerolog.Logger
	metrics Metrics

	events chan Event

	hierarchy *hierarchyIndex
	lastValue map[string]string
	subs      map[string]map[uint64]Subscriber // topic -> subscriber id -> subscriber
	subsOf    map[uint64]map[string]struct{}   // subscriber id -> topics it holds
}

// New builds an Engine. metrics may be nil, in which case observations are
// discarded.
func New(log zerolog.Logger, metrics Metrics) *Engine {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Engine{
		log:       log.With().Str("component", "broker").Logger(),
		metrics:   metrics,
		events:    make(chan Event, eventQueueSize),
		hierarchy: newHierarchyIndex(),
		lastValue: make(map[string]string),
		subs:      make(map[string]map[uint64]Subscriber),
		subsOf:    make(map[uint64]map[string]struct{}),
	}
}

// Submit enqueues an event for processing by Run. It blocks only if the
// event queue is saturated, which is the engine's one deliberate point of
// backpressure onto connection goroutines (never onto the dispatcher
// itself, and never visible to a PUBLISH caller as a delivery guarantee —
// the broker does not acknowledge deliveries).
func (e *Engine) Submit(ev Event) {
	e.events <- ev
}

// Run drives the dispatcher loop until ctx is cancelled. It is meant to be
// run in exactly one goroutine for the lifetime of the engine.
func (e *Engine) Run(ctx context.Context) {
	e.log.Info().Msg("engine dispatcher started")
	defer e.log.Info().Msg("engine dispatcher stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.events:
			e.safeHandle(ev)
		}
	}
}

// safeHandle runs handle with a recover guard, so a panic while processing
// one event logs and is dropped instead of taking down the dispatcher (and
// with it every connection the engine serves).
func (e *Engine) safeHandle(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.LogPanic(e.log, r, "dispatcher event handling panicked")
		}
	}()
	e.handle(ev)
}

func (e *Engine) handle(ev Event) {
	switch ev.Op {
	case OpPublish:
		e.publish(ev.Topic, ev.Value)
	case OpSubscribe:
		e.subscribe(ev.Topic, ev.Sub)
	case OpCancel:
		e.cancel(ev.Topic, ev.Sub)
	case OpList:
		e.list(ev.Reply)
	case opDisconnect:
		e.disconnect(ev.Sub)
	default:
		e.log.Warn().Stringer("op", ev.Op).Msg("unhandled event")
	}
}

// ensureTopic registers topic with the hierarchy index if unseen and
// reports the new topic count.
func (e *Engine) ensureTopic(topic string) {
	if e.hierarchy.add(topic) {
		e.metrics.TopicDiscovered(e.hierarchy.count())
	}
}

// publish implements PUBLISH (§4.2.1): it records topic's last value and
// delivers a MESSAGE to every subscriber of topic itself and of every
// topic the hierarchy index relates to it.
//
// The reimplementation deliberately delivers to ALL related subscribers,
// not just the first one found — the original broker this was distilled
// from only notified the first subscriber per related topic, which
// SPEC_FULL.md calls out as a bug to fix rather than preserve.
func (e *Engine) publish(topic, value string) {
	e.ensureTopic(topic)
	e.lastValue[topic] = value

	targets := make(map[string]struct{}, 1+len(e.hierarchy.related(topic)))
	targets[topic] = struct{}{}
	for t := range e.hierarchy.related(topic) {
		targets[t] = struct{}{}
	}

	msg := codec.Message{Method: codec.MethodMessage, Topic: topic, Msg: value}
	fanout := 0
	for t := range targets {
		for _, sub := range e.subs[t] {
			sub.Deliver(msg)
			fanout++
		}
	}
	e.metrics.Published(topic, fanout)
}

// subscribe implements SUBSCRIBE (§4.2.2): it registers sub against topic
// and, if topic already has a last published value, immediately replays it
// as LAST_MESSAGE (the late-subscriber replay guarantee, P2).
func (e *Engine) subscribe(topic string, sub Subscriber) {
	e.ensureTopic(topic)

	if e.subs[topic] == nil {
		e.subs[topic] = make(map[uint64]Subscriber)
	}
	e.subs[topic][sub.ID()] = sub

	if e.subsOf[sub.ID()] == nil {
		e.subsOf[sub.ID()] = make(map[string]struct{})
	}
	e.subsOf[sub.ID()][topic] = struct{}{}

	e.metrics.Subscribed(topic, len(e.subs[topic]))

	if last, ok := e.lastValue[topic]; ok {
		sub.Deliver(codec.Message{Method: codec.MethodLastMessage, Topic: topic, Msg: last})
	}
}

// cancel implements CANCEL (§4.2.3): it removes sub's subscription to
// topic. Cancelling a subscription that does not exist is a no-op.
func (e *Engine) cancel(topic string, sub Subscriber) {
	if set, ok := e.subs[topic]; ok {
		delete(set, sub.ID())
		if len(set) == 0 {
			delete(e.subs, topic)
		}
		e.metrics.Cancelled(topic, len(set))
	}
	if topics, ok := e.subsOf[sub.ID()]; ok {
		delete(topics, topic)
	}
}

// list implements LIST (§4.2.4): it reports every topic the engine has
// ever seen published or subscribed to, in no particular order — callers
// that need a stable order sort it themselves.
func (e *Engine) list(reply chan<- []string) {
	if reply == nil {
		return
	}
	reply <- e.hierarchy.topics()
}

// disconnect tears down all subscription state for sub. It is submitted
// by the transport layer when a connection closes; it never reaches the
// wire as one of the five client-visible operations.
func (e *Engine) disconnect(sub Subscriber) {
	topics := e.subsOf[sub.ID()]
	for topic := range topics {
		if set, ok := e.subs[topic]; ok {
			delete(set, sub.ID())
			if len(set) == 0 {
				delete(e.subs, topic)
			}
		}
	}
	delete(e.subsOf, sub.ID())
	e.metrics.ConnectionClosed()
}

// Register notifies the engine that a new connection exists, for
// accounting purposes only — it does not by itself create a subscription.
func (e *Engine) Register(sub Subscriber) {
	e.metrics.ConnectionRegistered()
	_ = sub // tracked implicitly via subsOf once it first subscribes
}

// Disconnect submits teardown of every subscription sub holds. Safe to
// call even if sub never subscribed to anything.
func (e *Engine) Disconnect(sub Subscriber) {
	e.Submit(Event{Op: opDisconnect, Sub: sub})
}
