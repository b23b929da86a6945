// Package queue is the middleware client for the broker (§6.4): a Queue
// wraps one TCP connection and its negotiated codec, exposing push, pull,
// list_topics and cancel. Its internal design is intentionally trivial —
// the spec only requires wire compatibility with the broker, not any
// particular client architecture.
package queue

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/adred-codev/topicbroker/internal/codec"
	"github.com/adred-codev/topicbroker/internal/transport"
)

// Role determines whether a Queue auto-subscribes to its topic on
// construction.
type Role int

const (
	// Producer only ever pushes; it never subscribes.
	Producer Role = iota
	// Consumer auto-subscribes to Topic as soon as the handshake completes.
	Consumer
)

// Message is one (topic, value) pair delivered to a consumer.
type Message struct {
	Topic string
	Value string
}

// Queue is a single connection to the broker, bound to one topic and role.
type Queue struct {
	conn  net.Conn
	codec codec.Codec
	topic string
	role  Role

	writeMu sync.Mutex

	incoming  chan Message
	listReply chan []string
	errs      chan error
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to addr, negotiates serializer, and — for Consumer role —
// subscribes to topic before returning.
func Dial(addr, topic string, role Role, serializer string) (*Queue, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("queue: dial %s: %w", addr, err)
	}

	cd, err := codec.ForSerializer(serializer)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue: %w", err)
	}

	q := &Queue{
		conn:      conn,
		codec:     cd,
		topic:     topic,
		role:      role,
		incoming:  make(chan Message, 64),
		listReply: make(chan []string, 1),
		errs:      make(chan error, 1),
		done:      make(chan struct{}),
	}

	if err := q.handshake(serializer); err != nil {
		conn.Close()
		return nil, err
	}

	go q.readLoop()

	if role == Consumer {
		if err := q.sendSubscribe(); err != nil {
			q.Close()
			return nil, err
		}
	}

	return q, nil
}

func (q *Queue) handshake(serializer string) error {
	payload := []byte(`{"Serializer":"` + serializer + `"}`)
	return transport.WriteFrame(q.conn, payload)
}

func (q *Queue) send(m codec.Message) error {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	data, err := q.codec.Encode(m)
	if err != nil {
		return fmt.Errorf("queue: encode: %w", err)
	}
	return transport.WriteFrame(q.conn, data)
}

func (q *Queue) sendSubscribe() error {
	return q.send(codec.Message{Method: codec.MethodSubscribe, Topic: q.topic})
}

// Push publishes value on the queue's topic.
func (q *Queue) Push(value string) error {
	return q.send(codec.Message{Method: codec.MethodPublish, Topic: q.topic, Msg: value})
}

// Pull blocks until one message arrives for this queue's subscription, or
// the connection closes.
func (q *Queue) Pull() (string, string, error) {
	select {
	case m, ok := <-q.incoming:
		if !ok {
			return "", "", fmt.Errorf("queue: connection closed")
		}
		return m.Topic, m.Value, nil
	case err := <-q.errs:
		return "", "", err
	}
}

// ListTopics requests and returns every topic name the broker knows about.
func (q *Queue) ListTopics() ([]string, error) {
	if err := q.send(codec.Message{Method: codec.MethodList}); err != nil {
		return nil, err
	}
	select {
	case topics := <-q.listReply:
		return topics, nil
	case err := <-q.errs:
		return nil, err
	case <-time.After(10 * time.Second):
		return nil, fmt.Errorf("queue: timed out waiting for LIST_TOPICS_REP")
	}
}

// Cancel unsubscribes from the queue's topic. Further publishes on it will
// not be delivered to this connection.
func (q *Queue) Cancel() error {
	return q.send(codec.Message{Method: codec.MethodCancel, Topic: q.topic})
}

// Close closes the underlying connection. Safe to call more than once.
func (q *Queue) Close() error {
	var err error
	q.closeOnce.Do(func() {
		close(q.done)
		err = q.conn.Close()
	})
	return err
}

// readLoop demultiplexes inbound frames: MESSAGE/LAST_MESSAGE feed Pull,
// LIST_TOPICS_REP feeds ListTopics. This single-reader design is why
// ListTopics and Pull from the same Queue concurrently are not supported —
// the spec calls the client's internal design trivial, and this is as
// trivial as correct demultiplexing gets.
func (q *Queue) readLoop() {
	defer close(q.incoming)

	for {
		payload, err := transport.ReadFrame(q.conn)
		if err != nil {
			select {
			case q.errs <- fmt.Errorf("queue: read: %w", err):
			default:
			}
			return
		}

		msg, err := q.codec.Decode(payload)
		if err != nil {
			select {
			case q.errs <- fmt.Errorf("queue: decode: %w", err):
			default:
			}
			return
		}

		switch msg.Method {
		case codec.MethodMessage, codec.MethodLastMessage:
			select {
			case q.incoming <- Message{Topic: msg.Topic, Value: msg.Msg}:
			case <-q.done:
				return
			}
		case codec.MethodListTopicsRep:
			topics, err := transport.DecodeTopicList(msg.Msg)
			if err != nil {
				continue
			}
			select {
			case q.listReply <- topics:
			default:
			}
		}
	}
}
