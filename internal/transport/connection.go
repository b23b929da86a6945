package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adred-codev/topicbroker/internal/broker"
	"github.com/adred-codev/topicbroker/internal/codec"
	"github.com/adred-codev/topicbroker/internal/monitoring"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// connState is the per-connection state machine advanced by the read pump
// (§9 design note): AwaitingHandshake → Ready → Closing. There is no path
// back from Closing.
type connState int32

const (
	stateAwaitingHandshake connState = iota
	stateReady
	stateClosing
)

// sendQueueSize bounds how many outbound messages a slow reader can leave
// buffered before Deliver starts dropping instead of blocking the
// dispatcher goroutine.
const sendQueueSize = 256

// handshakeTimeout bounds how long a connection may take to send its first
// frame before the broker gives up on it.
const handshakeTimeout = 5 * time.Second

var nextConnID uint64

// Connection wraps one accepted TCP socket: it owns the negotiated codec,
// the broker subscriptions registered against its id, and the buffered
// send queue its write pump drains. It implements broker.Subscriber.
type Connection struct {
	id      uint64
	conn    net.Conn
	logger  zerolog.Logger
	engine  *broker.Engine
	guard   *rate.Limiter
	metrics broker.Metrics

	state atomic.Int32
	send  chan []byte
	// closed is closed exactly once, by close(), to unblock writePump and
	// Deliver without ever closing the send channel itself — closing send
	// directly would race the dispatcher goroutine's concurrent sends to it.
	closed chan struct{}

	codec     codec.Codec
	closeOnce sync.Once
}

// NewConnection wraps an accepted socket. The handshake has not happened
// yet; call Serve to run the connection to completion. metrics may be nil,
// in which case observations are discarded.
func NewConnection(conn net.Conn, engine *broker.Engine, logger zerolog.Logger, guard *rate.Limiter, metrics broker.Metrics) *Connection {
	if metrics == nil {
		metrics = broker.NopMetrics()
	}
	id := atomic.AddUint64(&nextConnID, 1)
	c := &Connection{
		id:      id,
		conn:    conn,
		engine:  engine,
		guard:   guard,
		metrics: metrics,
		send:    make(chan []byte, sendQueueSize),
		closed:  make(chan struct{}),
		logger:  logger.With().Uint64("conn_id", id).Logger(),
	}
	c.state.Store(int32(stateAwaitingHandshake))
	return c
}

// ID implements broker.Subscriber.
func (c *Connection) ID() uint64 { return c.id }

// Deliver implements broker.Subscriber. It must never block the caller
// (the broker dispatcher goroutine); a full send queue means this
// connection is too slow and the message is dropped for it specifically —
// fan-out to every other subscriber of the same publish is unaffected
// (§7 error handling policy).
func (c *Connection) Deliver(m codec.Message) {
	if connState(c.state.Load()) != stateReady {
		return
	}
	data, err := c.codec.Encode(m)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", m.Method).Msg("encode failed, dropping delivery")
		c.metrics.Dropped("encode_error")
		return
	}
	select {
	case c.send <- data:
	case <-c.closed:
	default:
		c.logger.Debug().Str("method", m.Method).Str("topic", m.Topic).Msg("send queue full, dropping delivery")
		c.metrics.Dropped("queue_full")
	}
}

// Serve runs the connection's handshake, then its read and write pumps,
// until the connection closes. It always returns after
// the underlying socket is closed and both pumps have exited.
func (c *Connection) Serve() {
	defer c.close()
	defer func() {
		if r := recover(); r != nil {
			monitoring.LogPanic(c.logger, r, "connection goroutine panicked")
		}
	}()

	if err := c.handshake(); err != nil {
		c.logger.Debug().Err(err).Msg("handshake failed")
		return
	}

	c.engine.Register(c)
	c.state.Store(int32(stateReady))
	c.logger.Info().Msg("connection opened")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				monitoring.LogPanic(c.logger, r, "write pump panicked")
			}
		}()
		c.writePump()
	}()

	c.readPump()

	c.close()
	wg.Wait()
}

// handshake reads the first frame, which is always JSON regardless of the
// codec it negotiates (§6.2.1), and binds c.codec on success.
func (c *Connection) handshake() error {
	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer c.conn.SetReadDeadline(time.Time{})

	payload, err := ReadFrame(c.conn)
	if err != nil {
		return err
	}

	hs, err := codec.DecodeHandshake(payload)
	if err != nil {
		return err
	}

	cd, err := codec.ForSerializer(hs.Serializer)
	if err != nil {
		return err
	}
	c.codec = cd
	c.logger = c.logger.With().Str("serializer", cd.Name()).Logger()
	c.logger.Debug().Msg("HANDSHAKE")
	return nil
}

// readPump blocks on ReadFrame until the connection errors or closes,
// decoding and dispatching one operation per frame.
func (c *Connection) readPump() {
	for {
		payload, err := ReadFrame(c.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Debug().Err(err).Msg("read error")
			}
			return
		}

		if c.guard != nil && !c.guard.Allow() {
			c.logger.Debug().Msg("rate limit exceeded, dropping frame")
			c.metrics.Dropped("rate_limited")
			continue
		}

		msg, err := c.codec.Decode(payload)
		if err != nil {
			c.logger.Debug().Err(err).Msg("decode error")
			return
		}

		c.dispatch(msg)
	}
}

// dispatch translates one decoded Message into an engine operation. An
// unrecognized method is silently ignored (§7): the frame has already been
// consumed, so there's nothing further to do with it.
func (c *Connection) dispatch(msg codec.Message) {
	switch msg.Method {
	case codec.MethodPublish:
		c.logger.Debug().Str("topic", msg.Topic).Msg("PUBLISH")
		c.engine.Publish(msg.Topic, msg.Msg)
	case codec.MethodSubscribe:
		c.logger.Debug().Str("topic", msg.Topic).Msg("SUBSCRIBE")
		c.engine.Subscribe(msg.Topic, c)
	case codec.MethodCancel:
		c.logger.Debug().Str("topic", msg.Topic).Msg("CANCEL")
		c.engine.Cancel(msg.Topic, c)
	case codec.MethodList:
		c.logger.Debug().Msg("LIST")
		c.replyList()
	default:
		c.logger.Debug().Str("method", msg.Method).Msg("unknown method, ignoring")
	}
}

// replyList answers LIST with LIST_TOPICS_REP carrying a JSON array of
// known topic names encoded as a string, so it round-trips identically
// through JSON, XML and binary (§9 opaque-payload design note).
func (c *Connection) replyList() {
	topics := c.engine.List()
	payload, err := encodeTopicList(topics)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode topic list")
		return
	}
	c.Deliver(codec.Message{Method: codec.MethodListTopicsRep, Topic: "", Msg: payload})
}

// writePump drains the send queue and frames each message onto the wire,
// until close() signals closed or a write fails.
func (c *Connection) writePump() {
	for {
		select {
		case data := <-c.send:
			if err := WriteFrame(c.conn, data); err != nil {
				c.logger.Debug().Err(err).Msg("write error")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		wasReady := connState(c.state.Swap(int32(stateClosing))) == stateReady
		close(c.closed)
		c.conn.Close()
		// Only a connection that completed its handshake was registered
		// with the engine, so only such a connection is disconnected.
		if wasReady {
			c.engine.Disconnect(c)
		}
		c.logger.Info().Msg("connection closed")
	})
}
