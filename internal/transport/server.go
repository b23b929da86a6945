package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/adred-codev/topicbroker/internal/broker"
	"github.com/adred-codev/topicbroker/internal/limits"
	"github.com/adred-codev/topicbroker/internal/monitoring"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config controls the listener and per-connection behavior.
type Config struct {
	Addr             string
	ListenBacklog    int
	RateLimit        limits.FrameLimiterConfig
	DrainGracePeriod time.Duration
}

// Server owns the TCP listener and the accept loop that hands each socket
// off to a Connection. Grounded on the teacher's Server.Start/Shutdown
// pair (ws/internal/shared/server.go), reduced to raw TCP framing instead
// of an HTTP/WebSocket upgrade.
type Server struct {
	cfg     Config
	engine  *broker.Engine
	logger  zerolog.Logger
	guard   *limits.ResourceGuard
	metrics broker.Metrics

	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer wires a listener configuration to an already-running engine.
// metrics may be nil, in which case observations are discarded.
func NewServer(cfg Config, engine *broker.Engine, guard *limits.ResourceGuard, metrics broker.Metrics, logger zerolog.Logger) *Server {
	if metrics == nil {
		metrics = broker.NopMetrics()
	}
	return &Server{
		cfg:     cfg,
		engine:  engine,
		guard:   guard,
		metrics: metrics,
		logger:  logger.With().Str("component", "transport").Logger(),
	}
}

// Start binds the listener and spawns the accept loop. It returns once the
// socket is bound; the accept loop itself runs in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", s.cfg.Addr, err)
	}

	if s.cfg.ListenBacklog > 0 {
		if tcpLn, ok := ln.(*net.TCPListener); ok {
			if file, err := tcpLn.File(); err == nil {
				syscall.Listen(int(file.Fd()), s.cfg.ListenBacklog)
				file.Close()
			}
		}
	}

	s.listener = ln
	s.logger.Info().Str("addr", s.cfg.Addr).Int("backlog", s.cfg.ListenBacklog).Msg("listening")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()

	return nil
}

// Addr returns the listener's bound address. Only valid after Start
// returns successfully; useful for tests that bind to port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn().Err(err).Msg("accept error")
			return
		}

		if s.guard != nil {
			if ok, reason := s.guard.Admit(); !ok {
				s.logger.Debug().Str("reason", reason).Str("remote", conn.RemoteAddr().String()).Msg("connection rejected")
				conn.Close()
				continue
			}
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer func() {
				if s.guard != nil {
					s.guard.Release()
				}
			}()
			defer func() {
				if r := recover(); r != nil {
					monitoring.LogPanic(s.logger, r, "connection handler panicked")
				}
			}()

			var connLimiter *rate.Limiter
			if s.cfg.RateLimit.RatePerSecond > 0 {
				connLimiter = limits.NewConnectionLimiter(s.cfg.RateLimit)
			}

			conn := NewConnection(c, s.engine, s.logger, connLimiter, s.metrics)
			conn.Serve()
		}(conn)
	}
}

// Shutdown stops accepting connections and waits up to DrainGracePeriod (or
// until ctx is done) for in-flight connections to finish on their own
// before returning. It does not close sockets still open after that, and
// connections do not watch any context, so such sockets stay open until
// their peers disconnect or the process exits.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down transport")
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("error closing listener")
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	grace := s.cfg.DrainGracePeriod
	if grace <= 0 {
		grace = 10 * time.Second
	}

	select {
	case <-done:
		s.logger.Info().Msg("all connections drained")
	case <-time.After(grace):
		s.logger.Warn().Dur("grace_period", grace).Msg("drain grace period expired, returning anyway")
	case <-ctx.Done():
	}
	return nil
}
