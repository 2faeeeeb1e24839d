package server

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanshuy/cgiserver/internal/logging"
	"github.com/yanshuy/cgiserver/internal/request"
	"github.com/yanshuy/cgiserver/internal/response"
	"github.com/yanshuy/cgiserver/internal/settings"
)

// Handler produces the response for one request. It must not fail: every
// problem is expressed as an error response.
type Handler interface {
	Dispatch(ctx context.Context, req *request.Request, remoteAddr string, log *logging.Logger) *response.Response
}

type Server struct {
	listener net.Listener
	Handler
	settings *settings.Settings
	log      *logging.Logger

	closed       atomic.Bool
	shuttingDown atomic.Bool

	// ctx is handed to every request; cancelling it interrupts running CGI
	// children when a shutdown runs out of time.
	ctx    context.Context
	cancel context.CancelFunc

	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[*conn]struct{}
}

// Serve listens on the configured port and serves connections in the
// background until Close or Shutdown.
func Serve(s *settings.Settings, handler Handler, log *logging.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(s.Port))
	if err != nil {
		return nil, err
	}
	return ServeListener(ln, s, handler, log), nil
}

func ServeListener(ln net.Listener, s *settings.Settings, handler Handler, log *logging.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	server := &Server{
		listener: ln,
		Handler:  handler,
		settings: s,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[*conn]struct{}),
	}

	go server.listen()

	return server
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) listen() {
	for {
		s.log.Info.Println("accepting connections")
		nc, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Err.Println("error accepting connection", err)
			continue
		}

		c, ok := s.track(nc)
		if !ok {
			nc.Close()
			return
		}
		s.log.Info.Println("connection accepted from", nc.RemoteAddr())

		go func() {
			defer s.wg.Done()
			defer s.untrack(c)
			c.serve(s.ctx)
		}()
	}
}

// Close stops accepting new connections. Connections already accepted keep
// being served.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed.Store(true)
	s.mu.Unlock()
	return s.listener.Close()
}

// Shutdown stops accepting, closes idle keep-alive connections and waits for
// in-flight requests to finish. If ctx ends first, running CGI handlers are
// cancelled, remaining connections are closed and ctx's error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shuttingDown.Store(true)
	s.mu.Unlock()
	err := s.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}

	s.mu.Lock()
	for c := range s.conns {
		c.wakeIfIdle()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return err
	case <-ctx.Done():
		s.cancel()
		s.mu.Lock()
		for c := range s.conns {
			c.netConn.Close()
		}
		s.mu.Unlock()
		<-done
		return ctx.Err()
	}
}

// track registers a freshly accepted connection. It refuses once Close has
// run, so nothing joins the wait group after Shutdown starts waiting.
func (s *Server) track(nc net.Conn) (*conn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil, false
	}
	c := newConn(s, nc)
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return c, true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) idleTimeout() time.Duration {
	return s.settings.IdleTimeout
}
