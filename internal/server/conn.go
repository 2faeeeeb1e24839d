package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/yanshuy/cgiserver/internal/crlf"
	"github.com/yanshuy/cgiserver/internal/headers"
	"github.com/yanshuy/cgiserver/internal/logging"
	"github.com/yanshuy/cgiserver/internal/request"
	"github.com/yanshuy/cgiserver/internal/response"
)

// conn serves the requests of one accepted connection, one at a time.
type conn struct {
	server     *Server
	netConn    net.Conn
	remoteAddr string
	r          *bufio.Reader
	w          *bufio.Writer
	respWriter *response.Writer
	log        *logging.Logger

	idle atomic.Bool
}

func newConn(s *Server, nc net.Conn) *conn {
	remote := nc.RemoteAddr().String()
	addr := remote
	if host, _, err := net.SplitHostPort(remote); err == nil {
		addr = host
	}

	c := &conn{
		server:     s,
		netConn:    nc,
		remoteAddr: addr,
		log:        s.log.Conn(remote),
	}
	c.r = bufio.NewReader(&deadlineReader{conn: nc, deadline: c.readDeadline})
	c.w = bufio.NewWriter(nc)
	c.respWriter = response.NewResponseWriter(c.w)
	return c
}

// deadlineReader re-arms the read deadline before every read, so the timeout
// measures inactivity rather than the lifetime of a request.
type deadlineReader struct {
	conn     net.Conn
	deadline func() time.Time
}

func (d *deadlineReader) Read(p []byte) (int, error) {
	if err := d.conn.SetReadDeadline(d.deadline()); err != nil {
		return 0, err
	}
	return d.conn.Read(p)
}

func (c *conn) serve(ctx context.Context) {
	defer c.netConn.Close()
	c.log.Info.Println("accepting connection")

	for {
		keepAlive, err := c.serveRequest(ctx)
		if err != nil {
			c.finish(err)
			return
		}
		c.log.Info.Println("--------")
		if !keepAlive || c.server.shuttingDown.Load() {
			c.log.Info.Println("closing connection")
			return
		}
	}
}

// serveRequest runs one pass of the state machine: await the request line,
// read headers and body, dispatch, send.
func (c *conn) serveRequest(ctx context.Context) (bool, error) {
	c.idle.Store(true)
	if c.server.shuttingDown.Load() {
		return false, io.EOF
	}
	if _, err := c.r.Peek(1); err != nil {
		return false, err
	}
	c.idle.Store(false)

	c.log.Info.Println("reading request")
	rp := request.NewRequestParser()
	rp.Continue = func() error {
		if err := c.respWriter.WriteContinue(); err != nil {
			return err
		}
		return c.w.Flush()
	}
	req, err := rp.Parse(c.r)
	if err != nil {
		return false, err
	}
	c.log.Info.Printf("request: %s %s %s", req.Method, req.Target, req.HttpVersion)

	keepAlive := c.persist(req)
	resp := c.server.Dispatch(ctx, req, c.remoteAddr, c.log)

	c.log.Info.Println("sending response:", response.StatusLine(resp.Status))
	if err := c.netConn.SetWriteDeadline(time.Now().Add(c.server.idleTimeout())); err != nil {
		return false, err
	}
	if err := c.respWriter.WriteResponse(resp, keepAlive); err != nil {
		return false, err
	}
	if err := c.w.Flush(); err != nil {
		return false, err
	}
	return keepAlive, nil
}

// persist decides whether the connection survives this request.
func (c *conn) persist(req *request.Request) bool {
	if !c.server.settings.AllowPersistentConnections {
		return false
	}
	if req.IsHTTP11() {
		return !req.Is("connection", "close")
	}
	return req.Is("connection", "keep-alive")
}

func (c *conn) finish(err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		c.log.Info.Println("closing connection")
	case errors.As(err, &netErr) && netErr.Timeout():
		c.log.Info.Println("connection closed due to inactivity")
	case isProtocolError(err):
		c.log.Info.Println("connection closed: unreadable request")
		c.log.Err.Println(err)
	default:
		c.log.Info.Println("connection aborted")
		c.log.Err.Println(err)
	}
}

func isProtocolError(err error) bool {
	for _, target := range []error{
		request.ErrMalformedRequestLine,
		request.ErrInvalidContentLength,
		request.ErrBodyTruncated,
		headers.ErrMalformedRequestHeader,
		crlf.ErrLineTooLong,
		io.ErrUnexpectedEOF,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// readDeadline expires immediately for an idle connection once shutdown has
// begun, so a re-arm cannot undo wakeIfIdle.
func (c *conn) readDeadline() time.Time {
	if c.idle.Load() && c.server.shuttingDown.Load() {
		return time.Now()
	}
	return time.Now().Add(c.server.idleTimeout())
}

// wakeIfIdle unblocks a connection waiting for its next request so that it
// notices the shutdown.
func (c *conn) wakeIfIdle() {
	if c.idle.Load() {
		c.netConn.SetReadDeadline(time.Now())
	}
}
