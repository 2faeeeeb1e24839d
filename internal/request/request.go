package request

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yanshuy/cgiserver/internal/crlf"
	"github.com/yanshuy/cgiserver/internal/headers"
)

// MaxBodySize caps the Content-Length a request may declare.
const MaxBodySize = 64 << 20

const bodyChunk = 32 << 10

const (
	HTTP10 = "HTTP/1.0"
	HTTP11 = "HTTP/1.1"
)

type RequestLine struct {
	Method      string
	Target      string
	HttpVersion string
}

type Request struct {
	*RequestLine
	headers.Headers
	Body []byte
}

func NewRequest() *Request {
	return &Request{
		Headers: headers.NewHeaders(),
	}
}

func (r *Request) IsHTTP11() bool {
	return strings.EqualFold(r.HttpVersion, HTTP11)
}

// ContentLength returns the declared body length and whether it was declared.
func (r *Request) ContentLength() (int, bool, error) {
	contLenStr, ok := r.Headers.Get("Content-Length")
	if !ok {
		return 0, false, nil
	}
	contLen, err := strconv.Atoi(contLenStr)
	if err != nil || contLen < 0 || contLen > MaxBodySize {
		return 0, true, ErrInvalidContentLength
	}
	return contLen, true, nil
}

type parseState int

const (
	StateStart parseState = iota
	StateHeaders
	StateHeadersDone
	StateBody
	StateDone
)

type RequestParser struct {
	*Request
	state   parseState
	contLen int

	// Continue, if set, runs after the headers of an HTTP/1.1 request
	// carrying a Content-Length and before its body is read.
	Continue func() error
}

func NewRequestParser() *RequestParser {
	return &RequestParser{
		Request: NewRequest(),
		state:   StateStart,
	}
}

func (rp *RequestParser) Done() bool {
	return rp.state == StateDone
}

// RequestFromReader parses one request from r. A clean end of stream before
// the request line is reported as io.EOF so that callers can tell an idle
// peer hanging up from a broken request.
func RequestFromReader(r *bufio.Reader) (*Request, error) {
	return NewRequestParser().Parse(r)
}

func (rp *RequestParser) Parse(r *bufio.Reader) (*Request, error) {
	for !rp.Done() {
		if err := rp.parse(r); err != nil {
			return nil, err
		}
	}
	return rp.Request, nil
}

func (rp *RequestParser) parse(r *bufio.Reader) error {
	switch rp.state {
	case StateStart:
		line, err := crlf.ReadLine(r)
		if err == io.EOF {
			return io.EOF
		}
		if err != nil {
			return fmt.Errorf("request line: %w", err)
		}
		reqline, err := parseRequestLine(line)
		if err != nil {
			return err
		}
		rp.RequestLine = reqline
		rp.state = StateHeaders

	case StateHeaders:
		line, err := crlf.ReadLine(r)
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return fmt.Errorf("headers: %w", err)
		}
		if line == "" {
			rp.state = StateHeadersDone
			return nil
		}
		return rp.Headers.ParseHeaderLine(line)

	case StateHeadersDone:
		contLen, ok, err := rp.ContentLength()
		if err != nil {
			return err
		}
		if !ok {
			rp.Body = []byte{}
			rp.state = StateDone
			return nil
		}
		if rp.IsHTTP11() && rp.Continue != nil {
			if err := rp.Continue(); err != nil {
				return fmt.Errorf("continue: %w", err)
			}
		}
		rp.contLen = contLen
		rp.state = StateBody

	case StateBody:
		// The buffer grows with the bytes actually received, not with the
		// declared length.
		body := bytes.NewBuffer(make([]byte, 0, min(rp.contLen, bodyChunk)))
		n, err := io.CopyN(body, r, int64(rp.contLen))
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: got %d of %d bytes", ErrBodyTruncated, n, rp.contLen)
			}
			return fmt.Errorf("body: %w", err)
		}
		rp.Body = body.Bytes()
		rp.state = StateDone
	}
	return nil
}

func parseRequestLine(line string) (*RequestLine, error) {
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return nil, ErrMalformedRequestLine
	}

	return &RequestLine{
		Method:      parts[0],
		Target:      parts[1],
		HttpVersion: parts[2],
	}, nil
}

var ErrMalformedRequestLine = errors.New("malformed request line")
var ErrInvalidContentLength = errors.New("invalid content length")
var ErrBodyTruncated = errors.New("request body shorter than content length")
