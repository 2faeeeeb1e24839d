package request

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanshuy/cgiserver/internal/headers"
)

func parseString(s string) (*Request, error) {
	return RequestFromReader(bufio.NewReader(strings.NewReader(s)))
}

func TestRequestLineParse(t *testing.T) {
	// Test: Good GET Request line
	r, err := parseString("GET / HTTP/1.1\r\nHost: localhost:42069\r\nUser-Agent: curl/7.81.0\r\nAccept: */*\r\n\r\n")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "GET", r.Method)
	assert.Equal(t, "/", r.Target)
	assert.Equal(t, "HTTP/1.1", r.HttpVersion)
	assert.Equal(t, "localhost:42069", r.Headers["host"])
	assert.Equal(t, "curl/7.81.0", r.Headers["user-agent"])
	assert.Empty(t, r.Body)

	// Test: Good GET Request line with path
	r, err = parseString("GET /coffee HTTP/1.0\r\nHost: localhost:42069\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, "/coffee", r.Target)
	assert.Equal(t, "HTTP/1.0", r.HttpVersion)
	assert.False(t, r.IsHTTP11())

	// Test: Unusual protocol tokens are left to the caller
	r, err = parseString("BREW /pot-1 HTCPCP/1.0\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, "HTCPCP/1.0", r.HttpVersion)

	// Test: Invalid number of parts in request line
	_, err = parseString("/coffee HTTP/1.1\r\nHost: localhost:42069\r\n\r\n")
	assert.ErrorIs(t, err, ErrMalformedRequestLine)

	_, err = parseString("GET /coffee HTTP/1.1 extra\r\n\r\n")
	assert.ErrorIs(t, err, ErrMalformedRequestLine)
}

func TestRequestHeaders(t *testing.T) {
	r, err := parseString("GET / HTTP/1.1\r\nX-Thing: one\r\nx-thing: two\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, "two", r.Headers["x-thing"])

	_, err = parseString("GET / HTTP/1.1\r\nHost localhost\r\n\r\n")
	assert.ErrorIs(t, err, headers.ErrMalformedRequestHeader)

	_, err = parseString("GET / HTTP/1.1\r\nHost: localhost\r\n")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestRequestBody(t *testing.T) {
	r, err := parseString("POST /submit HTTP/1.0\r\nHost: localhost\r\nContent-Length: 13\r\n\r\nhello world!\n")
	require.NoError(t, err)
	assert.Equal(t, "hello world!\n", string(r.Body))

	// Test: bytes past Content-Length stay in the reader
	br := bufio.NewReader(strings.NewReader("POST / HTTP/1.0\r\nContent-Length: 3\r\n\r\nabcGET / HTTP/1.0\r\n\r\n"))
	r, err = RequestFromReader(br)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(r.Body))
	next, err := RequestFromReader(br)
	require.NoError(t, err)
	assert.Equal(t, "GET", next.Method)

	// Test: short body
	_, err = parseString("POST / HTTP/1.0\r\nContent-Length: 20\r\n\r\npartial")
	assert.ErrorIs(t, err, ErrBodyTruncated)

	// Test: the largest declared length with almost nothing sent
	_, err = parseString("POST / HTTP/1.0\r\nContent-Length: " + strconv.Itoa(MaxBodySize) + "\r\n\r\nabc")
	assert.ErrorIs(t, err, ErrBodyTruncated)

	// Test: bad content length
	_, err = parseString("POST / HTTP/1.0\r\nContent-Length: -1\r\n\r\n")
	assert.ErrorIs(t, err, ErrInvalidContentLength)
	_, err = parseString("POST / HTTP/1.0\r\nContent-Length: lots\r\n\r\n")
	assert.ErrorIs(t, err, ErrInvalidContentLength)
}

func TestContinueHook(t *testing.T) {
	var calls int
	var bodyReadBeforeHook bool
	raw := "POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 2\r\n\r\nhi"

	rp := NewRequestParser()
	rp.Continue = func() error {
		calls++
		bodyReadBeforeHook = len(rp.Body) > 0
		return nil
	}
	r, err := rp.Parse(bufio.NewReader(strings.NewReader(raw)))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, bodyReadBeforeHook)
	assert.Equal(t, "hi", string(r.Body))

	// Test: no hook without a body
	calls = 0
	rp = NewRequestParser()
	rp.Continue = func() error { calls++; return nil }
	_, err = rp.Parse(bufio.NewReader(strings.NewReader("GET / HTTP/1.1\r\nHost: x\r\n\r\n")))
	require.NoError(t, err)
	assert.Equal(t, 0, calls)

	// Test: no hook for HTTP/1.0
	rp = NewRequestParser()
	rp.Continue = func() error { calls++; return nil }
	_, err = rp.Parse(bufio.NewReader(strings.NewReader("POST / HTTP/1.0\r\nContent-Length: 2\r\n\r\nhi")))
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
}

func TestCleanEOF(t *testing.T) {
	_, err := parseString("")
	assert.Equal(t, io.EOF, err)
}

func TestParseTarget(t *testing.T) {
	tg, err := ParseTarget("/cgi/add?a=1&b=2")
	require.NoError(t, err)
	assert.Equal(t, "/cgi/add", tg.Path)
	assert.Equal(t, "a=1&b=2", tg.Query)
	assert.True(t, tg.HasQuery)

	tg, err = ParseTarget("/docs/my%20file.txt")
	require.NoError(t, err)
	assert.Equal(t, "/docs/my file.txt", tg.Path)
	assert.False(t, tg.HasQuery)

	tg, err = ParseTarget("/empty?")
	require.NoError(t, err)
	assert.True(t, tg.HasQuery)
	assert.Equal(t, "", tg.Query)

	tg, err = ParseTarget("http://example.com")
	require.NoError(t, err)
	assert.Equal(t, "/", tg.Path)

	tg, err = ParseTarget("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "../../etc/passwd", tg.Path)

	tg, err = ParseTarget("a/../../etc/passwd?x")
	require.NoError(t, err)
	assert.Equal(t, "a/../../etc/passwd", tg.Path)
	assert.Equal(t, "x", tg.Query)

	_, err = ParseTarget("mailto:someone")
	assert.ErrorIs(t, err, ErrMalformedTarget)

	_, err = ParseTarget("/bad%zz")
	assert.ErrorIs(t, err, ErrMalformedTarget)
}
