package headers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadersParser(t *testing.T) {
	headers := NewHeaders()
	require.NoError(t, headers.ParseHeaderLine("Host: localhost:42069"))
	require.NoError(t, headers.ParseHeaderLine("FooFoo:   Barbar   "))

	host, ok := headers.Get("host")
	assert.True(t, ok)
	assert.Equal(t, "localhost:42069", host)
	assert.Equal(t, "Barbar", headers["foofoo"])

	// Test: surrounding spaces on the key are trimmed
	headers = NewHeaders()
	require.NoError(t, headers.ParseHeaderLine("  Content-Length : 12"))
	assert.Equal(t, "12", headers["content-length"])

	// Test: last write wins
	headers = NewHeaders()
	require.NoError(t, headers.ParseHeaderLine("FooFoo: Barbar"))
	require.NoError(t, headers.ParseHeaderLine("foofoo: Barbar2"))
	assert.Equal(t, "Barbar2", headers["foofoo"])
	assert.Len(t, headers, 1)

	// Test: value keeps everything after the first colon
	headers = NewHeaders()
	require.NoError(t, headers.ParseHeaderLine("Referer: http://a:8080/x"))
	assert.Equal(t, "http://a:8080/x", headers["referer"])
}

func TestHeadersParserRejects(t *testing.T) {
	for _, line := range []string{
		"no colon here",
		"Bad Key: value",
		": empty key",
		"Key: bad\x00value",
	} {
		err := NewHeaders().ParseHeaderLine(line)
		assert.ErrorIs(t, err, ErrMalformedRequestHeader, line)
	}
}

func TestHeadersIs(t *testing.T) {
	h := NewHeaders()
	h.Set("Connection", "Keep-Alive")
	assert.True(t, h.Is("connection", "keep-alive"))
	assert.False(t, h.Is("connection", "close"))
	assert.False(t, h.Is("upgrade", ""))

	h.Del("CONNECTION")
	assert.False(t, h.Has("connection"))
}
