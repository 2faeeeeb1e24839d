package headers

import (
	"errors"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Headers maps lower-cased field names to trimmed values.
// A repeated field replaces the earlier value.
type Headers map[string]string

func NewHeaders() Headers {
	return make(Headers)
}

func (h Headers) Get(key string) (string, bool) {
	val, ok := h[strings.ToLower(key)]
	return val, ok
}

func (h Headers) Has(key string) bool {
	_, ok := h[strings.ToLower(key)]
	return ok
}

// Is reports whether the field is present and equal to val, ignoring case.
func (h Headers) Is(key, val string) bool {
	got, ok := h.Get(key)
	return ok && strings.EqualFold(got, val)
}

func (h Headers) Set(key, val string) {
	h[strings.ToLower(key)] = val
}

func (h Headers) Del(key string) {
	delete(h, strings.ToLower(key))
}

func (h Headers) ParseHeaderLine(line string) error {
	key, val, ok := strings.Cut(line, ":")
	if !ok {
		return ErrMalformedRequestHeader
	}

	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)
	if !httpguts.ValidHeaderFieldName(key) || !httpguts.ValidHeaderFieldValue(val) {
		return ErrMalformedRequestHeader
	}

	h.Set(key, val)
	return nil
}

var ErrMalformedRequestHeader = errors.New("malformed request header")
