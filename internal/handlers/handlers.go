// Package handlers holds small in-process CGI programs that ship with the
// server.
package handlers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/yanshuy/cgiserver/internal/cgi"
)

// Dump echoes its standard input followed by its environment.
var Dump = cgi.HandlerFunc(func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, env cgi.Env) (int, error) {
	fmt.Fprint(stdout, "Content-Type: text/plain\r\n\r\n")
	fmt.Fprint(stdout, "STDIN: ")
	if _, err := io.Copy(stdout, stdin); err != nil {
		fmt.Fprintln(stderr, err)
		return 1, nil
	}
	fmt.Fprint(stdout, "\r\n\r\n")

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(stdout, "%s: %s\r\n", k, env[k])
	}
	return 0, nil
})

var ErrMissingField = errors.New("missing form field")

// AddNums reads a, b and name from the query string (GET) or the first line
// of the body (POST) and reports the sum.
var AddNums = cgi.HandlerFunc(func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, env cgi.Env) (int, error) {
	query := env["QUERY_STRING"]
	if strings.EqualFold(env["REQUEST_METHOD"], "POST") {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return 1, err
		}
		query = strings.TrimRight(line, "\r\n")
	}

	form, err := url.ParseQuery(query)
	if err != nil {
		return 1, err
	}
	a, err := number(form, "a")
	if err != nil {
		return 1, err
	}
	b, err := number(form, "b")
	if err != nil {
		return 1, err
	}

	fmt.Fprint(stdout, "Content-Type: text/plain\r\n\r\n")
	fmt.Fprintf(stdout, "Dear %s, the sum of %g and %g is %g.", form.Get("name"), a, b, a+b)
	return 0, nil
})

func number(form url.Values, key string) (float64, error) {
	if !form.Has(key) {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	return strconv.ParseFloat(form.Get(key), 64)
}
