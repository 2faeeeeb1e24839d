// Package cgi runs CGI handlers, either as child processes or in-process,
// and splits their standard output into header lines and body.
package cgi

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/yanshuy/cgiserver/internal/crlf"
)

// Executor runs one CGI invocation to completion. A non-nil error means the
// handler could not be run at all; a failing handler is reported through
// Result.ExitStatus instead.
type Executor interface {
	Execute(ctx context.Context, stdin []byte, env Env) (*Result, error)
}

type Result struct {
	ExitStatus int
	Stdout     []byte
	Stderr     []byte
}

var ErrMalformedOutput = errors.New("malformed CGI output")

// ParseOutput splits CGI standard output at the first blank line. Header
// lines are returned verbatim; output that ends before a blank line is all
// header.
func ParseOutput(stdout []byte) ([]string, []byte, error) {
	r := bufio.NewReader(bytes.NewReader(stdout))
	var head []string
	for {
		line, err := crlf.ReadLine(r)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return nil, nil, errors.Join(ErrMalformedOutput, err)
		}
		if strings.ContainsAny(line, "\r\n") {
			return nil, nil, ErrMalformedOutput
		}
		if line == "" {
			break
		}
		head = append(head, line)
		if err != nil {
			break
		}
	}

	body, _ := io.ReadAll(r)
	return head, body, nil
}
