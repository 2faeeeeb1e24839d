package cgi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime/debug"
)

// ExitFailure is the status reported for a handler that returned an error
// or panicked without choosing a status of its own.
const ExitFailure = 1

// Handler is a CGI program that runs inside the server. It reads the request
// body from stdin, writes header lines, a blank line and the body to stdout,
// and returns its exit status.
type Handler interface {
	ServeCGI(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, env Env) (int, error)
}

type HandlerFunc func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, env Env) (int, error)

func (f HandlerFunc) ServeCGI(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, env Env) (int, error) {
	return f(ctx, stdin, stdout, stderr, env)
}

// InProcess adapts a Handler to the Executor contract. The handler runs on
// the calling goroutine; its errors and panics never escape.
type InProcess struct {
	Handler Handler
}

func (p InProcess) Execute(ctx context.Context, stdin []byte, env Env) (*Result, error) {
	var stdout, stderr bytes.Buffer
	status := p.run(ctx, bytes.NewReader(stdin), &stdout, &stderr, env.Clone())
	return &Result{
		ExitStatus: status,
		Stdout:     stdout.Bytes(),
		Stderr:     stderr.Bytes(),
	}, nil
}

func (p InProcess) run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, env Env) (status int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "panic: %v\n%s", r, debug.Stack())
			status = ExitFailure
		}
	}()

	status, err := p.Handler.ServeCGI(ctx, stdin, stdout, stderr, env)
	if err != nil {
		fmt.Fprintln(stderr, err)
		if status == 0 {
			status = ExitFailure
		}
	}
	return status
}
