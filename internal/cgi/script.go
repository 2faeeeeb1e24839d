package cgi

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

var ErrEmptyShebang = errors.New("shebang names no interpreter")

// Script is a native CGI program on disk.
type Script struct {
	Path string
}

// Command returns the argv used to run the script. A file starting with
// "#!" runs as the interpreter line followed by the file name; anything else
// is executed directly.
func (s *Script) Command() ([]string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, 2)
	n, _ := io.ReadFull(r, magic)
	if n < 2 || string(magic) != "#!" {
		return []string{s.Path}, nil
	}

	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	argv := strings.Fields(line)
	if len(argv) == 0 {
		return nil, ErrEmptyShebang
	}
	return append(argv, filepath.Base(s.Path)), nil
}

// Execute runs the script in its own directory with exactly env as its
// environment. The request body goes to stdin, which is then closed; stdout
// and stderr are drained concurrently so a child filling one pipe cannot
// stall on the other. The child is killed and reaped on every return path.
func (s *Script) Execute(ctx context.Context, stdin []byte, env Env) (*Result, error) {
	argv, err := s.Command()
	if err != nil {
		return nil, fmt.Errorf("cgi %s: %w", s.Path, err)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = filepath.Dir(s.Path)
	cmd.Env = env.Environ()

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("cgi %s: %w", s.Path, err)
	}
	defer func() {
		if cmd.ProcessState == nil {
			cmd.Process.Kill()
			cmd.Wait()
		}
	}()

	// Unblock the drains if the context ends while a grandchild still
	// holds the write side of a pipe.
	stop := context.AfterFunc(ctx, func() {
		stdoutPipe.Close()
		stderrPipe.Close()
	})
	defer stop()

	var stdout, stderr bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		defer stdinPipe.Close()
		// A child that exits without reading its input is not an error here.
		stdinPipe.Write(stdin)
	}()
	go func() {
		defer wg.Done()
		io.Copy(&stdout, stdoutPipe)
	}()
	go func() {
		defer wg.Done()
		io.Copy(&stderr, stderrPipe)
	}()
	wg.Wait()

	res := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	err = cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitStatus = 0
	case errors.As(err, &exitErr):
		res.ExitStatus = exitErr.ExitCode()
	case ctx.Err() != nil:
		res.ExitStatus = -1
		fmt.Fprintf(&stderr, "cgi %s: %v\n", s.Path, ctx.Err())
		res.Stderr = stderr.Bytes()
	default:
		return nil, fmt.Errorf("cgi %s: %w", s.Path, err)
	}
	return res, nil
}
