// Package wasi serves CGI requests from WebAssembly modules compiled for
// WASI. Each request instantiates a fresh module with the CGI environment,
// the request body on stdin and stdout/stderr captured by the caller.
package wasi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/yanshuy/cgiserver/internal/cgi"
)

// Module is a compiled WASI program usable as a cgi.Handler. It is safe for
// concurrent use.
type Module struct {
	name     string
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
}

// Load reads and compiles the module at path.
func Load(ctx context.Context, path string) (*Module, error) {
	bin, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(ctx, path, bin)
}

// Compile prepares bin for execution. name becomes argv[0] of every run.
func Compile(ctx context.Context, name string, bin []byte) (*Module, error) {
	// Guest code is compiled and never yields; only a runtime closed on
	// context expiry can stop a looping module.
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("wasi %s: %w", name, err)
	}
	compiled, err := r.CompileModule(ctx, bin)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("wasi %s: %w", name, err)
	}
	return &Module{name: name, runtime: r, compiled: compiled}, nil
}

func (m *Module) ServeCGI(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, env cgi.Env) (int, error) {
	config := wazero.NewModuleConfig().
		WithName("").
		WithArgs(m.name).
		WithStdin(stdin).
		WithStdout(stdout).
		WithStderr(stderr)

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		config = config.WithEnv(k, env[k])
	}

	mod, err := m.runtime.InstantiateModule(ctx, m.compiled, config)
	if mod != nil {
		defer mod.Close(ctx)
	}
	if err != nil {
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			switch exitErr.ExitCode() {
			case sys.ExitCodeDeadlineExceeded, sys.ExitCodeContextCanceled:
				fmt.Fprintf(stderr, "wasi %s: %v\n", m.name, ctx.Err())
				return -1, nil
			}
			return int(exitErr.ExitCode()), nil
		}
		return cgi.ExitFailure, fmt.Errorf("wasi %s: %w", m.name, err)
	}
	return 0, nil
}

func (m *Module) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}
