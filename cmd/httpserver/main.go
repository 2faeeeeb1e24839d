package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/yanshuy/cgiserver/internal/dispatch"
	"github.com/yanshuy/cgiserver/internal/handlers"
	"github.com/yanshuy/cgiserver/internal/logging"
	"github.com/yanshuy/cgiserver/internal/server"
	"github.com/yanshuy/cgiserver/internal/settings"
	"github.com/yanshuy/cgiserver/internal/wasi"
)

const shutdownTimeout = 10 * time.Second

type flagList []string

func (flags *flagList) String() string {
	return strings.Join(*flags, ", ")
}

func (flags *flagList) Set(value string) error {
	*flags = append(*flags, strings.TrimSpace(value))
	return nil
}

func main() {
	s := settings.Default()

	var cgiFiles, wasmMounts flagList
	port := flag.Int("port", s.Port, "TCP port to listen on")
	root := flag.String("root", s.Root, "document root")
	index := flag.String("index", strings.Join(s.IndexFiles, ","), "comma separated index file names, tried in order")
	persist := flag.Bool("persist", s.AllowPersistentConnections, "allow persistent connections")
	inheritEnv := flag.Bool("inherit-env", s.InheritServerEnv, "pass the server environment to CGI programs")
	lookupHosts := flag.Bool("lookup-hosts", s.HostnameLookups, "resolve REMOTE_HOST by reverse DNS")
	idleTimeout := flag.Duration("idle-timeout", s.IdleTimeout, "close connections idle for this long")
	cgiTimeout := flag.Duration("cgi-timeout", s.CGITimeout, "kill CGI programs running longer than this (0 disables)")
	builtin := flag.Bool("builtin", false, "mount the built-in handlers at /cgi/dump and /cgi/add")
	flag.Var(&cgiFiles, "cgi", "request path of a native CGI program (repeatable)")
	flag.Var(&wasmMounts, "wasm", "mount a WASI module as path=module.wasm (repeatable)")
	flag.Parse()

	s.Port = *port
	s.Root = *root
	s.IndexFiles = nil
	for _, name := range strings.Split(*index, ",") {
		if name = strings.TrimSpace(name); name != "" {
			s.IndexFiles = append(s.IndexFiles, name)
		}
	}
	s.AllowPersistentConnections = *persist
	s.InheritServerEnv = *inheritEnv
	s.HostnameLookups = *lookupHosts
	s.IdleTimeout = *idleTimeout
	s.CGITimeout = *cgiTimeout
	for _, p := range cgiFiles {
		s.CGIFiles[p] = true
	}
	if *builtin {
		s.Handlers["/cgi/dump"] = handlers.Dump
		s.Handlers["/cgi/add"] = handlers.AddNums
	}

	ctx := context.Background()
	for _, mount := range wasmMounts {
		reqPath, file, ok := strings.Cut(mount, "=")
		if !ok {
			log.Fatalf("Invalid -wasm value %q, want path=module.wasm", mount)
		}
		m, err := wasi.Load(ctx, file)
		if err != nil {
			log.Fatalf("Error loading %s: %v", file, err)
		}
		defer m.Close(ctx)
		s.Handlers[reqPath] = m
	}

	if err := s.Validate(); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}

	d, err := dispatch.New(s)
	if err != nil {
		log.Fatalf("Error opening document root: %v", err)
	}

	logger := logging.New(os.Stdout, os.Stderr)
	srv, err := server.Serve(s, d, logger)
	if err != nil {
		log.Fatalf("Error starting server: %v", err)
	}

	log.Println("Server started on", srv.Addr(), "serving", s.Root)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("Shutdown:", err)
	}
	log.Println("Server gracefully stopped")
}
