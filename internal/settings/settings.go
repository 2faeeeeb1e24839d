// Package settings holds the process-wide, read-only server configuration.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yanshuy/cgiserver/internal/cgi"
)

// Settings is built once at startup and shared by every connection. Nothing
// may modify it after the server starts.
type Settings struct {
	Port int
	// Root is the document root all resources resolve beneath.
	Root string

	// AllowPersistentConnections disables keep-alive entirely when false.
	AllowPersistentConnections bool
	// InheritServerEnv passes the server's environment to CGI handlers.
	InheritServerEnv bool
	// HostnameLookups resolves REMOTE_HOST by reverse DNS instead of
	// repeating the address.
	HostnameLookups bool

	// IndexFiles are tried in order when a directory is requested.
	IndexFiles []string
	// CGIFiles are request paths whose files run as native CGI programs.
	CGIFiles map[string]bool
	// Handlers are request paths served by in-process CGI handlers. These
	// paths need not exist on disk.
	Handlers map[string]cgi.Handler
	// MIMETypes maps a file extension, without the dot, to a MIME type.
	// It is consulted when the OS tables know nothing about the extension.
	MIMETypes map[string]string

	IdleTimeout time.Duration
	CGITimeout  time.Duration
}

func Default() *Settings {
	return &Settings{
		Port:                       8080,
		Root:                       "./public_html",
		AllowPersistentConnections: true,
		InheritServerEnv:           false,
		IndexFiles:                 []string{"index.html", "index.htm"},
		CGIFiles:                   map[string]bool{},
		Handlers:                   map[string]cgi.Handler{},
		MIMETypes:                  DefaultMIMETypes(),
		IdleTimeout:                15 * time.Second,
		CGITimeout:                 30 * time.Second,
	}
}

func (s *Settings) Validate() error {
	var errs []error
	if s.Port < 0 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", s.Port))
	}
	if s.Root == "" {
		errs = append(errs, errors.New("document root is empty"))
	}
	if s.IdleTimeout <= 0 {
		errs = append(errs, errors.New("idle timeout must be positive"))
	}
	for p := range s.CGIFiles {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("cgi path %q must start with /", p))
		}
	}
	for p, h := range s.Handlers {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("handler path %q must start with /", p))
		}
		if h == nil {
			errs = append(errs, fmt.Errorf("handler path %q has no handler", p))
		}
		if hasHiddenSegment(p) {
			errs = append(errs, fmt.Errorf("handler path %q is unreachable: hidden segment", p))
		}
	}
	return errors.Join(errs...)
}

// hasHiddenSegment reports whether a request path contains a segment starting
// with a dot. The resolver answers 403 for such paths before any handler
// lookup.
func hasHiddenSegment(reqPath string) bool {
	for _, seg := range strings.Split(reqPath, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

func (s *Settings) IsCGIFile(reqPath string) bool {
	return s.CGIFiles[reqPath]
}

func (s *Settings) Handler(reqPath string) (cgi.Handler, bool) {
	h, ok := s.Handlers[reqPath]
	return h, ok
}

func (s *Settings) MIMEType(ext string) string {
	return s.MIMETypes[strings.ToLower(strings.TrimPrefix(ext, "."))]
}
