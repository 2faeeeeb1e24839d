// Package dispatch turns one parsed request into one response: validation,
// sandboxed resolution, then a static file, a directory listing or a CGI
// invocation. It never touches the connection.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/yanshuy/cgiserver/internal/cgi"
	"github.com/yanshuy/cgiserver/internal/logging"
	"github.com/yanshuy/cgiserver/internal/request"
	"github.com/yanshuy/cgiserver/internal/response"
	"github.com/yanshuy/cgiserver/internal/sandbox"
	"github.com/yanshuy/cgiserver/internal/settings"
)

const teapotProtocol = "HTCPCP/1.0"

type Dispatcher struct {
	settings *settings.Settings
	resolver *sandbox.Resolver
}

func New(s *settings.Settings) (*Dispatcher, error) {
	r, err := sandbox.New(s.Root)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{settings: s, resolver: r}, nil
}

// Dispatch resolves req and produces its response. remoteAddr is the peer's
// IP address. Every failure becomes an error response; nothing escapes.
func (d *Dispatcher) Dispatch(ctx context.Context, req *request.Request, remoteAddr string, log *logging.Logger) *response.Response {
	log.Info.Println("validating request")
	if strings.EqualFold(req.Method, http.MethodPost) && !req.Has("content-length") {
		const msg = "The method was POST, but the request did not include a Content-Length field."
		log.Err.Println(msg)
		return response.Status(http.StatusLengthRequired, msg)
	}
	if !req.Has("host") {
		return response.Status(http.StatusBadRequest)
	}
	if strings.EqualFold(req.HttpVersion, teapotProtocol) {
		const msg = "Request for coffee could not be filled."
		log.Err.Println(msg)
		return response.Status(http.StatusTeapot, msg)
	}

	log.Info.Println("finding resource")
	target, err := request.ParseTarget(req.Target)
	if err != nil {
		return response.Status(http.StatusBadRequest)
	}
	full, err := d.resolver.Resolve(target.Path)
	if err != nil {
		log.Err.Printf("%s: %v", target.Path, err)
		return response.Status(http.StatusForbidden)
	}

	if h, ok := d.settings.Handler(target.Path); ok {
		log.Info.Println("executing in-process handler", target.Path)
		return d.runCGI(ctx, cgi.InProcess{Handler: h}, req, target, remoteAddr, log)
	}

	info, err := os.Stat(full)
	if err != nil {
		return statError(err, log)
	}

	if info.IsDir() {
		if p, ok := sandbox.Index(full, d.settings.IndexFiles); ok {
			if err := d.resolver.Check(p); err != nil {
				log.Err.Printf("%s: %v", p, err)
				return response.Status(http.StatusForbidden)
			}
			if info, err = os.Stat(p); err != nil {
				return statError(err, log)
			}
			full = p
		}
	}

	switch {
	case info.Mode().IsRegular():
		if d.settings.IsCGIFile(target.Path) {
			log.Info.Println("executing CGI", full)
			return d.runCGI(ctx, &cgi.Script{Path: full}, req, target, remoteAddr, log)
		}
		return d.static(full, info, log)

	case info.IsDir():
		log.Info.Println("generating index", full)
		return d.listing(full, target.Path, log)

	default:
		const msg = "Request was for neither a file nor a directory."
		log.Err.Println(msg)
		return response.Status(http.StatusForbidden, msg)
	}
}

func statError(err error, log *logging.Logger) *response.Response {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return response.Status(http.StatusNotFound)
	case errors.Is(err, fs.ErrPermission):
		log.Err.Println(err)
		return response.Status(http.StatusForbidden)
	default:
		log.Err.Println(err)
		return response.Status(http.StatusInternalServerError)
	}
}

func (d *Dispatcher) static(full string, info fs.FileInfo, log *logging.Logger) *response.Response {
	log.Info.Println("reading file", full)
	data, err := os.ReadFile(full)
	if err != nil {
		log.Err.Println(err)
		return response.Status(http.StatusInternalServerError)
	}

	ext := filepath.Ext(full)
	typ := mime.TypeByExtension(ext)
	if typ == "" {
		typ = d.settings.MIMEType(ext)
	}
	log.Info.Println("MIME type:", typ)

	resp := response.NewResponse()
	resp.ContentType = typ
	resp.LastModified = response.HttpDate(info.ModTime())
	resp.Body = data
	return resp
}

func (d *Dispatcher) runCGI(ctx context.Context, exec cgi.Executor, req *request.Request, target *request.Target, remoteAddr string, log *logging.Logger) *response.Response {
	if d.settings.CGITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.settings.CGITimeout)
		defer cancel()
	}

	env := cgi.NewEnv(req.Headers, cgi.Meta{
		ServerName:     response.ServerName,
		ServerProtocol: response.Protocol,
		ServerPort:     d.settings.Port,
		Method:         req.Method,
		RemoteHost:     d.remoteHost(ctx, remoteAddr),
		RemoteAddr:     remoteAddr,
		ScriptName:     target.Path,
		Query:          target.Query,
		HasQuery:       target.HasQuery,
	}, d.settings.InheritServerEnv)

	res, err := exec.Execute(ctx, req.Body, env)
	if err != nil {
		log.Err.Println(err)
		return response.Status(http.StatusInternalServerError)
	}
	if len(res.Stderr) > 0 {
		log.ErrWriter().Write(res.Stderr)
	}
	if res.ExitStatus != 0 {
		msg := fmt.Sprintf("(CGI process terminated with a non-zero exit code: %d)", res.ExitStatus)
		log.Err.Println(msg)
		return response.Status(http.StatusInternalServerError, msg)
	}

	head, body, err := cgi.ParseOutput(res.Stdout)
	if err != nil {
		log.Err.Println(err)
		return response.Status(http.StatusInternalServerError)
	}
	resp := response.NewResponse()
	resp.CGIHeaders = head
	resp.Body = body
	return resp
}

func (d *Dispatcher) remoteHost(ctx context.Context, addr string) string {
	if !d.settings.HostnameLookups {
		return addr
	}
	names, err := net.DefaultResolver.LookupAddr(ctx, addr)
	if err != nil || len(names) == 0 {
		return addr
	}
	return strings.TrimSuffix(names[0], ".")
}
