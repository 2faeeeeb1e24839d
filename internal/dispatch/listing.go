package dispatch

import (
	"fmt"
	"html"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/yanshuy/cgiserver/internal/logging"
	"github.com/yanshuy/cgiserver/internal/response"
	"github.com/yanshuy/cgiserver/internal/sandbox"
)

func (d *Dispatcher) listing(full, relPath string, log *logging.Logger) *response.Response {
	entries, err := os.ReadDir(full)
	if err != nil {
		log.Err.Println(err)
		return response.Status(http.StatusInternalServerError)
	}

	title := html.EscapeString(relPath)
	base := strings.TrimSuffix(relPath, "/")

	var b strings.Builder
	b.WriteString("<!doctype html>\r\n\r\n<html>\r\n\r\n<head>\r\n")
	b.WriteString("\t<meta charset='UTF-8' />\r\n")
	fmt.Fprintf(&b, "\t<meta name='generator' content='%s' />\r\n", response.ServerName)
	fmt.Fprintf(&b, "\t<title>Index of %s</title>\r\n", title)
	b.WriteString("</head>\r\n\r\n<body>\r\n")
	fmt.Fprintf(&b, "\t<h1>Index of %s</h1>\r\n", title)
	b.WriteString("\t<hr />\r\n\t<ul>\r\n")

	writeEntry(&b, relPath, ".")
	writeEntry(&b, base+"/..", "..")
	for _, e := range entries {
		if sandbox.IsHidden(e.Name()) {
			continue
		}
		writeEntry(&b, base+"/"+e.Name(), e.Name())
	}
	b.WriteString("\t</ul>\r\n</body>\r\n\r\n</html>")

	resp := response.NewResponse()
	resp.ContentType = "text/html"
	resp.Body = []byte(b.String())
	return resp
}

func writeEntry(b *strings.Builder, href, name string) {
	escaped := (&url.URL{Path: href}).EscapedPath()
	fmt.Fprintf(b, "\t\t<li><a href='%s'>%s</a></li>\r\n", html.EscapeString(escaped), html.EscapeString(name))
}
