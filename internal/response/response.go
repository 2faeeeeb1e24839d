package response

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	Protocol   = "HTTP/1.1"
	ServerName = "cgiserver/1.0"
)

// Response is the outcome of dispatching one request. A nil Body is sent
// as an empty body.
type Response struct {
	Status       int
	ContentType  string
	LastModified string
	CGIHeaders   []string
	Body         []byte
}

func NewResponse() *Response {
	return &Response{Status: http.StatusOK}
}

// Status builds a plain-text response whose body is the status line text,
// followed by detail when given.
func Status(code int, detail ...string) *Response {
	body := fmt.Sprintf("%d %s", code, http.StatusText(code))
	for _, d := range detail {
		body += "\n" + d
	}
	return &Response{
		Status:      code,
		ContentType: "text/plain",
		Body:        []byte(body),
	}
}

func StatusLine(code int) string {
	return fmt.Sprintf("%s %d %s", Protocol, code, http.StatusText(code))
}

// HttpDate formats t in the RFC 1123 form used by Date and Last-Modified.
func HttpDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

type writeStatus int

const (
	StateInitial writeStatus = iota
	StateWroteStatus
	StateWroteHeader
	StateWroteBody
)

// Writer serializes responses onto a connection. It is reset after each
// complete response so one Writer serves a whole keep-alive connection.
type Writer struct {
	writer io.Writer
	writeStatus
	now func() time.Time
}

func NewResponseWriter(w io.Writer) *Writer {
	return &Writer{
		writer:      w,
		writeStatus: StateInitial,
		now:         time.Now,
	}
}

func (w *Writer) WriteStatus(statusCode int) error {
	if w.writeStatus != StateInitial {
		return ErrStatusAlreadyWritten
	}
	if http.StatusText(statusCode) == "" {
		return ErrBadStatusCode
	}

	w.writeStatus = StateWroteStatus
	_, err := fmt.Fprintf(w.writer, "%s\r\n", StatusLine(statusCode))
	return err
}

func (w *Writer) writeHeaders(resp *Response, keepAlive bool) error {
	if w.writeStatus != StateWroteStatus {
		return ErrHeadersOutOfOrder
	}

	connection := "close"
	if keepAlive {
		connection = "keep-alive"
	}

	hLines := []byte{}
	hLines = fmt.Appendf(hLines, "Date: %s\r\n", HttpDate(w.now()))
	hLines = fmt.Appendf(hLines, "Server: %s\r\n", ServerName)
	hLines = fmt.Appendf(hLines, "Connection: %s\r\n", connection)
	hLines = fmt.Appendf(hLines, "Content-Length: %s\r\n", strconv.Itoa(len(resp.Body)))
	if resp.ContentType != "" {
		hLines = fmt.Appendf(hLines, "Content-Type: %s\r\n", resp.ContentType)
	}
	if resp.LastModified != "" {
		hLines = fmt.Appendf(hLines, "Last-Modified: %s\r\n", resp.LastModified)
	}
	for _, line := range resp.CGIHeaders {
		hLines = fmt.Appendf(hLines, "%s\r\n", line)
	}
	hLines = fmt.Append(hLines, "\r\n")

	w.writeStatus = StateWroteHeader
	_, err := w.writer.Write(hLines)
	return err
}

// WriteResponse writes the status line, the standard headers in fixed order,
// any CGI header lines and the body.
func (w *Writer) WriteResponse(resp *Response, keepAlive bool) error {
	defer func() { w.writeStatus = StateInitial }()

	if err := w.WriteStatus(resp.Status); err != nil {
		return err
	}
	if err := w.writeHeaders(resp, keepAlive); err != nil {
		return err
	}
	if len(resp.Body) > 0 {
		if _, err := w.writer.Write(resp.Body); err != nil {
			return err
		}
	}
	w.writeStatus = StateWroteBody
	return nil
}

// WriteContinue writes the interim 100 Continue response.
func (w *Writer) WriteContinue() error {
	if w.writeStatus != StateInitial {
		return ErrStatusAlreadyWritten
	}
	_, err := fmt.Fprintf(w.writer, "%s\r\nDate: %s\r\nServer: %s\r\n\r\n",
		StatusLine(http.StatusContinue), HttpDate(w.now()), ServerName)
	return err
}

var (
	ErrStatusAlreadyWritten = errors.New("status already written")
	ErrHeadersOutOfOrder    = errors.New("headers written before status")
	ErrBadStatusCode        = errors.New("bad status code")
)
