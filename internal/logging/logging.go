package logging

import (
	"io"
	"log"
)

// Logger is a pair of append-only text streams: progress lines go to Info,
// failures and CGI standard error go to Err. Both are safe for concurrent use.
type Logger struct {
	Info *log.Logger
	Err  *log.Logger
}

func New(info, errs io.Writer) *Logger {
	return &Logger{
		Info: log.New(info, "", log.LstdFlags),
		Err:  log.New(errs, "", log.LstdFlags),
	}
}

// Discard drops everything written to it.
func Discard() *Logger {
	return New(io.Discard, io.Discard)
}

// Conn derives the streams for one connection, tagged with its remote address.
func (l *Logger) Conn(remote string) *Logger {
	prefix := "[" + remote + "] "
	return &Logger{
		Info: log.New(l.Info.Writer(), prefix, l.Info.Flags()|log.Lmsgprefix),
		Err:  log.New(l.Err.Writer(), prefix, l.Err.Flags()|log.Lmsgprefix),
	}
}

// ErrWriter exposes the error stream as an io.Writer, one log entry per write.
func (l *Logger) ErrWriter() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		l.Err.Print(string(p))
		return len(p), nil
	})
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
