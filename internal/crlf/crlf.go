package crlf

import (
	"errors"
	"io"
)

// MaxLineLength bounds a single line, delimiter excluded.
const MaxLineLength = 8 << 10

var ErrLineTooLong = errors.New("line too long")

// ReadLine reads up to the next CR LF and returns the line without it.
// It returns io.EOF if the source is exhausted before any byte is read, and
// the partial line with io.ErrUnexpectedEOF if it ends in the middle of one.
func ReadLine(r io.ByteReader) (string, error) {
	var line []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err != io.EOF {
				return string(line), err
			}
			if len(line) == 0 {
				return "", io.EOF
			}
			return string(line), io.ErrUnexpectedEOF
		}

		if b == '\n' && len(line) > 0 && line[len(line)-1] == '\r' {
			return string(line[:len(line)-1]), nil
		}
		if len(line) > MaxLineLength {
			return "", ErrLineTooLong
		}
		line = append(line, b)
	}
}
