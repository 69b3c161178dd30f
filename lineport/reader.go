package lineport

import (
	"bytes"
	"io"
	"time"

	"golang.org/x/text/encoding"
)

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode: " + e.err.Error() }

func (e *decodeError) Unwrap() error { return e.err }

// timedReader is a reader whose reads return 0, nil once the read timeout expires
type timedReader interface {
	io.Reader
	SetReadTimeout(timeout time.Duration) error
}

// lineReader assembles lines from a port whose reads return 0, nil on timeout.
// Bytes after the terminator are kept for the next call, as is a partial line
// that was interrupted by a timeout.
type lineReader struct {
	port      timedReader
	newline   []byte
	timeout   time.Duration
	maxLength int
	decoder   *encoding.Decoder

	/* Read timeout currently set on the port */
	portTimeout time.Duration

	pending    []byte
	discarding bool
	readBuf    [256]byte
}

// newLineReader expects the read timeout of port to be set to timeout already
func newLineReader(port timedReader, newline []byte, timeout time.Duration, maxLength int, enc encoding.Encoding) *lineReader {
	r := &lineReader{
		port:        port,
		newline:     newline,
		timeout:     timeout,
		maxLength:   maxLength,
		portTimeout: timeout,
	}
	if enc != nil {
		r.decoder = enc.NewDecoder()
	}
	return r
}

func (r *lineReader) decode(line []byte) (string, error) {
	if r.decoder == nil {
		return string(line), nil
	}

	out, err := r.decoder.Bytes(line)
	if err != nil {
		return "", &decodeError{err: err}
	}
	return string(out), nil
}

// nextLine takes a complete line out of the pending buffer
func (r *lineReader) nextLine() ([]byte, bool) {
	for {
		idx := bytes.Index(r.pending, r.newline)
		if idx < 0 {
			return nil, false
		}

		line := make([]byte, idx)
		copy(line, r.pending[:idx])
		r.pending = append(r.pending[:0], r.pending[idx+len(r.newline):]...)

		if r.discarding {
			/* Tail of a line that was already dropped */
			r.discarding = false
			continue
		}
		return line, true
	}
}

// setTimeout changes the port read timeout when it differs from the one set
func (r *lineReader) setTimeout(timeout time.Duration) error {
	if timeout == r.portTimeout {
		return nil
	}
	if err := r.port.SetReadTimeout(timeout); err != nil {
		return err
	}
	r.portTimeout = timeout
	return nil
}

// readLine returns the next line without its terminator. It returns ErrorReadTimeout
// when no complete line arrived within the timeout and ErrorLineTooLong when a
// partial line was dropped. Other errors come from the port.
func (r *lineReader) readLine() (string, error) {
	deadline := time.Now().Add(r.timeout)
	first := true

	for {
		if line, ok := r.nextLine(); ok {
			return r.decode(line)
		}

		if len(r.pending) > r.maxLength {
			/* Keep a possible partial terminator so it can still match */
			keep := len(r.newline) - 1
			r.pending = append(r.pending[:0], r.pending[len(r.pending)-keep:]...)
			if !r.discarding {
				r.discarding = true
				return "", ErrorLineTooLong
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", ErrorReadTimeout
		}

		/* Later reads only get what is left of the timeout */
		timeout := r.timeout
		if !first {
			timeout = remaining
		}
		first = false
		if err := r.setTimeout(timeout); err != nil {
			return "", err
		}

		n, err := r.port.Read(r.readBuf[:])
		if n > 0 {
			r.pending = append(r.pending, r.readBuf[:n]...)
		}
		if err != nil {
			return "", err
		}
		if n == 0 {
			return "", ErrorReadTimeout
		}
	}
}
