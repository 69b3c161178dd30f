package lineport

import (
	"fmt"
	"strings"
	"time"

	"github.com/BertoldVdb/go-serialline/serial"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

const (
	DefaultReadTimeout   = 3000 * time.Millisecond
	DefaultDataBits      = 8
	DefaultNewLine       = "\n"
	DefaultMaxLineLength = 4096

	// joinGrace is added to the read timeout to get the default JoinTimeout
	joinGrace = time.Second
)

// TimeoutPolicy decides what a read timeout does to a line that was not polled yet
type TimeoutPolicy int

const (
	// TimeoutKeepPending leaves an unread line in place
	TimeoutKeepPending TimeoutPolicy = iota
	// TimeoutClearPending discards an unread line, so PollLine only returns lines
	// received during the last read period
	TimeoutClearPending
)

func (p TimeoutPolicy) String() string {
	switch p {
	case TimeoutKeepPending:
		return "keep"
	case TimeoutClearPending:
		return "clear"
	}
	return fmt.Sprintf("TimeoutPolicy(%d)", int(p))
}

// Config describes the connection. PortName and BaudRate are required, everything
// else has a default.
type Config struct {
	PortName string
	BaudRate int

	// ReadTimeout bounds a single line read. Default 3s.
	ReadTimeout time.Duration
	Parity      serial.Parity
	// DataBits per frame, 5 to 8. Default 8.
	DataBits int
	StopBits serial.StopBits

	// NewLine terminates lines in both directions. Default "\n".
	NewLine string
	// Encoding converts between the bytes on the wire and Go strings. When nil the
	// bytes are used as they are.
	Encoding encoding.Encoding
	// MaxLineLength is the number of bytes buffered without seeing NewLine before the
	// partial line is dropped. Default 4096.
	MaxLineLength int

	TimeoutPolicy TimeoutPolicy
	// JoinTimeout bounds how long Terminate waits for the reader goroutine.
	// Default ReadTimeout + 1s.
	JoinTimeout time.Duration

	// Opener opens the port, default serial.Open
	Opener serial.Opener
	// Logger defaults to an info level logrusconfig logger
	Logger *logrus.Entry
}

// Normalize validates the config and applies defaults for unset values.
func (c Config) Normalize() (Config, error) {
	cfg := c

	if strings.TrimSpace(cfg.PortName) == "" {
		return cfg, serial.ErrorNoPortName
	}
	if cfg.BaudRate <= 0 {
		return cfg, fmt.Errorf("invalid baud rate %d: must be positive", cfg.BaudRate)
	}

	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.ReadTimeout < 0 {
		return cfg, fmt.Errorf("invalid read timeout %v: must be positive", cfg.ReadTimeout)
	}

	if cfg.DataBits == 0 {
		cfg.DataBits = DefaultDataBits
	}
	if cfg.NewLine == "" {
		cfg.NewLine = DefaultNewLine
	}
	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = DefaultMaxLineLength
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = cfg.ReadTimeout + joinGrace
	}

	switch cfg.TimeoutPolicy {
	case TimeoutKeepPending, TimeoutClearPending:
	default:
		return cfg, fmt.Errorf("invalid timeout policy %v", cfg.TimeoutPolicy)
	}

	if cfg.Opener == nil {
		cfg.Opener = serial.Open
	}

	if _, err := cfg.portOptions().Normalize(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c Config) portOptions() serial.PortOptions {
	return serial.PortOptions{
		PortName: c.PortName,
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		Parity:   c.Parity,
		StopBits: c.StopBits,
	}
}

// EncodingByName looks up an encoding by its IANA name, for example "ISO-8859-1" or
// "Shift_JIS". An empty name returns nil, meaning bytes are passed through.
func EncodingByName(name string) (encoding.Encoding, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("encoding %q is not supported", name)
	}
	return enc, nil
}
