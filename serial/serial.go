package serial

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	bugst "go.bug.st/serial"
)

// Port is an extended io.ReadWriteCloser that also allows changing
// some serial port specific settings.
//
// A Read that hits the read timeout returns 0 bytes and a nil error.
type Port interface {
	io.ReadWriteCloser

	/* Configuration */
	SetReadTimeout(timeout time.Duration) error
	ResetInputBuffer() error

	/* Pins */
	SetDTR(enabled bool) error
	SetRTS(enabled bool) error
}

// Opener creates a Port. Open is the default, tests and tools can substitute
// their own (for example one that returns a VirtualPort).
type Opener func(options *PortOptions) (Port, error)

// Parity is the parity bit mode of a frame
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "None"
	case ParityOdd:
		return "Odd"
	case ParityEven:
		return "Even"
	case ParityMark:
		return "Mark"
	case ParitySpace:
		return "Space"
	}
	return fmt.Sprintf("Parity(%d)", int(p))
}

// ParseParity accepts the single letter form (N, O, E, M, S) or the full name.
func ParseParity(s string) (Parity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "N", "NONE":
		return ParityNone, nil
	case "O", "ODD":
		return ParityOdd, nil
	case "E", "EVEN":
		return ParityEven, nil
	case "M", "MARK":
		return ParityMark, nil
	case "S", "SPACE":
		return ParitySpace, nil
	}
	return ParityNone, fmt.Errorf("unsupported parity %q: expected N, O, E, M or S", s)
}

// StopBits is the number of stop bits of a frame
type StopBits int

const (
	StopBitsOne StopBits = iota
	StopBitsOnePointFive
	StopBitsTwo
)

func (s StopBits) String() string {
	switch s {
	case StopBitsOne:
		return "1"
	case StopBitsOnePointFive:
		return "1.5"
	case StopBitsTwo:
		return "2"
	}
	return fmt.Sprintf("StopBits(%d)", int(s))
}

// ParseStopBits accepts "1", "1.5" and "2" as well as the names One, OnePointFive and Two.
func ParseStopBits(s string) (StopBits, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "1", "ONE":
		return StopBitsOne, nil
	case "1.5", "ONEPOINTFIVE":
		return StopBitsOnePointFive, nil
	case "2", "TWO":
		return StopBitsTwo, nil
	}
	return StopBitsOne, fmt.Errorf("unsupported stop bits %q: expected 1, 1.5 or 2", s)
}

// PortOptions is a parameter struct for Open
type PortOptions struct {
	PortName string
	BaudRate int
	DataBits int
	Parity   Parity
	StopBits StopBits
}

var (
	// ErrorNoPortName is returned when the options do not name a port
	ErrorNoPortName = errors.New("Port name not specified")
)

// Normalize validates the options and fills in 8 data bits when DataBits is unset.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if strings.TrimSpace(opts.PortName) == "" {
		return opts, ErrorNoPortName
	}

	if opts.BaudRate <= 0 {
		return opts, fmt.Errorf("invalid baud rate %d: must be positive", opts.BaudRate)
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.Parity < ParityNone || opts.Parity > ParitySpace {
		return opts, fmt.Errorf("invalid parity %v", opts.Parity)
	}
	if opts.StopBits < StopBitsOne || opts.StopBits > StopBitsTwo {
		return opts, fmt.Errorf("invalid stop bits %v", opts.StopBits)
	}

	return opts, nil
}

func (o PortOptions) mode() *bugst.Mode {
	mode := &bugst.Mode{
		BaudRate: o.BaudRate,
		DataBits: o.DataBits,
	}

	switch o.Parity {
	case ParityOdd:
		mode.Parity = bugst.OddParity
	case ParityEven:
		mode.Parity = bugst.EvenParity
	case ParityMark:
		mode.Parity = bugst.MarkParity
	case ParitySpace:
		mode.Parity = bugst.SpaceParity
	default:
		mode.Parity = bugst.NoParity
	}

	switch o.StopBits {
	case StopBitsOnePointFive:
		mode.StopBits = bugst.OnePointFiveStopBits
	case StopBitsTwo:
		mode.StopBits = bugst.TwoStopBits
	default:
		mode.StopBits = bugst.OneStopBit
	}

	return mode
}

// Open opens a hardware serial port using go.bug.st/serial
func Open(options *PortOptions) (Port, error) {
	opts, err := options.Normalize()
	if err != nil {
		return nil, err
	}

	port, err := bugst.Open(opts.PortName, opts.mode())
	if err != nil {
		return nil, err
	}

	return port, nil
}

// IsPortClosed reports whether err was caused by using a port after Close.
func IsPortClosed(err error) bool {
	if errors.Is(err, ErrorClosed) {
		return true
	}

	var portErr *bugst.PortError
	if errors.As(err, &portErr) {
		return portErr.Code() == bugst.PortClosed
	}
	return false
}
