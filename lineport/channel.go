// Package lineport runs a line oriented reader/writer on a serial port.
//
// A Channel owns one port and one reader goroutine. The reader blocks on a timed
// line read and publishes every line it decodes into a single slot mailbox: a
// new line replaces one that was not polled yet. Owners either poll the slot
// with PollLine or register callbacks. Callbacks run on the reader goroutine,
// they must not block for long and must not call Terminate synchronously.
package lineport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BertoldVdb/go-serialline/closeflag"
	"github.com/BertoldVdb/go-serialline/logrusconfig"
	"github.com/BertoldVdb/go-serialline/serial"
	"github.com/BertoldVdb/go-serialline/waitstate"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
)

// State is the lifecycle state of a Channel
type State int

const (
	// StateInitFailed means the port could not be opened or configured. No reader runs.
	StateInitFailed State = iota
	// StateRunning means the reader goroutine is active
	StateRunning
	// StateFaulted means the reader stopped because the port failed. Err returns the fault.
	StateFaulted
	// StateStopped means Terminate was called on a running channel
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitFailed:
		return "InitFailed"
	case StateRunning:
		return "Running"
	case StateFaulted:
		return "Faulted"
	case StateStopped:
		return "Stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Channel is a serial connection with a background line reader
type Channel struct {
	id     string
	config Config
	log    *logrus.Entry

	port   serial.Port
	reader *lineReader

	writeMutex sync.Mutex
	encoder    *encoding.Encoder

	lines *mailbox
	state waitstate.WaitState[State]

	handlerMutex sync.Mutex
	onLine       func(line string)
	onTimeout    func()
	onFault      func(err error)

	stop       closeflag.CloseFlag
	readerDone chan (struct{})

	errMutex sync.Mutex
	err      error
}

// OpenPort opens portName with the default settings: 3s read timeout, no parity,
// 8 data bits and one stop bit.
func OpenPort(portName string, baudRate int) (*Channel, error) {
	return Open(&Config{PortName: portName, BaudRate: baudRate})
}

// Open opens and configures the port and starts the reader. DTR and RTS are raised
// and stale input is discarded before the first read.
//
// The returned Channel is never nil. When the error is not nil it matches
// ErrorConnectionInitFailed, the channel is in StateInitFailed, Write is a no-op
// and Terminate does nothing, so callers can always defer Terminate.
func Open(config *Config) (*Channel, error) {
	c := &Channel{
		id:         uuid.New().String(),
		lines:      newMailbox(),
		readerDone: make(chan (struct{})),
	}

	if config == nil {
		config = &Config{}
	}

	cfg, err := config.Normalize()
	c.config = cfg

	logger := cfg.Logger
	if logger == nil {
		logger = logrusconfig.GetPrefixedLogger(logrus.InfoLevel, "lineport")
	}
	c.log = logger.WithFields(logrus.Fields{
		"port":    cfg.PortName,
		"channel": c.id,
	})

	if err != nil {
		return c, c.initFailed(err)
	}

	newline := []byte(cfg.NewLine)
	if cfg.Encoding != nil {
		c.encoder = cfg.Encoding.NewEncoder()
		newline, err = cfg.Encoding.NewEncoder().Bytes(newline)
		if err != nil {
			return c, c.initFailed(fmt.Errorf("encode line terminator: %w", err))
		}
	}

	options := cfg.portOptions()
	port, err := cfg.Opener(&options)
	if err != nil {
		return c, c.initFailed(err)
	}

	if err := configurePort(port, cfg.ReadTimeout); err != nil {
		port.Close()
		return c, c.initFailed(err)
	}

	c.port = port
	c.reader = newLineReader(port, newline, cfg.ReadTimeout, cfg.MaxLineLength, cfg.Encoding)
	c.stop.CloseFunc = c.shutdown

	c.state.Set(StateRunning)
	go c.readLoop()

	c.log.WithFields(logrus.Fields{
		"baud":     cfg.BaudRate,
		"parity":   cfg.Parity,
		"databits": cfg.DataBits,
		"stopbits": cfg.StopBits,
		"timeout":  cfg.ReadTimeout,
	}).Info("Serial port opened")

	return c, nil
}

func configurePort(port serial.Port, timeout time.Duration) error {
	if err := port.SetDTR(true); err != nil {
		return fmt.Errorf("set DTR: %w", err)
	}
	if err := port.SetRTS(true); err != nil {
		return fmt.Errorf("set RTS: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("discard input: %w", err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("set read timeout: %w", err)
	}
	return nil
}

func (c *Channel) initFailed(cause error) error {
	err := &InitError{Port: c.config.PortName, Err: cause}
	c.setErr(err)
	c.state.Set(StateInitFailed)
	c.log.WithError(cause).Error("Failed to initialise serial port")
	return err
}

func (c *Channel) setErr(err error) {
	c.errMutex.Lock()
	c.err = err
	c.errMutex.Unlock()
}

// Err returns the initialisation error or read fault, or nil
func (c *Channel) Err() error {
	c.errMutex.Lock()
	defer c.errMutex.Unlock()
	return c.err
}

// ID returns a unique identifier of this channel, it is also attached to its log entries
func (c *Channel) ID() string {
	return c.id
}

// Config returns the normalized configuration
func (c *Channel) Config() Config {
	return c.config
}

// State returns the current lifecycle state
func (c *Channel) State() State {
	_, state := c.state.Peek()
	return state
}

// Running reports whether the reader goroutine is active
func (c *Channel) Running() bool {
	return c.State() == StateRunning
}

// Wait blocks until the channel is no longer running or ctx expires, and returns
// the state at that point.
func (c *Channel) Wait(ctx context.Context) (State, error) {
	_, state, err := c.state.Get(ctx, func(updateCount uint64, value State) bool {
		return value != StateRunning
	})
	return state, err
}

// Run blocks until the channel stops. It returns the read fault or initialisation
// error, and nil when the channel was terminated.
func (c *Channel) Run() error {
	state, err := c.Wait(context.Background())
	if err != nil {
		return err
	}

	if state == StateStopped {
		return nil
	}
	return c.Err()
}

// OnLine registers the function called with every decoded line. Pass nil to remove it.
func (c *Channel) OnLine(handler func(line string)) {
	c.handlerMutex.Lock()
	c.onLine = handler
	c.handlerMutex.Unlock()
}

// OnTimeout registers the function called every time a read period ends without a line
func (c *Channel) OnTimeout(handler func()) {
	c.handlerMutex.Lock()
	c.onTimeout = handler
	c.handlerMutex.Unlock()
}

// OnFault registers the function called once when the reader stops because of a
// read fault. It is called after the reader goroutine has finished reading.
func (c *Channel) OnFault(handler func(err error)) {
	c.handlerMutex.Lock()
	c.onFault = handler
	c.handlerMutex.Unlock()
}

func (c *Channel) handlers() (func(string), func(), func(error)) {
	c.handlerMutex.Lock()
	defer c.handlerMutex.Unlock()
	return c.onLine, c.onTimeout, c.onFault
}

// PollLine returns the latest line that was not polled yet and clears it.
// ok is false when there is no such line.
func (c *Channel) PollLine() (line string, ok bool) {
	return c.lines.take()
}

// Write sends text followed by the line terminator. It does nothing when the port
// was never opened. Failures are returned as *WriteError.
func (c *Channel) Write(text string) error {
	if c.port == nil {
		c.log.Debug("Write ignored, port is not open")
		return nil
	}

	if c.stop.IsClosed() {
		return &WriteError{Err: ErrorClosed}
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	data := []byte(text + c.config.NewLine)
	if c.encoder != nil {
		encoded, err := c.encoder.Bytes(data)
		if err != nil {
			return &WriteError{Err: fmt.Errorf("encode: %w", err)}
		}
		data = encoded
	}

	n, err := c.port.Write(data)
	if err != nil {
		return &WriteError{Err: err}
	}
	if n != len(data) {
		return &WriteError{Err: ErrorShortWrite}
	}
	return nil
}

// Terminate stops the reader and closes the port. It can be called any number of
// times, also when Open failed; only the first call has an effect. The reader is
// waited for at most JoinTimeout.
func (c *Channel) Terminate() error {
	err := c.stop.Close()
	if errors.Is(err, closeflag.ErrorClosed) {
		return nil
	}
	return err
}

// Close is Terminate
func (c *Channel) Close() error {
	return c.Terminate()
}

func (c *Channel) shutdown() error {
	c.state.Update(func(current State) (State, bool) {
		return StateStopped, current == StateRunning
	})

	/* Closing the port makes a pending read return */
	err := c.port.Close()

	join := time.NewTimer(c.config.JoinTimeout)
	defer join.Stop()

	select {
	case <-c.readerDone:
	case <-join.C:
		c.log.WithField("timeout", c.config.JoinTimeout).Warn("Reader did not stop in time")
	}

	if err != nil {
		c.log.WithError(err).Warn("Closing serial port failed")
	}
	c.log.Info("Serial port closed")
	return err
}

func (c *Channel) readLoop() {
	fault := c.readLines()
	close(c.readerDone)

	if fault != nil {
		if _, _, onFault := c.handlers(); onFault != nil {
			onFault(fault)
		}
	}
}

func (c *Channel) readLines() error {
	for !c.stop.IsClosed() {
		line, err := c.reader.readLine()

		var decodeErr *decodeError
		switch {
		case err == nil:
			c.lines.put(line)
			if onLine, _, _ := c.handlers(); onLine != nil {
				onLine(line)
			}

		case errors.Is(err, ErrorReadTimeout):
			if c.config.TimeoutPolicy == TimeoutClearPending {
				c.lines.clear()
			}
			c.log.Trace("Read timeout")
			if _, onTimeout, _ := c.handlers(); onTimeout != nil {
				onTimeout()
			}

		case errors.Is(err, ErrorLineTooLong):
			c.log.WithField("limit", c.config.MaxLineLength).Warn("Dropping line without terminator")

		case errors.As(err, &decodeErr):
			c.log.WithError(decodeErr.err).Warn("Dropping line that could not be decoded")

		default:
			if c.stop.IsClosed() {
				/* Port was closed by Terminate */
				return nil
			}
			if serial.IsPortClosed(err) {
				c.log.Warn("Serial port was closed without Terminate, device removed?")
			}
			return c.fault(err)
		}
	}

	return nil
}

func (c *Channel) fault(cause error) error {
	err := &ReadFault{Err: cause}

	faulted := c.state.Update(func(current State) (State, bool) {
		if current != StateRunning {
			return current, false
		}

		/* Err must be visible before waiters wake up */
		c.setErr(err)
		return StateFaulted, true
	})
	if !faulted {
		return nil
	}

	c.log.WithError(cause).Error("Reading serial port failed, reader stopped")
	return err
}
