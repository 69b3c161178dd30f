package serial

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// NoTimeout makes reads on a VirtualPort block until data arrives or the port is closed
const NoTimeout time.Duration = -1

var (
	// ErrorClosed is returned when reading or writing a closed virtual port, or reading
	// from one whose peer was closed and whose buffer is exhausted
	ErrorClosed = errors.New("Port is closed")

	// ErrorWriteFull is returned when a write does not fit in the peer's receive buffer
	ErrorWriteFull = errors.New("Write ignored due to full receive buffer")
)

// pipe is a one directional byte buffer with timed reads
type pipe struct {
	sync.Mutex
	buffer bytes.Buffer

	canReadSignal chan (struct{})

	maximumCapacity int
	closed          bool
}

func newPipe(maximumCapacity int) *pipe {
	return &pipe{
		maximumCapacity: maximumCapacity,
		canReadSignal:   make(chan (struct{}), 1),
	}
}

func signalChannel(c chan (struct{})) {
	select {
	case c <- struct{}{}:
	default:
	}
}

func (b *pipe) close() {
	b.Lock()
	b.closed = true
	b.Unlock()

	/* Unblock waiting reader */
	signalChannel(b.canReadSignal)
}

func (b *pipe) clear() {
	b.Lock()
	b.buffer.Reset()
	b.Unlock()
}

func (b *pipe) len() int {
	b.Lock()
	defer b.Unlock()
	return b.buffer.Len()
}

func (b *pipe) write(p []byte) (int, error) {
	b.Lock()
	if b.closed {
		b.Unlock()
		return 0, ErrorClosed
	}

	if b.maximumCapacity > 0 && b.buffer.Len()+len(p) > b.maximumCapacity {
		b.Unlock()
		return 0, ErrorWriteFull
	}

	n, err := b.buffer.Write(p)
	b.Unlock()

	signalChannel(b.canReadSignal)
	return n, err
}

func (b *pipe) read(p []byte, timeout time.Duration, abort <-chan (struct{})) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	var timer <-chan (time.Time)
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	for {
		b.Lock()
		n, _ := b.buffer.Read(p)
		if n > 0 {
			if b.buffer.Len() > 0 {
				signalChannel(b.canReadSignal)
			}
			b.Unlock()
			return n, nil
		}

		if b.closed {
			signalChannel(b.canReadSignal)
			b.Unlock()
			return 0, ErrorClosed
		}
		b.Unlock()

		select {
		case <-b.canReadSignal:
		case <-abort:
			return 0, ErrorClosed
		case <-timer:
			/* Timeout is not an error for serial ports */
			return 0, nil
		}
	}
}

// VirtualPort is an in-memory Port. Ports are created in connected pairs: what is
// written to one end can be read from the other. Reads honour the read timeout the
// same way hardware ports do, which makes a pair usable as a stand-in for a device
// in tests and demos.
type VirtualPort struct {
	sync.Mutex

	rx *pipe
	tx *pipe

	readTimeout time.Duration
	dtr         bool
	rts         bool
	resets      int

	closeOnce sync.Once
	closeChan chan (struct{})
}

// NewVirtualPair creates two connected virtual ports. bufferSize limits the number of
// unread bytes per direction, zero or less means unbounded.
func NewVirtualPair(bufferSize int) (*VirtualPort, *VirtualPort) {
	p1 := newPipe(bufferSize)
	p2 := newPipe(bufferSize)

	a := &VirtualPort{rx: p2, tx: p1, readTimeout: NoTimeout, closeChan: make(chan (struct{}))}
	b := &VirtualPort{rx: p1, tx: p2, readTimeout: NoTimeout, closeChan: make(chan (struct{}))}
	return a, b
}

func (v *VirtualPort) isClosed() bool {
	select {
	case <-v.closeChan:
		return true
	default:
		return false
	}
}

// Read reads from the receive buffer. It returns 0, nil when the read timeout expires.
func (v *VirtualPort) Read(p []byte) (int, error) {
	if v.isClosed() {
		return 0, ErrorClosed
	}

	v.Lock()
	timeout := v.readTimeout
	v.Unlock()

	return v.rx.read(p, timeout, v.closeChan)
}

// Write makes p available to the peer
func (v *VirtualPort) Write(p []byte) (int, error) {
	if v.isClosed() {
		return 0, ErrorClosed
	}
	return v.tx.write(p)
}

// Close closes both directions. Pending reads on this port return ErrorClosed; the peer
// can still read what was already written before it gets ErrorClosed.
func (v *VirtualPort) Close() error {
	v.closeOnce.Do(func() {
		close(v.closeChan)
		v.rx.close()
		v.tx.close()
	})
	return nil
}

func (v *VirtualPort) SetReadTimeout(timeout time.Duration) error {
	if v.isClosed() {
		return ErrorClosed
	}

	v.Lock()
	v.readTimeout = timeout
	v.Unlock()
	return nil
}

// ResetInputBuffer discards everything the peer wrote that was not read yet
func (v *VirtualPort) ResetInputBuffer() error {
	if v.isClosed() {
		return ErrorClosed
	}

	v.rx.clear()

	v.Lock()
	v.resets++
	v.Unlock()
	return nil
}

func (v *VirtualPort) SetDTR(enabled bool) error {
	if v.isClosed() {
		return ErrorClosed
	}

	v.Lock()
	v.dtr = enabled
	v.Unlock()
	return nil
}

func (v *VirtualPort) SetRTS(enabled bool) error {
	if v.isClosed() {
		return ErrorClosed
	}

	v.Lock()
	v.rts = enabled
	v.Unlock()
	return nil
}

// Pins returns the DTR and RTS state last set on this end
func (v *VirtualPort) Pins() (dtr bool, rts bool) {
	v.Lock()
	defer v.Unlock()
	return v.dtr, v.rts
}

// ReadTimeout returns the currently configured read timeout
func (v *VirtualPort) ReadTimeout() time.Duration {
	v.Lock()
	defer v.Unlock()
	return v.readTimeout
}

// InputResets returns how often ResetInputBuffer was called
func (v *VirtualPort) InputResets() int {
	v.Lock()
	defer v.Unlock()
	return v.resets
}

// Buffered returns the number of received bytes that were not read yet
func (v *VirtualPort) Buffered() int {
	return v.rx.len()
}

// Closed reports whether Close was called on this end
func (v *VirtualPort) Closed() bool {
	return v.isClosed()
}
