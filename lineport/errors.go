package lineport

import "fmt"

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrorConnectionInitFailed = Error("Connection initialisation failed")
	ErrorReadTimeout          = Error("Read timeout")
	ErrorReadFault            = Error("Read fault")
	ErrorWrite                = Error("Write failed")
	ErrorClosed               = Error("Channel closed")
	ErrorShortWrite           = Error("Short write")
	ErrorLineTooLong          = Error("Line exceeds maximum length")
)

// InitError is returned by Open when the port could not be opened or configured.
// It matches ErrorConnectionInitFailed with errors.Is.
type InitError struct {
	Port string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrorConnectionInitFailed, e.Port, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

func (e *InitError) Is(target error) bool { return target == ErrorConnectionInitFailed }

// WriteError is returned by Write when the transport rejected the data.
// It matches ErrorWrite with errors.Is.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: %v", ErrorWrite, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrorWrite }

// ReadFault is the terminal error of a reader that stopped because the port failed.
// It matches ErrorReadFault with errors.Is.
type ReadFault struct {
	Err error
}

func (e *ReadFault) Error() string {
	return fmt.Sprintf("%s: %v", ErrorReadFault, e.Err)
}

func (e *ReadFault) Unwrap() error { return e.Err }

func (e *ReadFault) Is(target error) bool { return target == ErrorReadFault }
