// Package flash defines the driver contract required of both the
// internal MCU flash and the external SPI-NOR flash collaborators
// (spec section 6). Concrete implementations live in the mmapfile and
// fakeflash subpackages; this package only carries the interface,
// the error taxonomy, and the cooperative busy-wait helper used to
// drain a WouldBlock signal.
package flash

import (
	"errors"
	"time"

	"firmwareboot/address"
)

// Kind enumerates the driver error taxonomy from spec section 6.
type Kind int

const (
	MemoryNotReachable Kind = iota
	MisalignedAccess
	AddressOutOfRange
	Timeout
	TransportError
)

func (k Kind) String() string {
	switch k {
	case MemoryNotReachable:
		return "memory not reachable"
	case MisalignedAccess:
		return "misaligned access"
	case AddressOutOfRange:
		return "address out of range"
	case Timeout:
		return "timeout"
	case TransportError:
		return "transport error"
	default:
		return "unknown driver error"
	}
}

// Error wraps a driver Kind with the underlying cause, if any.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// ErrWouldBlock is returned by a Driver operation that has not yet
// completed. The caller is expected to retry (cooperatively spin)
// until the operation completes or Await's timeout elapses; there is
// no asynchronous cancellation in this single-threaded, interrupt-free
// scheduling model (spec section 5).
var ErrWouldBlock = errors.New("flash: operation would block")

// Driver is the capability set required of a flash chip, generic over
// its address space so that an MCU driver and an external driver are
// distinct types even though they share this interface shape. No
// implementation allocates on the heap per call; buffers are supplied
// by the caller and bounded by the larger of the two page sizes (spec
// section 9).
type Driver[A address.Space] interface {
	Read(addr A, buf []byte) error
	Write(addr A, data []byte) error
	EraseRange(start, end A) error

	ReadGranularity() int
	WriteGranularity() int
	// EraseGranularity is the minimum unit EraseRange operates on.
	// Spec section 6 lists only read/write granularity as required of
	// collaborators, but the Copier needs this to compute "the
	// minimum number of target pages required" (spec section 4.3
	// step 2) without guessing, so this repo's driver contract
	// carries it explicitly.
	EraseGranularity() int
}

// Await busy-waits on op, retrying while it reports ErrWouldBlock,
// until op succeeds, returns a different error, or timeout elapses.
// poll is called between retries; production callers pass
// time.Sleep, tests pass a no-op or a virtual-clock advance so unit
// tests don't block on wall-clock time.
//
// This is the Go equivalent of the `nb::block!` macro referenced in
// the original Rust bootloader: the source language has a dedicated
// non-blocking-IO trait and macro for this pattern, but no library in
// the example pack provides a Go analogue, so this is a small,
// explicitly justified stdlib loop rather than a borrowed dependency.
func Await(timeout time.Duration, poll func(), op func() error) error {
	deadline := time.Now().Add(timeout)
	for {
		err := op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrWouldBlock) {
			return err
		}
		if time.Now().After(deadline) {
			return newError(Timeout, errors.New("exceeded configured timeout waiting for flash operation"))
		}
		poll()
	}
}

// NewError constructs a driver Error. Exposed for use by concrete
// Driver implementations outside this package.
func NewError(kind Kind, err error) *Error {
	return newError(kind, err)
}
