// Package fakeflash is an in-memory flash.Driver used by unit tests.
// It lets a test inject WouldBlock stalls, hard failures, and
// mid-sequence truncation, which is how this repo exercises the
// power-loss idempotence and timeout properties from spec section 8
// without real hardware.
package fakeflash

import (
	"fmt"

	"firmwareboot/address"
	"firmwareboot/flash"
)

// Driver is a heap-backed flash chip for tests.
type Driver[A address.Space] struct {
	Data              []byte
	ReadGran          int
	WriteGran         int
	EraseGran         int
	EraseValue        byte
	WriteCount       int
	EraseCount       int
	FailAfterWrites  int // if >0, every Write after this count fails
	StallWritesCount int // if >0, the first N writes return ErrWouldBlock
	stallsSeen       int
}

// New creates a fake chip of size bytes, pre-filled with eraseValue.
func New[A address.Space](size int, readGran, writeGran, eraseGran int, eraseValue byte) *Driver[A] {
	d := &Driver[A]{
		Data:       make([]byte, size),
		ReadGran:   readGran,
		WriteGran:  writeGran,
		EraseGran:  eraseGran,
		EraseValue: eraseValue,
	}
	for i := range d.Data {
		d.Data[i] = eraseValue
	}
	return d
}

func (d *Driver[A]) ReadGranularity() int   { return d.ReadGran }
func (d *Driver[A]) WriteGranularity() int  { return d.WriteGran }
func (d *Driver[A]) EraseGranularity() int  { return d.EraseGran }

func (d *Driver[A]) Read(addr A, buf []byte) error {
	start := int64(addr)
	if start < 0 || int(start)+len(buf) > len(d.Data) {
		return flash.NewError(flash.AddressOutOfRange, fmt.Errorf("read out of range at %d", start))
	}
	copy(buf, d.Data[start:int(start)+len(buf)])
	return nil
}

func (d *Driver[A]) Write(addr A, data []byte) error {
	if d.StallWritesCount > 0 && d.stallsSeen < d.StallWritesCount {
		d.stallsSeen++
		return flash.ErrWouldBlock
	}
	d.WriteCount++
	if d.FailAfterWrites > 0 && d.WriteCount > d.FailAfterWrites {
		return flash.NewError(flash.TransportError, fmt.Errorf("fakeflash: injected failure on write #%d", d.WriteCount))
	}
	start := int64(addr)
	if start < 0 || int(start)+len(data) > len(d.Data) {
		return flash.NewError(flash.AddressOutOfRange, fmt.Errorf("write out of range at %d", start))
	}
	copy(d.Data[start:int(start)+len(data)], data)
	return nil
}

func (d *Driver[A]) EraseRange(start, end A) error {
	d.EraseCount++
	s, e := int64(start), int64(end)
	if s < 0 || e > int64(len(d.Data)) || s > e {
		return flash.NewError(flash.AddressOutOfRange, fmt.Errorf("erase range [%d,%d) out of bounds", s, e))
	}
	for i := s; i < e; i++ {
		d.Data[i] = d.EraseValue
	}
	return nil
}

// TruncateSequenceAfter simulates a power loss on the write path: it
// sets FailAfterWrites to the current WriteCount, so every later Write
// fails (once at least one Write has been counted). EraseRange is not
// affected, and WriteCount and EraseCount keep counting calls.
// The already-applied bytes in Data remain exactly as they are, which
// is the point: a fresh Driver constructed over the same bytes models
// "what a cold reboot sees after an interrupted write sequence."
func (d *Driver[A]) TruncateSequenceAfter() {
	d.FailAfterWrites = d.WriteCount
}
