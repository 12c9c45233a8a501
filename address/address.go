// Package address defines the two nominal flash address spaces used
// throughout the bootloader. MCU-internal and external-flash offsets
// are never interchangeable; keeping them as distinct named types
// makes mixing them a compile error instead of a silent
// reinterpretation bug.
package address

// Space is implemented by every address type usable as a bank.Address
// type parameter. It is deliberately minimal: banks only ever need to
// add an offset to, or subtract one from, a bank address.
type Space interface {
	~uint32
}

// McuAddress is a byte offset into the MCU's internal flash.
type McuAddress uint32

// ExternalAddress is a byte offset into the external (SPI-NOR) flash
// chip. It is a distinct type from McuAddress even though both are
// backed by uint32: the bank that carries an address fixes its space,
// and the two spaces must never be added or compared directly.
type ExternalAddress uint32

// Add returns the address advanced by n bytes.
func Add[A Space](a A, n uint32) A {
	return a + A(n)
}

// Sub returns the address moved back by n bytes.
func Sub[A Space](a A, n uint32) A {
	return a - A(n)
}
