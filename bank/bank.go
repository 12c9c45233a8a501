// Package bank describes the static, compile-time table of flash
// regions the bootloader is allowed to touch. It is read-only for the
// lifetime of the device: every Bank is known at startup and never
// added to, removed, or resized at runtime.
package bank

import (
	"fmt"

	"firmwareboot/address"
)

// Bank is a contiguous flash region described by a globally unique,
// 1-based index, a starting location in its address space, a size in
// bytes, and the bootable/golden flags from spec section 3.
//
// Bank is generic over the address space it lives in so that an
// McuAddress bank and an ExternalAddress bank are different types:
// nothing in the bootloader can accidentally copy an external-flash
// location into MCU-flash arithmetic.
type Bank[A address.Space] struct {
	Index    uint8
	Location A
	Size     uint32
	Bootable bool
	IsGolden bool
}

// TrailerEnd returns the address one past the bank's last byte, i.e.
// where the fixed-size image trailer ends. Per spec section 6, the
// trailer's final byte is always the bank's final byte.
func (b Bank[A]) TrailerEnd() A {
	return address.Add(b.Location, b.Size)
}

// Table is the static, process-wide bank map. Both sequences are
// plain slices: they are iterated many times over a boot attempt and
// never mutated, so there is no need to hide them behind an iterator
// type.
type Table struct {
	McuBanks      []Bank[address.McuAddress]
	ExternalBanks []Bank[address.ExternalAddress]
}

// BootBank returns the single MCU bank with Bootable set. Validate
// must have been called successfully before this is called; a table
// with zero or more than one bootable bank is a configuration error
// that Validate would already have rejected.
func (t Table) BootBank() Bank[address.McuAddress] {
	for _, b := range t.McuBanks {
		if b.Bootable {
			return b
		}
	}
	panic("bank: no bootable MCU bank (Validate was not called, or was not checked)")
}

// GoldenMcuBank returns the MCU golden bank and true, if one exists.
func (t Table) GoldenMcuBank() (Bank[address.McuAddress], bool) {
	for _, b := range t.McuBanks {
		if b.IsGolden {
			return b, true
		}
	}
	return Bank[address.McuAddress]{}, false
}

// GoldenExternalBank returns the external golden bank and true, if
// one exists.
func (t Table) GoldenExternalBank() (Bank[address.ExternalAddress], bool) {
	for _, b := range t.ExternalBanks {
		if b.IsGolden {
			return b, true
		}
	}
	return Bank[address.ExternalAddress]{}, false
}

// HasExternalFlash reports whether the table declares any external
// bank at all. Used by Validate to cross-check against the presence
// of an external flash driver supplied at construction time.
func (t Table) HasExternalFlash() bool {
	return len(t.ExternalBanks) > 0
}

// Validate checks the invariants from spec section 3:
//
//   - exactly one MCU bank is bootable;
//   - at most one bank, across both spaces, is golden;
//   - bank indices form the sequence 1..N with no gaps or repeats,
//     MCU banks first then external banks;
//   - externalFlashPresent agrees with HasExternalFlash().
//
// A violation is a configuration error and, per spec section 4.6, is
// fatal: the bootloader must not attempt to boot a device whose bank
// table is internally inconsistent.
func (t Table) Validate(externalFlashPresent bool) error {
	bootable := 0
	for _, b := range t.McuBanks {
		if b.Bootable {
			bootable++
		}
	}
	if bootable != 1 {
		return fmt.Errorf("bank: expected exactly one bootable MCU bank, found %d", bootable)
	}

	golden := 0
	for _, b := range t.McuBanks {
		if b.IsGolden {
			golden++
		}
	}
	for _, b := range t.ExternalBanks {
		if b.IsGolden {
			golden++
		}
	}
	if golden > 1 {
		return fmt.Errorf("bank: at most one golden bank allowed, found %d", golden)
	}

	expected := uint8(1)
	for _, b := range t.McuBanks {
		if b.Index != expected {
			return fmt.Errorf("bank: MCU bank index out of sequence: expected %d, got %d", expected, b.Index)
		}
		expected++
	}
	for _, b := range t.ExternalBanks {
		if b.Index != expected {
			return fmt.Errorf("bank: external bank index out of sequence: expected %d, got %d", expected, b.Index)
		}
		expected++
	}

	if externalFlashPresent != t.HasExternalFlash() {
		return fmt.Errorf("bank: external flash presence (%v) disagrees with declared external banks (%d)",
			externalFlashPresent, len(t.ExternalBanks))
	}

	return nil
}

// McuByIndex looks up an MCU bank by its 1-based index.
func (t Table) McuByIndex(index uint8) (Bank[address.McuAddress], bool) {
	for _, b := range t.McuBanks {
		if b.Index == index {
			return b, true
		}
	}
	return Bank[address.McuAddress]{}, false
}

// ExternalByIndex looks up an external bank by its 1-based index.
func (t Table) ExternalByIndex(index uint8) (Bank[address.ExternalAddress], bool) {
	for _, b := range t.ExternalBanks {
		if b.Index == index {
			return b, true
		}
	}
	return Bank[address.ExternalAddress]{}, false
}
