// Package metrics implements the BootMetrics hand-off from spec
// sections 3 and 6: a small record written once, immediately before
// the jump, into a reserved region the booted firmware reads during
// its own startup.
package metrics

import "encoding/binary"

// Path is the boot path taken, per spec section 3.
type Path byte

const (
	PathDirect Path = iota
	PathUpdated
	PathRestored
	PathGoldenRestored
	PathRecovered
)

func (p Path) String() string {
	switch p {
	case PathDirect:
		return "direct"
	case PathUpdated:
		return "updated"
	case PathRestored:
		return "restored"
	case PathGoldenRestored:
		return "golden-restored"
	case PathRecovered:
		return "recovered"
	default:
		return "unknown"
	}
}

// BootMetrics is handed to the firmware via the reserved RAM region.
type BootMetrics struct {
	Path Path
	// DurationMS is the boot-time duration in milliseconds, present
	// only when a Clock was supplied to the Orchestrator (spec
	// section 3: "optional boot-time duration in milliseconds").
	DurationMS      uint32
	DurationPresent bool
}

// recordSize is the fixed hand-off record: 1 byte path tag, 1 byte
// presence flag, 4 bytes little-endian milliseconds, 2 bytes padding
// (spec section 6).
const recordSize = 8

// Encode packs m into the fixed-size hand-off record.
func (m BootMetrics) Encode() [recordSize]byte {
	var out [recordSize]byte
	out[0] = byte(m.Path)
	if m.DurationPresent {
		out[1] = 1
	}
	binary.LittleEndian.PutUint32(out[2:6], m.DurationMS)
	return out
}

// Decode unpacks a hand-off record, as the booted firmware would on
// its own startup.
func Decode(raw [recordSize]byte) BootMetrics {
	return BootMetrics{
		Path:            Path(raw[0]),
		DurationPresent: raw[1] != 0,
		DurationMS:      binary.LittleEndian.Uint32(raw[2:6]),
	}
}

// Slot is the reserved hand-off region. On real hardware this is a
// linker-reserved, uninitialized RAM section; in the simulation
// harness it is a plain package-level array, written exactly once by
// the Orchestrator immediately before Jump and read by nothing else
// in-process (mirroring the hardware's read-only-to-firmware
// contract).
var Slot [recordSize]byte

// Write stores m into Slot. Called exactly once, by the Orchestrator,
// per spec section 5 ("BootMetrics RAM is written only by the
// Orchestrator at Jump").
func Write(m BootMetrics) {
	Slot = m.Encode()
}

// Read returns the metrics currently in Slot.
func Read() BootMetrics {
	return Decode(Slot)
}
