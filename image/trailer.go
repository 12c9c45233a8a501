// Package image parses and verifies the image stored at a bank (spec
// section 4.2). An image is a payload followed by a fixed-size
// trailer; the trailer's magic bytes are deliberately the final bytes
// of the bank so a partially erased bank presents as Empty rather than
// Invalid (spec section 6).
//
// The magic-scan-then-dispatch shape here is the same one the teacher
// repository uses in format.go's CheckFmt: try each known magic in
// turn and classify the blob by whichever one matches, generalized
// from "which compression/boot format is this" to "is there a valid
// trailer here at all."
package image

import (
	"encoding/binary"
	"errors"
)

// Magic identifies the trailer format. Unlike the teacher's
// multi-format BOOT_MAGIC/VENDOR_BOOT_MAGIC/CHROMEOS_MAGIC zoo, this
// bootloader has exactly one on-disk image format (spec section 6),
// so there is exactly one magic to check.
var Magic = [8]byte{'L', 'D', 'S', 'T', 'N', '2', '!', '\n'}

const (
	lengthFieldSize = 4
	magicFieldSize  = len(Magic)
)

// Sentinel errors corresponding to the taxonomy in spec section 7.
// These are expected control-flow outcomes, not exceptional failures:
// the Updater, Restorer, and Orchestrator all branch on which of these
// (if any) ReadImage returned.
var (
	ErrBankEmpty        = errors.New("image: bank is empty (no trailer magic)")
	ErrBankInvalid      = errors.New("image: bank has a trailer but fails validation")
	ErrSignatureInvalid = errors.New("image: ECDSA signature verification failed")
)

// TrailerSize returns the total trailer size in bytes for an engine
// with the given tag size: 4-byte length + tag + 8-byte magic.
func TrailerSize(tagSize int) int {
	return lengthFieldSize + tagSize + magicFieldSize
}

// trailer is the parsed, but not yet verified, trailer content.
type trailer struct {
	payloadLength uint32
	tag           []byte
}

// parseTrailer splits a raw trailer buffer (exactly TrailerSize(tagSize)
// bytes, as read from the end of a bank) into its fields. A buffer of
// any other length is rejected as ErrBankInvalid; of the fields, only
// the magic is checked. Any other defect is reported by the caller
// once it has recomputed and compared the integrity tag.
func parseTrailer(raw []byte, tagSize int) (trailer, error) {
	want := TrailerSize(tagSize)
	if len(raw) != want {
		return trailer{}, ErrBankInvalid
	}
	magicOffset := want - magicFieldSize
	for i, b := range Magic {
		if raw[magicOffset+i] != b {
			return trailer{}, ErrBankEmpty
		}
	}
	length := binary.LittleEndian.Uint32(raw[0:lengthFieldSize])
	tag := make([]byte, tagSize)
	copy(tag, raw[lengthFieldSize:lengthFieldSize+tagSize])
	return trailer{payloadLength: length, tag: tag}, nil
}

// encodeTrailer is the inverse of parseTrailer, used by the Copier
// when it writes the trailer verbatim onto the target bank (spec
// section 4.3 step 4).
func encodeTrailer(payloadLength uint32, tag []byte) []byte {
	buf := make([]byte, TrailerSize(len(tag)))
	binary.LittleEndian.PutUint32(buf[0:lengthFieldSize], payloadLength)
	copy(buf[lengthFieldSize:lengthFieldSize+len(tag)], tag)
	copy(buf[lengthFieldSize+len(tag):], Magic[:])
	return buf
}
