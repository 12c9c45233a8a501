//go:build !integritymode_ecdsa

// This file builds by default (and whenever -tags integritymode_ecdsa
// is not supplied), giving CRC32 as the default integrity mode. CRC32
// is the textbook checksum the spec itself names; no pack example
// wraps it in a third-party shim, so hash/crc32 is used directly here
// — the one place in this repository where stdlib is the correct,
// already-demonstrated choice rather than a gap (see DESIGN.md).
package image

import (
	"bytes"
	"hash"
	"hash/crc32"
)

type crc32Engine struct{}

// DefaultEngine is the integrity Engine linked into this build.
func DefaultEngine() Engine { return crc32Engine{} }

func (crc32Engine) Name() string    { return "crc32" }
func (crc32Engine) TagSize() int    { return 4 }
func (crc32Engine) NewDigest() hash.Hash {
	return crc32.NewIEEE()
}

func (crc32Engine) Verify(digestSum, tag []byte) bool {
	return bytes.Equal(digestSum, tag)
}

func (crc32Engine) MismatchError() error { return ErrBankInvalid }
