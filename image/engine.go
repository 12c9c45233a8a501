package image

import "hash"

// Engine is the integrity-tag contract shared by the two build-time
// variants named in spec section 4.2: CRC32 and ECDSA. Exactly one
// Engine implementation is linked into a given build, selected by the
// integritymode build tag (see crcengine.go / ecdsaengine.go); there
// is no runtime dispatch between them.
type Engine interface {
	// Name identifies the engine for logging.
	Name() string
	// TagSize is the fixed size, in bytes, of this engine's identity
	// tag within the trailer.
	TagSize() int
	// NewDigest returns a fresh streaming digest accumulator. The
	// payload is fed into it one flash page at a time so that no
	// buffer larger than a page is ever held (spec section 9).
	NewDigest() hash.Hash
	// Verify reports whether digestSum (the output of a completed
	// NewDigest) is authenticated by tag. For the CRC32 engine this
	// is a byte comparison; for the ECDSA engine this is a signature
	// verification against the compile-time-embedded public key, or
	// against the key passed to NewEngineWithKey.
	Verify(digestSum, tag []byte) bool
	// MismatchError is ErrBankInvalid for CRC32 and ErrSignatureInvalid
	// for ECDSA: the two failure modes are reported distinctly (spec
	// section 4.2) even though they drive identical control flow.
	MismatchError() error
}
