//go:build integritymode_ecdsa

// Built only with -tags integritymode_ecdsa. Uses a curve and hash
// fixed at build time (P-256 / SHA-256, per spec section 4.2) and a
// public key linked into the binary via go:embed — the idiomatic Go
// equivalent of "the AOSP verity key bundled in the executable" that
// the teacher's own magiskboot.go Usage() text describes for its
// default signing key (crypto/ecdsa and crypto/x509 are used directly
// rather than a third-party crypto library: verification is an
// explicitly out-of-scope external-collaborator primitive per spec
// section 1, and no pack example wraps ECDSA in an ecosystem shim —
// see DESIGN.md).
package image

import (
	_ "embed"

	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"hash"
	"math/big"
	"sync"
)

//go:embed keys/ecdsa_pub.pem
var embeddedPublicKeyPEM []byte

const ecdsaTagSize = 64 // P-256: raw r||s, 32 bytes each

type ecdsaEngine struct {
	key *ecdsa.PublicKey // nil means "use the embedded key", via publicKey()
}

var (
	pubKeyOnce sync.Once
	pubKey     *ecdsa.PublicKey
	pubKeyErr  error
)

func publicKey() (*ecdsa.PublicKey, error) {
	pubKeyOnce.Do(func() {
		block, _ := pem.Decode(embeddedPublicKeyPEM)
		if block == nil {
			pubKeyErr = errBadEmbeddedKey
			return
		}
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			pubKeyErr = err
			return
		}
		ecKey, ok := key.(*ecdsa.PublicKey)
		if !ok {
			pubKeyErr = errBadEmbeddedKey
			return
		}
		pubKey = ecKey
	})
	return pubKey, pubKeyErr
}

var errBadEmbeddedKey = errBadKey{}

type errBadKey struct{}

func (errBadKey) Error() string { return "image: embedded ECDSA public key is not a valid P-256 key" }

// DefaultEngine is the integrity Engine linked into this build. It
// verifies against the compile-time-embedded public key.
func DefaultEngine() Engine { return ecdsaEngine{} }

// NewEngineWithKey builds an Engine that verifies against pub
// directly instead of the embedded key. This exists so tests can
// exercise real ECDSA signature verification without depending on
// keys/ecdsa_pub.pem, which is a placeholder (see DESIGN.md).
func NewEngineWithKey(pub *ecdsa.PublicKey) Engine { return ecdsaEngine{key: pub} }

func (ecdsaEngine) Name() string         { return "ecdsa-p256-sha256" }
func (ecdsaEngine) TagSize() int         { return ecdsaTagSize }
func (ecdsaEngine) NewDigest() hash.Hash { return sha256.New() }

func (e ecdsaEngine) Verify(digestSum, tag []byte) bool {
	if len(tag) != ecdsaTagSize {
		return false
	}
	key := e.key
	if key == nil {
		k, err := publicKey()
		if err != nil || k == nil {
			return false
		}
		key = k
	}
	r := new(big.Int).SetBytes(tag[:32])
	s := new(big.Int).SetBytes(tag[32:])
	return ecdsa.Verify(key, digestSum, r, s)
}

func (ecdsaEngine) MismatchError() error { return ErrSignatureInvalid }
