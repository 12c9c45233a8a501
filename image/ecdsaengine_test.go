//go:build integritymode_ecdsa

package image_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"firmwareboot/image"
)

// sign produces a trailer tag (raw r||s, 32 bytes each) the way the
// out-of-scope host-side signing tool named in spec.md section 1
// would, against digestSum. This repository does not ship a signer;
// this helper exists purely so the test doesn't depend on the
// placeholder embedded key in keys/ecdsa_pub.pem (see DESIGN.md).
func sign(t *testing.T, key *ecdsa.PrivateKey, digestSum []byte) []byte {
	t.Helper()
	r, s, err := ecdsa.Sign(rand.Reader, key, digestSum)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	tag := make([]byte, 64)
	r.FillBytes(tag[:32])
	s.FillBytes(tag[32:])
	return tag
}

func TestECDSAEngineVerifiesGenuineSignature(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating test key: %v", err)
	}
	eng := image.NewEngineWithKey(&key.PublicKey)

	digest := eng.NewDigest()
	digest.Write([]byte("signed firmware payload"))
	sum := digest.Sum(nil)
	tag := sign(t, key, sum)

	if !eng.Verify(sum, tag) {
		t.Fatalf("expected genuine signature to verify")
	}
}

func TestECDSAEngineRejectsTamperedPayload(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating test key: %v", err)
	}
	eng := image.NewEngineWithKey(&key.PublicKey)

	digest := eng.NewDigest()
	digest.Write([]byte("signed firmware payload"))
	sum := digest.Sum(nil)
	tag := sign(t, key, sum)

	tamperedDigest := eng.NewDigest()
	tamperedDigest.Write([]byte("SIGNED FIRMWARE PAYLOAD"))
	tamperedSum := tamperedDigest.Sum(nil)

	if eng.Verify(tamperedSum, tag) {
		t.Fatalf("expected tampered payload to fail verification")
	}
}

func TestECDSAEngineRejectsWrongSizedTag(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating test key: %v", err)
	}
	eng := image.NewEngineWithKey(&key.PublicKey)
	if eng.Verify([]byte("sum"), []byte{1, 2, 3}) {
		t.Fatalf("expected undersized tag to fail verification")
	}
}
