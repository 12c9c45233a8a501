package image

import (
	"bytes"

	"firmwareboot/address"
	"firmwareboot/bank"
	"firmwareboot/flash"
)

// pageBufferSize bounds every buffer this package allocates on the
// stack-equivalent (a plain Go slice, but sized once and reused) to
// the larger of the two flash page sizes in a typical port. Spec
// section 9 requires no buffer larger than one flash page; 4096 is
// the largest page size among the ports this repository's flash
// drivers model.
const pageBufferSize = 4096

// Image is a validated, in-bank firmware image handle. It never holds
// the payload bytes themselves — only enough to re-locate and
// re-stream them — so holding an Image costs O(1) memory regardless
// of payload size.
type Image[A address.Space] struct {
	Bank        bank.Bank[A]
	PayloadSize uint32
	tag         []byte
}

// Identity is the image's integrity tag: two images are "the same"
// iff their identities match (spec section 3).
func (img Image[A]) Identity() []byte { return img.tag }

// SameIdentity reports whether img and other carry the same integrity
// tag, regardless of which banks or address spaces they live in.
func SameIdentity[A, B address.Space](img Image[A], other Image[B]) bool {
	return bytes.Equal(img.Identity(), other.Identity())
}

// TotalSize is the payload length plus the trailer.
func (img Image[A]) TotalSize() uint32 {
	return img.PayloadSize + uint32(TrailerSize(len(img.tag)))
}

// ReadImage reads and verifies the image at bank b on driver drv,
// using eng as the integrity engine. It returns ErrBankEmpty if the
// trailer magic is absent, ErrBankInvalid if the trailer is present
// but the length or tag is wrong, eng.MismatchError() (ErrSignatureInvalid,
// for an ECDSA build) on a verified-format-but-failed-signature
// mismatch, or a valid Image otherwise. This is the sole entry point
// spec section 4.2 names as image_at(bank).
func ReadImage[A address.Space](drv flash.Driver[A], b bank.Bank[A], eng Engine) (Image[A], error) {
	trailerSize := TrailerSize(eng.TagSize())
	if uint32(trailerSize) > b.Size {
		return Image[A]{}, ErrBankInvalid
	}

	trailerStart := address.Sub(b.TrailerEnd(), uint32(trailerSize))
	raw := make([]byte, trailerSize)
	if err := drv.Read(trailerStart, raw); err != nil {
		return Image[A]{}, err
	}

	t, err := parseTrailer(raw, eng.TagSize())
	if err != nil {
		return Image[A]{}, err
	}

	if uint64(t.payloadLength)+uint64(trailerSize) > uint64(b.Size) {
		return Image[A]{}, ErrBankInvalid
	}

	digest := eng.NewDigest()
	if err := streamPayload(drv, b.Location, t.payloadLength, func(chunk []byte) error {
		_, err := digest.Write(chunk)
		return err
	}); err != nil {
		return Image[A]{}, err
	}

	if !eng.Verify(digest.Sum(nil), t.tag) {
		return Image[A]{}, eng.MismatchError()
	}

	return Image[A]{Bank: b, PayloadSize: t.payloadLength, tag: t.tag}, nil
}

// streamPayload reads length bytes starting at start from drv, one
// page-sized (or smaller, for the final chunk) buffer at a time,
// calling visit for each chunk in order.
func streamPayload[A address.Space](drv flash.Driver[A], start A, length uint32, visit func(chunk []byte) error) error {
	buf := make([]byte, pageBufferSize)
	var offset uint32
	for offset < length {
		n := pageBufferSize
		if remaining := length - offset; remaining < uint32(n) {
			n = int(remaining)
		}
		addr := address.Add(start, offset)
		if err := drv.Read(addr, buf[:n]); err != nil {
			return err
		}
		if err := visit(buf[:n]); err != nil {
			return err
		}
		offset += uint32(n)
	}
	return nil
}

// CopyPayload streams img's payload, unmodified, to sink — one flash
// page at a time, per spec section 4.2's copy_payload(image, sink).
// sink is typically a Copier writing into a different bank's driver.
func CopyPayload[A address.Space](drv flash.Driver[A], img Image[A], sink func(offset uint32, chunk []byte) error) error {
	var offset uint32
	return streamPayload(drv, img.Bank.Location, img.PayloadSize, func(chunk []byte) error {
		if err := sink(offset, chunk); err != nil {
			return err
		}
		offset += uint32(len(chunk))
		return nil
	})
}

// EncodeTrailer exposes encodeTrailer to the copier package, which
// needs to write the trailer verbatim onto the target bank once the
// payload has been streamed across (spec section 4.3 step 4).
func EncodeTrailer(payloadLength uint32, tag []byte) []byte {
	return encodeTrailer(payloadLength, tag)
}
