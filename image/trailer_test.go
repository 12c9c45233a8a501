package image

import "testing"

func TestEncodeParseTrailerRoundTrip(t *testing.T) {
	tag := []byte{1, 2, 3, 4}
	raw := encodeTrailer(1234, tag)

	if len(raw) != TrailerSize(len(tag)) {
		t.Fatalf("encodeTrailer: got %d bytes, want %d", len(raw), TrailerSize(len(tag)))
	}

	parsed, err := parseTrailer(raw, len(tag))
	if err != nil {
		t.Fatalf("parseTrailer: unexpected error: %v", err)
	}
	if parsed.payloadLength != 1234 {
		t.Fatalf("payloadLength: got %d, want 1234", parsed.payloadLength)
	}
	if string(parsed.tag) != string(tag) {
		t.Fatalf("tag: got %v, want %v", parsed.tag, tag)
	}
}

func TestParseTrailerEmptyBank(t *testing.T) {
	raw := make([]byte, TrailerSize(4)) // all zero bytes: no magic present
	if _, err := parseTrailer(raw, 4); err != ErrBankEmpty {
		t.Fatalf("got error %v, want ErrBankEmpty", err)
	}
}

func TestParseTrailerWrongLength(t *testing.T) {
	raw := make([]byte, 3)
	if _, err := parseTrailer(raw, 4); err != ErrBankInvalid {
		t.Fatalf("got error %v, want ErrBankInvalid", err)
	}
}
