package memorymap_test

import (
	"strings"
	"testing"

	"firmwareboot/internal/memorymap"
)

const sample = `
# sample port memory map
port = "demo"

[mcu]
bank start=0x08000000 size_kb=64 bootable=true
bank start=0x08010000 size_kb=192
bank start=0x08040000 size_kb=192 golden=true

[external]
bank start=0x00000000 size_kb=1024
bank start=0x00100000 size_kb=1024
`

func TestParseSample(t *testing.T) {
	doc, err := memorymap.Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	if doc.Port != "demo" {
		t.Fatalf("Port: got %q, want %q", doc.Port, "demo")
	}
	if len(doc.MCU) != 3 {
		t.Fatalf("MCU banks: got %d, want 3", len(doc.MCU))
	}
	if !doc.MCU[0].Bootable {
		t.Fatalf("expected first MCU bank to be bootable")
	}
	if !doc.MCU[2].Golden {
		t.Fatalf("expected third MCU bank to be golden")
	}
	if len(doc.External) != 2 {
		t.Fatalf("External banks: got %d, want 2", len(doc.External))
	}
	if doc.External[1].StartAddress != 0x00100000 {
		t.Fatalf("second external bank start: got %#x, want %#x", doc.External[1].StartAddress, 0x00100000)
	}
}

func TestParseRejectsBankOutsideSection(t *testing.T) {
	bad := "bank start=0x0 size_kb=1\n"
	if _, err := memorymap.Parse(strings.NewReader(bad)); err == nil {
		t.Fatalf("expected error for bank declared outside any section")
	}
}

func TestParseRejectsUnknownSection(t *testing.T) {
	bad := "[bogus]\nbank start=0x0 size_kb=1\n"
	if _, err := memorymap.Parse(strings.NewReader(bad)); err == nil {
		t.Fatalf("expected error for unknown section")
	}
}

func TestParseRejectsMissingSizeKB(t *testing.T) {
	bad := "[mcu]\nbank start=0x0\n"
	if _, err := memorymap.Parse(strings.NewReader(bad)); err == nil {
		t.Fatalf("expected error for bank missing size_kb")
	}
}
