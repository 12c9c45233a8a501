package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleMap = `
port = "demo"

[mcu]
bank start=0x08000000 size_kb=64 bootable=true
bank start=0x08010000 size_kb=192
bank start=0x08040000 size_kb=192 golden=true

[external]
bank start=0x00000000 size_kb=1024
`

func TestRunGeneratesCompilableSource(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "memorymap.txt")
	outPath := filepath.Join(dir, "bankmap_generated.go")

	if err := os.WriteFile(inPath, []byte(sampleMap), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if err := run(inPath, outPath, "portmap"); err != nil {
		t.Fatalf("run: unexpected error: %v", err)
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading generated file: %v", err)
	}
	generated := string(out)

	for _, want := range []string{
		"package portmap",
		"CompiledBankTable = bank.Table{",
		"Index: 1, Location: 0x08000000, Size: 65536, Bootable: true, IsGolden: false",
		"Index: 3, Location: 0x08040000, Size: 196608, Bootable: false, IsGolden: true",
		"Index: 4, Location: 0x00000000, Size: 1048576",
	} {
		if !strings.Contains(generated, want) {
			t.Fatalf("generated source missing expected fragment %q:\n%s", want, generated)
		}
	}
}

func TestRunRejectsMultipleGoldenBanks(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "memorymap.txt")
	outPath := filepath.Join(dir, "bankmap_generated.go")

	doubled := sampleMap + "bank start=0x00200000 size_kb=1024 golden=true\n"
	if err := os.WriteFile(inPath, []byte(doubled), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if err := run(inPath, outPath, "portmap"); err == nil {
		t.Fatalf("expected error for a memory map declaring two golden banks")
	}
}
