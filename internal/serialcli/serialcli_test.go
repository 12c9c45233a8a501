package serialcli_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"firmwareboot/address"
	"firmwareboot/bank"
	"firmwareboot/bootlog"
	"firmwareboot/flash/fakeflash"
	"firmwareboot/image"
	"firmwareboot/internal/serialcli"
)

type countingRebooter struct{ calls int }

func (r *countingRebooter) Reboot() error {
	r.calls++
	return nil
}

func TestWriteThenDump(t *testing.T) {
	drv := fakeflash.New[address.McuAddress](4096, 1, 4, 4096, 0xFF)
	banks := []bank.Bank[address.McuAddress]{{Index: 1, Location: 0, Size: 4096, Bootable: true}}
	rebooter := &countingRebooter{}
	cli := serialcli.New[address.McuAddress](drv, banks, image.DefaultEngine(), rebooter, bootlog.Discard())

	payload := []byte("recovered firmware payload")
	var input bytes.Buffer
	fmt.Fprintf(&input, "write 1 %d\n", len(payload))
	input.Write(payload)
	input.WriteString("\n")
	input.WriteString("dump 1 gzip\n")
	input.WriteString("reboot\n")

	var output bytes.Buffer
	if err := cli.Serve(&input, &output); err != nil {
		t.Fatalf("Serve: unexpected error: %v", err)
	}

	if rebooter.calls != 1 {
		t.Fatalf("expected exactly one reboot call, got %d", rebooter.calls)
	}
	if !strings.Contains(output.String(), "OK") {
		t.Fatalf("expected at least one OK response, got %q", output.String())
	}

	img, err := image.ReadImage(drv, banks[0], image.DefaultEngine())
	if err != nil {
		t.Fatalf("reading image written via serial: %v", err)
	}
	if img.PayloadSize != uint32(len(payload)) {
		t.Fatalf("PayloadSize: got %d, want %d", img.PayloadSize, len(payload))
	}
}

func TestWriteUnknownBankFails(t *testing.T) {
	drv := fakeflash.New[address.McuAddress](4096, 1, 4, 4096, 0xFF)
	banks := []bank.Bank[address.McuAddress]{{Index: 1, Location: 0, Size: 4096, Bootable: true}}
	cli := serialcli.New[address.McuAddress](drv, banks, image.DefaultEngine(), nil, bootlog.Discard())

	var input bytes.Buffer
	input.WriteString("write 9 4\nabcd\n")
	var output bytes.Buffer
	if err := cli.Serve(&input, &output); err != nil {
		t.Fatalf("Serve: unexpected transport error: %v", err)
	}
	if !strings.Contains(output.String(), "ERR") {
		t.Fatalf("expected an ERR response for unknown bank, got %q", output.String())
	}
}

func TestRebootWithoutRebooterFails(t *testing.T) {
	drv := fakeflash.New[address.McuAddress](4096, 1, 4, 4096, 0xFF)
	banks := []bank.Bank[address.McuAddress]{{Index: 1, Location: 0, Size: 4096, Bootable: true}}
	cli := serialcli.New[address.McuAddress](drv, banks, image.DefaultEngine(), nil, bootlog.Discard())

	var input bytes.Buffer
	input.WriteString("reboot\n")
	var output bytes.Buffer
	if err := cli.Serve(&input, &output); err != nil {
		t.Fatalf("Serve: unexpected transport error: %v", err)
	}
	if !strings.Contains(output.String(), "ERR") {
		t.Fatalf("expected an ERR response when no rebooter is wired, got %q", output.String())
	}
}
