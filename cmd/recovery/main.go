// Command recovery is a host-side harness for internal/serialcli: it
// serves the recovery CLI protocol over stdin/stdout against an
// mmapfile-backed bank file, the same role magiskboot.go's Main plays
// for the teacher's own one-shot component operations, generalized
// here into a persistent command loop.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"firmwareboot/address"
	"firmwareboot/bank"
	"firmwareboot/bootlog"
	"firmwareboot/flash/mmapfile"
	"firmwareboot/image"
	"firmwareboot/internal/serialcli"
)

func usage() {
	fmt.Fprintf(os.Stderr, `recovery - serial recovery CLI simulation harness

Usage: %s <bank-file> <bank-index> <bank-size-kb>

Serves the recovery protocol (write/reboot/dump) over stdin/stdout
against <bank-file>, treating it as a single bank of <bank-size-kb>
KiB at index <bank-index>. Intended for exercising internal/serialcli
without real serial hardware.
`, os.Args[0])
	os.Exit(1)
}

type noopRebooter struct{}

func (noopRebooter) Reboot() error {
	fmt.Fprintln(os.Stderr, "recovery: reboot requested (no-op in simulation harness)")
	return nil
}

func main() {
	if len(os.Args) != 4 {
		usage()
	}
	bankFile := os.Args[1]
	index, err := strconv.ParseUint(os.Args[2], 10, 8)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recovery: bad bank index: %v\n", err)
		os.Exit(1)
	}
	sizeKB, err := strconv.ParseUint(strings.TrimSuffix(os.Args[3], "kb"), 10, 32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recovery: bad bank size: %v\n", err)
		os.Exit(1)
	}

	size := int64(sizeKB) * 1024
	drv, err := mmapfile.New[address.McuAddress](bankFile, size, 1, 4, 4096, 0xFF)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recovery: %v\n", err)
		os.Exit(1)
	}
	defer drv.Close()

	banks := []bank.Bank[address.McuAddress]{
		{Index: uint8(index), Location: 0, Size: uint32(size), Bootable: true},
	}

	cli := serialcli.New[address.McuAddress](drv, banks, image.DefaultEngine(), noopRebooter{}, bootlog.ToWriter(os.Stderr))
	if err := cli.Serve(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "recovery: %v\n", err)
		os.Exit(1)
	}
}
