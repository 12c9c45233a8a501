// Package memorymap parses the declarative, build-time memory-map
// configuration named in spec section 6: per port, a list of internal
// banks (start address, size in KiB, bootable flag, golden flag) and
// optionally external banks with the same fields.
//
// The original Rust build carries this information as a typed
// MemoryConfiguration struct assembled by a separate configuration
// tool (original_source/loadstone_config/src/pins.rs) and fed into
// codegen (memory_map.rs). No TOML/YAML library ships anywhere in
// this repository's example pack, so rather than reach for a
// non-grounded dependency this is a small, deliberately minimal
// `key=value` line scanner over two sections — a stdlib choice
// explicitly justified in DESIGN.md rather than a silent gap.
package memorymap

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// BankSpec is one declared bank, before codegen assigns it a
// sequential index.
type BankSpec struct {
	StartAddress uint32
	SizeKB       uint32
	Bootable     bool
	Golden       bool
}

// Document is the parsed memory-map configuration for one port.
type Document struct {
	Port     string
	MCU      []BankSpec
	External []BankSpec
}

// Parse reads a memory-map document from r. Lines are `#`-comments,
// blank, a `[mcu]`/`[external]` section header, a `port = "name"`
// assignment, or a `bank key=value ...` declaration within the
// current section.
func Parse(r io.Reader) (Document, error) {
	var doc Document
	section := ""

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			if section != "mcu" && section != "external" {
				return Document{}, fmt.Errorf("memorymap: line %d: unknown section %q", lineNo, section)
			}
			continue
		}

		if strings.HasPrefix(line, "port") {
			name, err := parsePortLine(line)
			if err != nil {
				return Document{}, fmt.Errorf("memorymap: line %d: %w", lineNo, err)
			}
			doc.Port = name
			continue
		}

		if strings.HasPrefix(line, "bank") {
			if section == "" {
				return Document{}, fmt.Errorf("memorymap: line %d: bank declared outside [mcu]/[external]", lineNo)
			}
			spec, err := parseBankLine(line)
			if err != nil {
				return Document{}, fmt.Errorf("memorymap: line %d: %w", lineNo, err)
			}
			if section == "mcu" {
				doc.MCU = append(doc.MCU, spec)
			} else {
				doc.External = append(doc.External, spec)
			}
			continue
		}

		return Document{}, fmt.Errorf("memorymap: line %d: unrecognised line %q", lineNo, line)
	}
	if err := scanner.Err(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func parsePortLine(line string) (string, error) {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("malformed port line %q", line)
	}
	name := strings.Trim(strings.TrimSpace(parts[1]), `"`)
	if name == "" {
		return "", fmt.Errorf("empty port name")
	}
	return name, nil
}

func parseBankLine(line string) (BankSpec, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "bank" {
		return BankSpec{}, fmt.Errorf("malformed bank line %q", line)
	}

	var spec BankSpec
	for _, field := range fields[1:] {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			return BankSpec{}, fmt.Errorf("malformed field %q", field)
		}
		key, value := kv[0], kv[1]
		switch key {
		case "start":
			v, err := strconv.ParseUint(strings.TrimPrefix(value, "0x"), 16, 32)
			if err != nil {
				return BankSpec{}, fmt.Errorf("bad start address %q: %w", value, err)
			}
			spec.StartAddress = uint32(v)
		case "size_kb":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return BankSpec{}, fmt.Errorf("bad size_kb %q: %w", value, err)
			}
			spec.SizeKB = uint32(v)
		case "bootable":
			spec.Bootable = value == "true"
		case "golden":
			spec.Golden = value == "true"
		default:
			return BankSpec{}, fmt.Errorf("unknown bank field %q", key)
		}
	}
	if spec.SizeKB == 0 {
		return BankSpec{}, fmt.Errorf("bank missing required size_kb field")
	}
	return spec, nil
}
