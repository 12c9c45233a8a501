// Command bankgen reads a declarative memory-map document (see
// internal/memorymap) and emits a Go source file defining the
// compiled bank.Table for one port, as a package-level var ready to
// be linked into cmd/bootsim or a real firmware build.
//
// This is the Go-native replacement for the original build's
// loadstone_config/src/codegen/memory_map.rs, which used the `quote`
// crate to splice a MemoryConfiguration into a generated Rust module
// at build time. Go has no macro-splicing equivalent, so this command
// instead renders a text/template against the parsed Document and
// runs the result through go/format, the same two-step "template
// then gofmt" shape every Go code generator in the ecosystem uses.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"os"
	"text/template"

	"firmwareboot/internal/memorymap"
)

var bankTableTemplate = template.Must(template.New("bankmap").Parse(`// Code generated by cmd/bankgen from {{.SourcePath}}. DO NOT EDIT.

package {{.Package}}

import (
	"firmwareboot/address"
	"firmwareboot/bank"
)

// CompiledBankTable is the static bank map for port {{printf "%q" .Port}}.
var CompiledBankTable = bank.Table{
	McuBanks: []bank.Bank[address.McuAddress]{
{{- range .MCU}}
		{Index: {{.Index}}, Location: {{.Location}}, Size: {{.Size}}, Bootable: {{.Bootable}}, IsGolden: {{.Golden}}},
{{- end}}
	},
	ExternalBanks: []bank.Bank[address.ExternalAddress]{
{{- range .External}}
		{Index: {{.Index}}, Location: {{.Location}}, Size: {{.Size}}, Bootable: {{.Bootable}}, IsGolden: {{.Golden}}},
{{- end}}
	},
}
`))

type renderedBank struct {
	Index    uint8
	Location string
	Size     uint32
	Bootable bool
	Golden   bool
}

type renderData struct {
	SourcePath string
	Package    string
	Port       string
	MCU        []renderedBank
	External   []renderedBank
}

func main() {
	in := flag.String("in", "", "path to the memory-map document")
	out := flag.String("out", "", "path to write the generated Go file")
	pkg := flag.String("package", "portmap", "package name for the generated file")
	flag.Parse()

	if *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "bankgen: both -in and -out are required")
		os.Exit(2)
	}

	if err := run(*in, *out, *pkg); err != nil {
		fmt.Fprintf(os.Stderr, "bankgen: %v\n", err)
		os.Exit(1)
	}
}

func run(inPath, outPath, pkg string) error {
	f, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := memorymap.Parse(f)
	if err != nil {
		return err
	}

	data := renderData{
		SourcePath: inPath,
		Package:    pkg,
		Port:       doc.Port,
	}

	index := uint8(1)
	goldenSeen := false
	for _, b := range doc.MCU {
		if b.Golden {
			if goldenSeen {
				return fmt.Errorf("memory map declares more than one golden bank")
			}
			goldenSeen = true
		}
		data.MCU = append(data.MCU, renderedBank{
			Index:    index,
			Location: fmt.Sprintf("0x%08X", b.StartAddress),
			Size:     b.SizeKB * 1024,
			Bootable: b.Bootable,
			Golden:   b.Golden,
		})
		index++
	}
	for _, b := range doc.External {
		if b.Golden {
			if goldenSeen {
				return fmt.Errorf("memory map declares more than one golden bank")
			}
			goldenSeen = true
		}
		data.External = append(data.External, renderedBank{
			Index:    index,
			Location: fmt.Sprintf("0x%08X", b.StartAddress),
			Size:     b.SizeKB * 1024,
			Bootable: b.Bootable,
			Golden:   b.Golden,
		})
		index++
	}

	var buf bytes.Buffer
	if err := bankTableTemplate.Execute(&buf, data); err != nil {
		return err
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return fmt.Errorf("generated source does not parse: %w", err)
	}

	return os.WriteFile(outPath, formatted, 0o644)
}
