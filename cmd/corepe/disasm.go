package main

import (
	"fmt"
	"os"

	"github.com/davejbax/corepe/binio"
	"github.com/davejbax/corepe/pe"
	"github.com/davejbax/corepe/segment"
	"github.com/davejbax/corepe/x86"
	"github.com/spf13/cobra"
)

func newDisasmCommand(opts *rootOptions) *cobra.Command {
	section := ".text"

	cmd := &cobra.Command{
		Use:   "disasm <file>",
		Short: "Disassemble a section's raw bytes as x86",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runDisasm(opts, args[0], section)
		},
	}

	cmd.Flags().StringVarP(&section, "section", "s", ".text", "Section to disassemble")

	return cmd
}

func runDisasm(opts *rootOptions, path, sectionName string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read '%s': %w", path, err)
	}

	file, err := pe.Parse(binio.NewReaderBytes(raw), pe.Unmapped)
	if err != nil {
		return fmt.Errorf("failed to parse PE image: %w", err)
	}

	s, ok := file.GetSectionByName(sectionName)
	if !ok {
		return fmt.Errorf("section '%s' not found", sectionName)
	}

	data, ok := s.Contents.(*segment.Raw)
	if !ok {
		return fmt.Errorf("section '%s' has no raw byte payload to disassemble", sectionName)
	}

	d := x86.NewDisassembler()
	f := x86.NewFormatter()

	instrs, err := d.DecodeBlock(data.Data)
	if err != nil {
		return fmt.Errorf("disassembly failed: %w", err)
	}

	for _, instr := range instrs {
		fmt.Println(f.Format(instr))
	}

	return nil
}
