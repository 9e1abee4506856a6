package main

import (
	"fmt"
	"os"

	"github.com/davejbax/corepe/binio"
	"github.com/davejbax/corepe/metadata"
	"github.com/davejbax/corepe/pe"
	"github.com/spf13/cobra"
)

func newDumpCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Parse a PE image and print its headers, sections, and CLI metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runDump(opts, args[0])
		},
	}
	return cmd
}

func runDump(opts *rootOptions, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read '%s': %w", path, err)
	}

	mode := pe.Unmapped
	if opts.config.Mapping == "mapped" {
		mode = pe.Mapped
	}

	file, err := pe.Parse(binio.NewReaderBytes(raw), mode)
	if err != nil {
		return fmt.Errorf("failed to parse PE image: %w", err)
	}

	fmt.Printf("machine: 0x%04x\n", file.FileHeader.Machine)
	fmt.Printf("sections: %d\n", len(file.Sections))
	for _, s := range file.Sections {
		fmt.Printf("  %-8s rva=0x%08x size=0x%08x raw=0x%08x\n",
			s.Header.Name, s.Header.VirtualAddress, s.Header.VirtualSize, s.Header.SizeOfRawData)
	}

	comDir := file.OptionalHeader.DataDir(pe.DirCOMDescriptor)
	if comDir.Empty() {
		opts.logger.Info("image has no COM descriptor directory; not a managed assembly")
		return nil
	}

	nd, err := parseNetDirectory(raw, file, comDir)
	if err != nil {
		return fmt.Errorf("failed to parse CLI metadata: %w", err)
	}

	fmt.Printf("metadata version: %s\n", nd.Root.VersionString)
	fmt.Printf("table rows:\n")
	for t, n := range nd.Root.Tables.RowCounts {
		if n > 0 {
			fmt.Printf("  %-16s %d\n", metadata.Table(t), n)
		}
	}

	if tok, ok := nd.EntryPointToken(); ok {
		fmt.Printf("managed entry point: %s\n", tok)
	} else if rva, ok := nd.EntryPointRVA(); ok {
		fmt.Printf("native entry point rva: 0x%x\n", rva)
	}

	return nil
}

// parseNetDirectory forks a fresh reader over the whole file and translates
// RVAs through file's section table, rather than reusing the section
// segments pe.Parse already materialized -- the metadata engine only needs
// read access and has no dependency on the pe package's segment tree.
func parseNetDirectory(raw []byte, file *pe.File, comDir pe.DataDirectory) (*metadata.NetDirectory, error) {
	root := binio.NewReaderBytes(raw)

	readRVA := func(rva uint32, size uint32) (*binio.Reader, error) {
		offset, err := file.GetOffsetFromRVA(rva)
		if err != nil {
			return nil, err
		}
		return root.Fork(offset, int64(size))
	}

	cor20Offset, err := file.GetOffsetFromRVA(comDir.RVA)
	if err != nil {
		return nil, err
	}
	cor20Reader, err := root.Fork(cor20Offset, int64(comDir.Size))
	if err != nil {
		return nil, err
	}

	return metadata.ParseNetDirectory(cor20Reader, readRVA)
}
