// Package pe implements the PE (Portable Executable) file model: DOS
// header, COFF file header, optional header, section table, and the
// segment-based section contents. A [File] is parsed from a [binio.Reader]
// in one of two [MappingMode]s and rebuilt by recomputing segment offsets
// over a [segment.Segment] tree.
package pe

import (
	"io"
	"log/slog"

	"github.com/davejbax/corepe/binio"
	"github.com/davejbax/corepe/errs"
	"github.com/davejbax/corepe/segment"
)

// MappingMode selects whether a section's on-disk layout is interpreted as
// the raw file (Unmapped) or as the OS loader would lay it out in memory
// (Mapped).
type MappingMode int

const (
	Unmapped MappingMode = iota
	Mapped
)

// File is a parsed (or freshly constructed) PE image: DOS header, one file
// header, one optional header, an ordered section list, and any bytes
// between the section table and the first section's payload.
type File struct {
	Dos            *DosHeader
	FileHeader     *FileHeader
	OptionalHeader *OptionalHeader
	Sections       []*Section
	ExtraHeaderData []byte

	Mapping MappingMode
}

// Parse reads a complete PE image from r: DOS header and stub, PE
// signature, COFF file header, optional header, section table, then each
// section's contents.
func Parse(r *binio.Reader, mode MappingMode) (*File, error) {
	dos, err := ParseDosHeader(r)
	if err != nil {
		return nil, err
	}

	if err := r.Seek(int64(dos.NextHeaderOffset)); err != nil {
		return nil, errs.At(errs.BadImage, int64(dos.NextHeaderOffset), "DOS next-header offset is out of bounds", err)
	}

	sigStart := r.AbsolutePosition()
	sig, err := r.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	for i := range PESignature {
		if sig[i] != PESignature[i] {
			return nil, errs.At(errs.BadImage, sigStart, "PE signature mismatch, expected PE\\0\\0", nil)
		}
	}

	fileHeader, err := parseFileHeader(r)
	if err != nil {
		return nil, err
	}

	optHeaderStart := r.Position()
	optHeader, err := parseOptionalHeader(r, fileHeader.SizeOfOptionalHeader)
	if err != nil {
		return nil, err
	}

	// Seek to the end of the optional header using the declared size, not
	// however many bytes we actually interpreted: a nonstandard linker may
	// declare more (or fewer) data directories than NumberOfRvaAndSizes.
	if err := r.Seek(optHeaderStart + int64(fileHeader.SizeOfOptionalHeader)); err != nil {
		return nil, errs.At(errs.BadImage, optHeaderStart, "optional header size exceeds file bounds", err)
	}

	sections := make([]*Section, 0, fileHeader.NumberOfSections)
	for i := uint16(0); i < fileHeader.NumberOfSections; i++ {
		header, err := parseSectionHeader(r)
		if err != nil {
			return nil, err
		}

		contents, err := loadSectionContents(r, header, mode)
		if err != nil {
			return nil, err
		}

		sections = append(sections, &Section{Header: *header, Contents: contents})
	}

	if err := validateSectionOrder(sections); err != nil {
		return nil, err
	}

	extraSize := int64(optHeader.SizeOfHeaders) - r.Position()
	var extra []byte
	if extraSize > 0 {
		extra, err = r.ReadBytes(int(extraSize))
		if err != nil {
			return nil, err
		}
	}

	f := &File{
		Dos:             dos,
		FileHeader:      fileHeader,
		OptionalHeader:  optHeader,
		Sections:        sections,
		ExtraHeaderData: extra,
		Mapping:         mode,
	}

	slog.Debug("parsed PE image",
		"sections", len(sections),
		"mapping", mode,
		"machine", fileHeader.Machine,
	)

	return f, nil
}

// loadSectionContents computes (file_offset, size) for a section and builds
// its contents segment: the physical payload, plus zero-fill padding up to
// VirtualSize.
func loadSectionContents(r *binio.Reader, h *SectionHeader, mode MappingMode) (segment.Segment, error) {
	var fileOffset uint32
	var physSize uint32

	switch mode {
	case Unmapped:
		fileOffset = h.PointerToRawData
		physSize = min32(h.VirtualSize, h.SizeOfRawData)

		// PointerToRawData == 0 is treated as a zero-sized physical segment
		// with full virtual size, rather than an error: BSS-style
		// uninitialized-data sections legitimately have no raw data.
		if h.PointerToRawData == 0 {
			physSize = 0
		}
	case Mapped:
		fileOffset = h.VirtualAddress
		physSize = h.VirtualSize
	}

	var raw []byte
	if physSize > 0 {
		fork, err := r.Fork(int64(fileOffset), int64(physSize))
		if err != nil {
			return nil, errs.AtRVA(errs.OutOfBounds, h.VirtualAddress, "section contents out of file bounds", err)
		}
		raw, err = fork.ReadBytes(int(physSize))
		if err != nil {
			return nil, err
		}
	}

	rawSegment := segment.NewRaw(raw)
	if h.VirtualSize <= physSize {
		return rawSegment, nil
	}

	return segment.NewComposite(rawSegment, segment.NewPadding(h.VirtualSize-physSize)), nil
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// GetSectionByName returns the first section with the given name.
func (f *File) GetSectionByName(name string) (*Section, bool) {
	for _, s := range f.Sections {
		if s.Header.Name == name {
			return s, true
		}
	}
	return nil, false
}

// GetOffsetFromRVA maps an RVA to a file offset, using whichever section
// contains it; returns an error if no section covers the RVA (e.g. it falls
// within the header region, which callers should check separately via
// SizeOfHeaders).
func (f *File) GetOffsetFromRVA(rva uint32) (int64, error) {
	for _, s := range f.Sections {
		if s.ContainsRVA(rva) {
			delta := rva - s.Header.VirtualAddress
			return int64(s.Header.PointerToRawData) + int64(delta), nil
		}
	}
	return 0, errs.AtRVA(errs.OutOfBounds, rva, "RVA not contained in any section", nil)
}

// AddSection appends a section, keeping the caller responsible for RVA
// placement; call Rebuild (or AssignOffsets) afterwards to recompute every
// offset/RVA consistently.
func (f *File) AddSection(s *Section) {
	f.Sections = append(f.Sections, s)
	f.FileHeader.NumberOfSections = uint16(len(f.Sections))
}

// RemoveSection drops the first section with the given name.
func (f *File) RemoveSection(name string) bool {
	for i, s := range f.Sections {
		if s.Header.Name == name {
			f.Sections = append(f.Sections[:i], f.Sections[i+1:]...)
			f.FileHeader.NumberOfSections = uint16(len(f.Sections))
			return true
		}
	}
	return false
}

// headerSizeBytes computes the total size of the DOS header + stub + PE
// signature + file header + optional header + section table, before any
// extra header padding.
func (f *File) headerSizeBytes() uint32 {
	return f.Dos.NextHeaderOffset + 4 + fileHeaderSizeBytes + f.OptionalHeader.SizeBytes() +
		uint32(len(f.Sections))*sectionHeaderSizeBytes
}

// AssignOffsets performs the "assign" phase of the two-phase rebuild: it
// lays out the header region, then each section in turn, aligned to
// FileAlignment (on disk) and SectionAlignment (in memory).
func (f *File) AssignOffsets() {
	headerEnd := f.headerSizeBytes() + uint32(len(f.ExtraHeaderData))
	sizeOfHeaders := alignUp(headerEnd, f.OptionalHeader.FileAlignment)
	f.OptionalHeader.SizeOfHeaders = sizeOfHeaders

	fileOffset := sizeOfHeaders
	rva := alignUp(sizeOfHeaders, f.OptionalHeader.SectionAlignment)

	for _, s := range f.Sections {
		fileOffset = alignUp(fileOffset, f.OptionalHeader.FileAlignment)
		rva = alignUp(rva, f.OptionalHeader.SectionAlignment)

		s.Header.PointerToRawData = fileOffset
		s.Header.VirtualAddress = rva
		s.Header.SizeOfRawData = alignUp(s.Contents.PhysicalSize(), f.OptionalHeader.FileAlignment)
		s.Header.VirtualSize = s.Contents.VirtualSize()

		s.Contents.UpdateOffsets(segment.OffsetParams{
			NewFileOffset: uint64(fileOffset),
			NewRVA:        rva,
			ParentAlign:   f.OptionalHeader.FileAlignment,
		})

		fileOffset += s.Header.SizeOfRawData
		rva += alignUp(s.Header.VirtualSize, f.OptionalHeader.SectionAlignment)
	}

	if len(f.Sections) > 0 {
		last := f.Sections[len(f.Sections)-1]
		f.OptionalHeader.SizeOfImage = alignUp(last.Header.VirtualAddress+last.Header.VirtualSize, f.OptionalHeader.SectionAlignment)
	} else {
		f.OptionalHeader.SizeOfImage = alignUp(sizeOfHeaders, f.OptionalHeader.SectionAlignment)
	}
}

func alignUp(v, align uint32) uint32 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

// WriteTo performs the "emit" phase of the two-phase rebuild: headers,
// section table, then each section's physical bytes padded to
// SizeOfRawData. Callers must call AssignOffsets first (directly, or via
// Rebuild).
func (f *File) WriteTo(w io.Writer) (int64, error) {
	bw := binio.NewWriter(w)

	if err := f.Dos.WriteTo(bw); err != nil {
		return bw.BytesWritten(), err
	}

	if err := bw.WriteZeros(int(f.Dos.NextHeaderOffset) - int(bw.BytesWritten())); err != nil {
		return bw.BytesWritten(), err
	}

	if err := bw.WriteBytes(PESignature[:]); err != nil {
		return bw.BytesWritten(), err
	}

	if err := f.FileHeader.writeTo(bw); err != nil {
		return bw.BytesWritten(), err
	}

	if err := f.OptionalHeader.writeTo(bw); err != nil {
		return bw.BytesWritten(), err
	}

	for _, s := range f.Sections {
		if err := s.Header.writeTo(bw); err != nil {
			return bw.BytesWritten(), err
		}
	}

	if err := bw.WriteBytes(f.ExtraHeaderData); err != nil {
		return bw.BytesWritten(), err
	}

	if err := bw.AlignTo(int64(f.OptionalHeader.FileAlignment)); err != nil {
		return bw.BytesWritten(), err
	}

	for _, s := range f.Sections {
		gap := int64(s.Header.PointerToRawData) - bw.BytesWritten()
		if gap < 0 {
			return bw.BytesWritten(), errs.At(errs.InvariantViolation, bw.BytesWritten(), "section offset precedes current write position", nil)
		}
		if err := bw.WriteZeros(int(gap)); err != nil {
			return bw.BytesWritten(), err
		}

		if err := s.Contents.Write(bw); err != nil {
			return bw.BytesWritten(), err
		}

		if err := bw.AlignTo(int64(f.OptionalHeader.FileAlignment)); err != nil {
			return bw.BytesWritten(), err
		}
	}

	return bw.BytesWritten(), nil
}

// Rebuild assigns fresh offsets/RVAs to every section and writes the
// resulting image to w.
func (f *File) Rebuild(w io.Writer) (int64, error) {
	f.AssignOffsets()
	return f.WriteTo(w)
}
