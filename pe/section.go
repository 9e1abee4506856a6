package pe

import (
	"strings"

	"github.com/davejbax/corepe/binio"
	"github.com/davejbax/corepe/errs"
	"github.com/davejbax/corepe/segment"
)

// Section characteristic flags relevant to this library (a representative
// subset, not the full Windows list).
const (
	SectionCntCode             = 0x00000020
	SectionCntInitializedData  = 0x00000040
	SectionCntUninitializedData = 0x00000080
	SectionMemDiscardable      = 0x02000000
	SectionMemExecute          = 0x20000000
	SectionMemRead             = 0x40000000
	SectionMemWrite            = 0x80000000
)

// SectionHeader is the 40-byte on-disk section table entry.
type SectionHeader struct {
	Name                 string // up to 8 bytes, NUL-padded on the wire
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

func encodeSectionName(name string) [8]byte {
	var out [8]byte
	copy(out[:], name)
	return out
}

func decodeSectionName(raw [8]byte) string {
	return strings.TrimRight(string(raw[:]), "\x00")
}

func parseSectionHeader(r *binio.Reader) (*SectionHeader, error) {
	nameBytes, err := r.ReadBytes(8)
	if err != nil {
		return nil, err
	}

	h := &SectionHeader{Name: strings.TrimRight(string(nameBytes), "\x00")}

	fields := []*uint32{&h.VirtualSize, &h.VirtualAddress, &h.SizeOfRawData, &h.PointerToRawData, &h.PointerToRelocations, &h.PointerToLineNumbers}
	for _, f := range fields {
		v, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		*f = v
	}

	if h.NumberOfRelocations, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if h.NumberOfLineNumbers, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if h.Characteristics, err = r.ReadU32(); err != nil {
		return nil, err
	}

	return h, nil
}

func (h *SectionHeader) writeTo(w *binio.Writer) error {
	name := encodeSectionName(h.Name)
	if err := w.WriteBytes(name[:]); err != nil {
		return err
	}

	for _, v := range []uint32{h.VirtualSize, h.VirtualAddress, h.SizeOfRawData, h.PointerToRawData, h.PointerToRelocations, h.PointerToLineNumbers} {
		if err := w.WriteU32(v); err != nil {
			return err
		}
	}
	if err := w.WriteU16(h.NumberOfRelocations); err != nil {
		return err
	}
	if err := w.WriteU16(h.NumberOfLineNumbers); err != nil {
		return err
	}
	return w.WriteU32(h.Characteristics)
}

// Section pairs a header with its contents segment: typically a
// [segment.Composite] of a raw payload plus a [segment.Padding] covering the
// gap up to VirtualSize.
type Section struct {
	Header   SectionHeader
	Contents segment.Segment
}

// RVARange returns the [start, end) RVA range this section occupies.
func (s *Section) RVARange() (start, end uint32) {
	return s.Header.VirtualAddress, s.Header.VirtualAddress + s.Header.VirtualSize
}

// ContainsRVA reports whether rva falls within this section's virtual
// address range.
func (s *Section) ContainsRVA(rva uint32) bool {
	start, end := s.RVARange()
	return rva >= start && rva < end
}

// validateSectionOrder enforces the PE section table invariants: sections
// strictly ordered by VirtualAddress and non-overlapping in RVA space.
// SizeOfRawData is not required to be <= VirtualSize: it is file-aligned,
// and a section smaller than FileAlignment legitimately has a raw size that
// exceeds its virtual size, with the excess ignored by the loader.
func validateSectionOrder(sections []*Section) error {
	var prevEnd uint32
	for i, s := range sections {
		if i > 0 && s.Header.VirtualAddress < prevEnd {
			return errs.AtRVA(errs.InvariantViolation, s.Header.VirtualAddress,
				"sections are not strictly ordered or overlap in RVA space", nil)
		}
		prevEnd = s.Header.VirtualAddress + s.Header.VirtualSize
	}
	return nil
}
