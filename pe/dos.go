package pe

import (
	"bytes"
	"encoding/binary"

	"github.com/davejbax/corepe/binio"
	"github.com/davejbax/corepe/errs"
	"github.com/lunixbochs/struc"
)

// DosMagic is the 'MZ' signature every DOS/PE image begins with.
var DosMagic = [2]byte{0x4D, 0x5A}

const dosHeaderSizeBytes = 64

// DosHeader is the legacy MS-DOS header every PE image carries for
// backwards compatibility. Only NextHeaderOffset (e_lfanew) actually
// matters to a PE loader; the rest exists so that a DOS-era loader can run
// the stub program instead.
type DosHeader struct {
	BytesOnLastPage      uint16
	PagesInFile          uint16
	RelocationItems      uint16
	HeaderSizeParagraphs uint16
	MinimumAllocation    uint16
	MaximumAllocation    uint16
	InitialSS            uint16
	InitialSP            uint16
	Checksum             uint16
	InitialIP            uint16
	InitialCS            uint16
	RelocationTableAddr  uint16
	OverlayNumber        uint16
	Reserved1            uint64
	OEMIdentifier        uint16
	OEMInfo              uint16
	Reserved2            []byte `struc:"[20]uint8"`

	// NextHeaderOffset is e_lfanew: the file offset of the 4-byte PE
	// signature.
	NextHeaderOffset uint32
}

var strucOpts = &struc.Options{Order: binary.LittleEndian}

// ParseDosHeader reads the DOS magic and header at the reader's current
// position. Per spec, `DosHeader.next_header_offset` must point at the
// 4-byte PE signature; this is validated by the caller after seeking there.
func ParseDosHeader(r *binio.Reader) (*DosHeader, error) {
	magic, err := r.ReadBytes(2)
	if err != nil {
		return nil, err
	}
	if magic[0] != DosMagic[0] || magic[1] != DosMagic[1] {
		return nil, errs.At(errs.BadImage, r.AbsolutePosition()-2, "DOS magic mismatch, not an MZ file", nil)
	}

	rest, err := r.ReadBytes(dosHeaderSizeBytes - 2)
	if err != nil {
		return nil, err
	}

	header := &DosHeader{}
	if err := struc.UnpackWithOptions(bytes.NewReader(rest), header, strucOpts); err != nil {
		return nil, errs.At(errs.BadImage, r.AbsolutePosition()-int64(len(rest)), "failed to unpack DOS header", err)
	}

	return header, nil
}

// WriteTo serializes the DOS magic and header.
func (d *DosHeader) WriteTo(w *binio.Writer) error {
	if err := w.WriteBytes(DosMagic[:]); err != nil {
		return err
	}

	pooled := binio.RentWriter()
	defer pooled.Release()

	if err := struc.PackWithOptions(pooled, d, strucOpts); err != nil {
		return errs.Plain(errs.BadImage, "failed to pack DOS header", err)
	}

	return w.WriteBytes(pooled.Bytes())
}
