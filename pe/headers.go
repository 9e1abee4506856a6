package pe

import (
	"bytes"

	"github.com/davejbax/corepe/binio"
	"github.com/davejbax/corepe/errs"
	"github.com/lunixbochs/struc"
)

// PESignature is the 4-byte 'PE\0\0' signature following the DOS stub.
var PESignature = [4]byte{0x50, 0x45, 0x00, 0x00}

const (
	pe32Magic     = 0x10b
	pe32PlusMagic = 0x20b

	numDataDirectoriesDefault = 16
	fileHeaderSizeBytes       = 20
	sectionHeaderSizeBytes    = 40
)

// FileHeader is the COFF file header: general characteristics of the image,
// applicable to both object and executable files.
type FileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

// Well-known FileHeader.Characteristics bits.
const (
	ImageFileExecutableImage = 0x0002
	ImageFileLargeAddressAware = 0x0020
	ImageFileLocalSymsStripped = 0x0008
	ImageFileDebugStripped    = 0x0200
	ImageFileLineNumsStripped = 0x0004
	ImageFileDLL              = 0x2000
)

// Well-known Machine values.
const (
	ImageFileMachineI386  = 0x014c
	ImageFileMachineAMD64 = 0x8664
	ImageFileMachineARM64 = 0xaa64
)

// DataDirectory is a (rva, size) pair in the optional header pointing at a
// well-known table. It is empty iff both fields are zero.
type DataDirectory struct {
	RVA  uint32
	Size uint32
}

// Empty reports whether both fields of the directory are zero.
func (d DataDirectory) Empty() bool { return d.RVA == 0 && d.Size == 0 }

// Data directory indices, per the Windows PE/COFF specification.
const (
	DirExport = iota
	DirImport
	DirResource
	DirException
	DirSecurity
	DirBaseReloc
	DirDebug
	DirArchitecture
	DirGlobalPtr
	DirTLS
	DirLoadConfig
	DirBoundImport
	DirIAT
	DirDelayImport
	DirCOMDescriptor // CLI header (COR20)
	DirReserved
)

// OptionalHeader is the PE32/PE32+ optional header. Magic determines which
// variant was parsed; ImageBase and the Size* reserve fields are uint64 in
// both cases for simplicity (PE32's are uint32 on the wire and are
// widened/narrowed on parse/write).
type OptionalHeader struct {
	Magic uint16
	Is64  bool

	MajorLinkerVersion uint8
	MinorLinkerVersion uint8

	SizeOfCode              uint32
	SizeOfInitializedData   uint32
	SizeOfUninitializedData uint32
	AddressOfEntryPoint     uint32
	BaseOfCode              uint32
	BaseOfData              uint32 // PE32 only; zero for PE32+

	ImageBase uint64

	SectionAlignment uint32
	FileAlignment    uint32

	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion      uint16
	Win32VersionValue           uint32

	SizeOfImage   uint32
	SizeOfHeaders uint32
	CheckSum      uint32

	Subsystem          uint16
	DllCharacteristics uint16

	SizeOfStackReserve uint64
	SizeOfStackCommit  uint64
	SizeOfHeapReserve  uint64
	SizeOfHeapCommit   uint64

	LoaderFlags uint32

	NumberOfRvaAndSizes uint32
	DataDirectory       []DataDirectory
}

// DataDir returns the directory at the given index, or an empty directory
// if the optional header has fewer than index+1 directories.
func (o *OptionalHeader) DataDir(index int) DataDirectory {
	if index < 0 || index >= len(o.DataDirectory) {
		return DataDirectory{}
	}
	return o.DataDirectory[index]
}

func parseFileHeader(r *binio.Reader) (*FileHeader, error) {
	buf, err := r.ReadBytes(fileHeaderSizeBytes)
	if err != nil {
		return nil, err
	}

	h := &FileHeader{}
	if err := struc.UnpackWithOptions(bytes.NewReader(buf), h, strucOpts); err != nil {
		return nil, errs.At(errs.BadImage, r.AbsolutePosition()-fileHeaderSizeBytes, "failed to unpack COFF file header", err)
	}
	return h, nil
}

func (h *FileHeader) writeTo(w *binio.Writer) error {
	pooled := binio.RentWriter()
	defer pooled.Release()

	if err := struc.PackWithOptions(pooled, h, strucOpts); err != nil {
		return errs.Plain(errs.BadImage, "failed to pack COFF file header", err)
	}
	return w.WriteBytes(pooled.Bytes())
}

func parseOptionalHeader(r *binio.Reader, size uint16) (*OptionalHeader, error) {
	start := r.AbsolutePosition()

	magic, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	o := &OptionalHeader{Magic: magic}

	switch magic {
	case pe32Magic:
		o.Is64 = false
	case pe32PlusMagic:
		o.Is64 = true
	default:
		return nil, errs.At(errs.BadImage, start, "unrecognized optional header magic", nil)
	}

	var err2 error
	read8 := func() uint8 { v, e := r.ReadU8(); if e != nil { err2 = e }; return v }
	read16 := func() uint16 { v, e := r.ReadU16(); if e != nil { err2 = e }; return v }
	read32 := func() uint32 { v, e := r.ReadU32(); if e != nil { err2 = e }; return v }
	read64 := func() uint64 { v, e := r.ReadU64(); if e != nil { err2 = e }; return v }
	readNat := func() uint64 {
		if o.Is64 {
			return read64()
		}
		return uint64(read32())
	}

	o.MajorLinkerVersion = read8()
	o.MinorLinkerVersion = read8()
	o.SizeOfCode = read32()
	o.SizeOfInitializedData = read32()
	o.SizeOfUninitializedData = read32()
	o.AddressOfEntryPoint = read32()
	o.BaseOfCode = read32()
	if !o.Is64 {
		o.BaseOfData = read32()
	}
	o.ImageBase = readNat()
	o.SectionAlignment = read32()
	o.FileAlignment = read32()
	o.MajorOperatingSystemVersion = read16()
	o.MinorOperatingSystemVersion = read16()
	o.MajorImageVersion = read16()
	o.MinorImageVersion = read16()
	o.MajorSubsystemVersion = read16()
	o.MinorSubsystemVersion = read16()
	o.Win32VersionValue = read32()
	o.SizeOfImage = read32()
	o.SizeOfHeaders = read32()
	o.CheckSum = read32()
	o.Subsystem = read16()
	o.DllCharacteristics = read16()
	o.SizeOfStackReserve = readNat()
	o.SizeOfStackCommit = readNat()
	o.SizeOfHeapReserve = readNat()
	o.SizeOfHeapCommit = readNat()
	o.LoaderFlags = read32()
	o.NumberOfRvaAndSizes = read32()

	if err2 != nil {
		return nil, err2
	}

	o.DataDirectory = make([]DataDirectory, o.NumberOfRvaAndSizes)
	for i := range o.DataDirectory {
		rva, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		sz, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		o.DataDirectory[i] = DataDirectory{RVA: rva, Size: sz}
	}

	// The remaining declared bytes of the optional header (if any, e.g. a
	// nonstandard linker writing fewer/more directories than it declared in
	// SizeOfOptionalHeader) are not ours to interpret; the caller seeks past
	// them using FileHeader.SizeOfOptionalHeader.
	_ = size

	return o, nil
}

func (o *OptionalHeader) writeTo(w *binio.Writer) error {
	write8 := func(v uint8) error { return w.WriteU8(v) }
	write16 := func(v uint16) error { return w.WriteU16(v) }
	write32 := func(v uint32) error { return w.WriteU32(v) }
	write64 := func(v uint64) error { return w.WriteU64(v) }
	writeNat := func(v uint64) error {
		if o.Is64 {
			return write64(v)
		}
		return write32(uint32(v))
	}

	fields := []func() error{
		func() error { return write16(o.Magic) },
		func() error { return write8(o.MajorLinkerVersion) },
		func() error { return write8(o.MinorLinkerVersion) },
		func() error { return write32(o.SizeOfCode) },
		func() error { return write32(o.SizeOfInitializedData) },
		func() error { return write32(o.SizeOfUninitializedData) },
		func() error { return write32(o.AddressOfEntryPoint) },
		func() error { return write32(o.BaseOfCode) },
	}
	for _, f := range fields {
		if err := f(); err != nil {
			return err
		}
	}

	if !o.Is64 {
		if err := write32(o.BaseOfData); err != nil {
			return err
		}
	}

	rest := []func() error{
		func() error { return writeNat(o.ImageBase) },
		func() error { return write32(o.SectionAlignment) },
		func() error { return write32(o.FileAlignment) },
		func() error { return write16(o.MajorOperatingSystemVersion) },
		func() error { return write16(o.MinorOperatingSystemVersion) },
		func() error { return write16(o.MajorImageVersion) },
		func() error { return write16(o.MinorImageVersion) },
		func() error { return write16(o.MajorSubsystemVersion) },
		func() error { return write16(o.MinorSubsystemVersion) },
		func() error { return write32(o.Win32VersionValue) },
		func() error { return write32(o.SizeOfImage) },
		func() error { return write32(o.SizeOfHeaders) },
		func() error { return write32(o.CheckSum) },
		func() error { return write16(o.Subsystem) },
		func() error { return write16(o.DllCharacteristics) },
		func() error { return writeNat(o.SizeOfStackReserve) },
		func() error { return writeNat(o.SizeOfStackCommit) },
		func() error { return writeNat(o.SizeOfHeapReserve) },
		func() error { return writeNat(o.SizeOfHeapCommit) },
		func() error { return write32(o.LoaderFlags) },
		func() error { return write32(o.NumberOfRvaAndSizes) },
	}
	for _, f := range rest {
		if err := f(); err != nil {
			return err
		}
	}

	for _, dd := range o.DataDirectory {
		if err := write32(dd.RVA); err != nil {
			return err
		}
		if err := write32(dd.Size); err != nil {
			return err
		}
	}

	return nil
}

// SizeBytes returns the on-wire size of this optional header, including its
// data directories.
func (o *OptionalHeader) SizeBytes() uint32 {
	base := uint32(2 + 1 + 1 + 4*5) // magic..BaseOfCode
	if !o.Is64 {
		base += 4 // BaseOfData
	}
	natSize := uint32(4)
	if o.Is64 {
		natSize = 8
	}
	base += natSize           // ImageBase
	base += 4 + 4             // section/file alignment
	base += 2 * 6             // OS/Image/Subsystem versions
	base += 4                 // Win32VersionValue
	base += 4 + 4 + 4         // SizeOfImage, SizeOfHeaders, CheckSum
	base += 2 + 2             // Subsystem, DllCharacteristics
	base += natSize * 4       // stack/heap reserve/commit
	base += 4 + 4             // LoaderFlags, NumberOfRvaAndSizes
	base += uint32(len(o.DataDirectory)) * 8
	return base
}
