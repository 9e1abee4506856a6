// Package metadata implements the CLI (ECMA-335) metadata engine layered on
// top of a parsed PE image: the COR20 (CLR) header, the metadata root and
// its heaps, the "#~"/"#-" logical table stream, signature decoding, and
// token resolution.
package metadata

import (
	"github.com/davejbax/corepe/binio"
	"github.com/davejbax/corepe/errs"
)

// bsjbSignature is the "magic" marking the start of a metadata root: read as
// characters, BSJB, after four of the runtime's founding engineers.
const bsjbSignature = 0x424A5342

// COMImageFlags are the bitwise attributes carried in the COR20 header.
type COMImageFlags uint32

const (
	COMImageFlagsILOnly           COMImageFlags = 0x00000001
	COMImageFlags32BitRequired    COMImageFlags = 0x00000002
	COMImageFlagsStrongNameSigned COMImageFlags = 0x00000008
	COMImageFlagsNativeEntrypoint COMImageFlags = 0x00000010
	COMImageFlags32BitPreferred   COMImageFlags = 0x00020000
)

// DataDirectory mirrors pe.DataDirectory but is redeclared here so this
// package doesn't need to import pe for a two-field struct; the two are
// wire-compatible.
type DataDirectory struct {
	RVA  uint32
	Size uint32
}

// COR20Header is the CLI header (the "CLR 2.0 header"), pointed to by data
// directory 14 of the PE optional header.
type COR20Header struct {
	HeaderSize          uint32
	MajorRuntimeVersion uint16
	MinorRuntimeVersion uint16

	MetaData DataDirectory
	Flags    COMImageFlags

	// EntryPointRVAOrToken is a managed metadata token unless
	// COMImageFlagsNativeEntrypoint is set, in which case it's a native RVA.
	EntryPointRVAOrToken uint32

	Resources               DataDirectory
	StrongNameSignature     DataDirectory
	CodeManagerTable        DataDirectory
	VTableFixups            DataDirectory
	ExportAddressTableJumps DataDirectory
	ManagedNativeHeader     DataDirectory
}

const cor20HeaderSizeBytes = 72

func readDataDirectory(r *binio.Reader) (DataDirectory, error) {
	rva, err := r.ReadU32()
	if err != nil {
		return DataDirectory{}, err
	}
	size, err := r.ReadU32()
	if err != nil {
		return DataDirectory{}, err
	}
	return DataDirectory{RVA: rva, Size: size}, nil
}

// ParseCOR20Header reads the CLI header at the reader's current position.
func ParseCOR20Header(r *binio.Reader) (*COR20Header, error) {
	h := &COR20Header{}

	var err error
	if h.HeaderSize, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if h.MajorRuntimeVersion, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if h.MinorRuntimeVersion, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if h.MetaData, err = readDataDirectory(r); err != nil {
		return nil, err
	}
	flags, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	h.Flags = COMImageFlags(flags)
	if h.EntryPointRVAOrToken, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if h.Resources, err = readDataDirectory(r); err != nil {
		return nil, err
	}
	if h.StrongNameSignature, err = readDataDirectory(r); err != nil {
		return nil, err
	}
	if h.CodeManagerTable, err = readDataDirectory(r); err != nil {
		return nil, err
	}
	if h.VTableFixups, err = readDataDirectory(r); err != nil {
		return nil, err
	}
	if h.ExportAddressTableJumps, err = readDataDirectory(r); err != nil {
		return nil, err
	}
	if h.ManagedNativeHeader, err = readDataDirectory(r); err != nil {
		return nil, err
	}

	return h, nil
}

// WriteTo serializes the CLI header.
func (h *COR20Header) WriteTo(w *binio.Writer) error {
	writeDD := func(d DataDirectory) error {
		if err := w.WriteU32(d.RVA); err != nil {
			return err
		}
		return w.WriteU32(d.Size)
	}

	if err := w.WriteU32(h.HeaderSize); err != nil {
		return err
	}
	if err := w.WriteU16(h.MajorRuntimeVersion); err != nil {
		return err
	}
	if err := w.WriteU16(h.MinorRuntimeVersion); err != nil {
		return err
	}
	if err := writeDD(h.MetaData); err != nil {
		return err
	}
	if err := w.WriteU32(uint32(h.Flags)); err != nil {
		return err
	}
	if err := w.WriteU32(h.EntryPointRVAOrToken); err != nil {
		return err
	}
	for _, d := range []DataDirectory{h.Resources, h.StrongNameSignature, h.CodeManagerTable, h.VTableFixups, h.ExportAddressTableJumps, h.ManagedNativeHeader} {
		if err := writeDD(d); err != nil {
			return err
		}
	}
	return nil
}

// StreamHeader names and locates one stream within the metadata root.
type StreamHeader struct {
	Offset uint32 // relative to the start of the metadata root
	Size   uint32
	Name   string
}

// Root is the metadata root: version string plus a set of named streams.
// The four heaps and the logical table stream are parsed eagerly; any other
// stream is retained as raw bytes under its name.
type Root struct {
	MajorVersion uint16
	MinorVersion uint16
	VersionString string

	Streams []StreamHeader

	Strings *StringHeap
	Blob    *BlobHeap
	GUID    *GUIDHeap
	US      *UserStringHeap
	Tables  *TableStream

	// rawStreams holds every stream's bytes by name, including #Strings etc,
	// so callers can get at a stream this package doesn't interpret.
	rawStreams map[string][]byte
}

// RawStream returns the raw bytes of a stream by name, or false if absent.
func (r *Root) RawStream(name string) ([]byte, bool) {
	b, ok := r.rawStreams[name]
	return b, ok
}

// ParseRoot reads a complete metadata root from r, positioned at the start
// of the root (i.e. at the COR20 header's MetaData.RVA, translated to a file
// offset by the caller). Every stream header's Offset field is relative to
// this starting position, not to r's own origin.
func ParseRoot(r *binio.Reader) (*Root, error) {
	rootBase := r.Position()

	sig, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if sig != bsjbSignature {
		return nil, errs.At(errs.BadImage, rootBase, "metadata root signature mismatch, expected BSJB", nil)
	}

	root := &Root{rawStreams: make(map[string][]byte)}

	if root.MajorVersion, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if root.MinorVersion, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if _, err = r.ReadU32(); err != nil { // reserved, must be 0
		return nil, err
	}
	versionLen, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	versionBytes, err := r.ReadBytes(int(versionLen))
	if err != nil {
		return nil, err
	}
	// The version string is NUL-padded to a 4-byte boundary; trim trailing
	// NULs to recover the logical string.
	end := len(versionBytes)
	for end > 0 && versionBytes[end-1] == 0 {
		end--
	}
	root.VersionString = string(versionBytes[:end])

	if _, err = r.ReadU8(); err != nil { // flags, reserved
		return nil, err
	}
	if _, err = r.ReadU8(); err != nil { // padding
		return nil, err
	}
	numStreams, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	for i := uint16(0); i < numStreams; i++ {
		sh := StreamHeader{}
		if sh.Offset, err = r.ReadU32(); err != nil {
			return nil, err
		}
		if sh.Size, err = r.ReadU32(); err != nil {
			return nil, err
		}
		name, err := readPaddedStreamName(r)
		if err != nil {
			return nil, err
		}
		sh.Name = name
		root.Streams = append(root.Streams, sh)

		fork, err := r.Fork(rootBase+int64(sh.Offset), int64(sh.Size))
		if err != nil {
			return nil, err
		}
		rawStream, err := fork.ReadBytes(int(sh.Size))
		if err != nil {
			return nil, err
		}
		root.rawStreams[sh.Name] = rawStream
	}

	if strs, ok := root.rawStreams["#Strings"]; ok {
		root.Strings = newStringHeap(strs)
	} else {
		root.Strings = newStringHeap(nil)
	}
	if blob, ok := root.rawStreams["#Blob"]; ok {
		root.Blob = newBlobHeap(blob)
	} else {
		root.Blob = newBlobHeap(nil)
	}
	if guid, ok := root.rawStreams["#GUID"]; ok {
		root.GUID = newGUIDHeap(guid)
	} else {
		root.GUID = newGUIDHeap(nil)
	}
	if us, ok := root.rawStreams["#US"]; ok {
		root.US = newUserStringHeap(us)
	} else {
		root.US = newUserStringHeap(nil)
	}

	tableBytes, optimized := root.rawStreams["#~"]
	if !optimized {
		tableBytes, optimized = root.rawStreams["#-"]
	}
	if optimized {
		ts, err := parseTableStream(tableBytes)
		if err != nil {
			return nil, err
		}
		root.Tables = ts
	}

	return root, nil
}

func readPaddedStreamName(r *binio.Reader) (string, error) {
	var name []byte
	for {
		b, err := r.ReadU8()
		if err != nil {
			return "", err
		}
		name = append(name, b)
		if b == 0 && len(name)%4 == 0 {
			break
		}
	}
	end := 0
	for end < len(name) && name[end] != 0 {
		end++
	}
	return string(name[:end]), nil
}
