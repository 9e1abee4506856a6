package pe

import (
	"bytes"
	"testing"

	"github.com/davejbax/corepe/binio"
	"github.com/davejbax/corepe/segment"
)

// newMinimalFile builds a tiny, structurally valid PE32 image with a single
// ".text" section, the shape of a trivial hello-world executable.
func newMinimalFile(t *testing.T, payload []byte) *File {
	t.Helper()

	dos := &DosHeader{NextHeaderOffset: 0x80}
	fileHeader := &FileHeader{
		Machine:              ImageFileMachineI386,
		Characteristics:      ImageFileExecutableImage,
		SizeOfOptionalHeader: 0, // recomputed by the test after building the optional header
	}
	optHeader := &OptionalHeader{
		Magic:            pe32Magic,
		Is64:             false,
		SectionAlignment: 0x1000,
		FileAlignment:    0x200,
		ImageBase:        0x400000,
		Subsystem:        3,
		DataDirectory:    make([]DataDirectory, numDataDirectoriesDefault),
	}
	optHeader.NumberOfRvaAndSizes = uint32(len(optHeader.DataDirectory))
	fileHeader.SizeOfOptionalHeader = uint16(optHeader.SizeBytes())

	section := &Section{
		Header: SectionHeader{
			Name:            ".text",
			Characteristics: SectionCntCode | SectionMemExecute | SectionMemRead,
		},
		Contents: segment.NewRaw(payload),
	}
	fileHeader.NumberOfSections = 1

	return &File{
		Dos:            dos,
		FileHeader:     fileHeader,
		OptionalHeader: optHeader,
		Sections:       []*Section{section},
		Mapping:        Unmapped,
	}
}

func TestRebuildAndParseRoundTrip(t *testing.T) {
	payload := []byte{0x90, 0x90, 0xC3} // nop, nop, ret
	f := newMinimalFile(t, payload)

	var buf bytes.Buffer
	if _, err := f.Rebuild(&buf); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	r := binio.NewReaderBytes(buf.Bytes())
	parsed, err := Parse(r, Unmapped)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if parsed.FileHeader.Machine != ImageFileMachineI386 {
		t.Errorf("Machine = 0x%x, want 0x%x", parsed.FileHeader.Machine, ImageFileMachineI386)
	}
	if len(parsed.Sections) != 1 {
		t.Fatalf("len(Sections) = %d, want 1", len(parsed.Sections))
	}

	got := parsed.Sections[0]
	if got.Header.Name != ".text" {
		t.Errorf("section name = %q, want %q", got.Header.Name, ".text")
	}

	raw, ok := got.Contents.(*segment.Raw)
	if !ok {
		t.Fatalf("section contents = %T, want *segment.Raw", got.Contents)
	}
	if !bytes.Equal(raw.Data, payload) {
		t.Errorf("section contents = % x, want % x", raw.Data, payload)
	}
}

func TestGetOffsetFromRVA(t *testing.T) {
	f := newMinimalFile(t, []byte{0x01, 0x02, 0x03, 0x04})
	f.AssignOffsets()

	section := f.Sections[0]
	offset, err := f.GetOffsetFromRVA(section.Header.VirtualAddress + 2)
	if err != nil {
		t.Fatalf("GetOffsetFromRVA: %v", err)
	}
	if want := int64(section.Header.PointerToRawData) + 2; offset != want {
		t.Errorf("GetOffsetFromRVA = 0x%x, want 0x%x", offset, want)
	}

	if _, err := f.GetOffsetFromRVA(0xFFFFFF); err == nil {
		t.Error("GetOffsetFromRVA(out-of-range): want error, got nil")
	}
}

func TestAddRemoveSection(t *testing.T) {
	f := newMinimalFile(t, []byte{0xC3})
	f.AddSection(&Section{
		Header:   SectionHeader{Name: ".data", Characteristics: SectionCntInitializedData | SectionMemRead | SectionMemWrite},
		Contents: segment.NewRaw([]byte{1, 2, 3, 4}),
	})

	if len(f.Sections) != 2 || f.FileHeader.NumberOfSections != 2 {
		t.Fatalf("after AddSection: len=%d, NumberOfSections=%d", len(f.Sections), f.FileHeader.NumberOfSections)
	}

	if !f.RemoveSection(".data") {
		t.Fatal("RemoveSection(.data) = false, want true")
	}
	if len(f.Sections) != 1 || f.FileHeader.NumberOfSections != 1 {
		t.Fatalf("after RemoveSection: len=%d, NumberOfSections=%d", len(f.Sections), f.FileHeader.NumberOfSections)
	}
	if f.RemoveSection(".rsrc") {
		t.Fatal("RemoveSection(.rsrc) = true, want false")
	}
}

func TestParseRejectsBadDosMagic(t *testing.T) {
	data := make([]byte, 64)
	copy(data, []byte{'X', 'X'})
	r := binio.NewReaderBytes(data)
	if _, err := Parse(r, Unmapped); err == nil {
		t.Fatal("Parse with bad DOS magic: want error, got nil")
	}
}
