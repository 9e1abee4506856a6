package metadata

import (
	"bytes"
	"testing"

	"github.com/davejbax/corepe/binio"
)

// buildModuleOnlyStream constructs a minimal "#~" stream with a single
// Module row and no other tables present, the shape of a trivial
// hello-world managed assembly.
func buildModuleOnlyStream(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := binio.NewWriter(&buf)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("building fixture: %v", err)
		}
	}

	must(w.WriteU32(0))                  // reserved
	must(w.WriteU8(2))                   // major
	must(w.WriteU8(0))                   // minor
	must(w.WriteU8(0))                   // heap sizes: all narrow
	must(w.WriteU8(0))                   // reserved
	must(w.WriteU64(1 << uint(Module)))  // valid mask: only Module
	must(w.WriteU64(0))                  // sorted mask

	must(w.WriteU32(1)) // Module row count

	// Module row: Generation(u16) Name(u16) Mvid(u16) EncId(u16) EncBaseId(u16)
	must(w.WriteU16(0))
	must(w.WriteU16(1)) // Name -> string heap offset 1
	must(w.WriteU16(1)) // Mvid -> GUID heap index 1
	must(w.WriteU16(0))
	must(w.WriteU16(0))

	return buf.Bytes()
}

func TestParseTableStreamModuleOnly(t *testing.T) {
	ts, err := parseTableStream(buildModuleOnlyStream(t))
	if err != nil {
		t.Fatalf("parseTableStream: %v", err)
	}

	if ts.MajorVersion != 2 || ts.MinorVersion != 0 {
		t.Errorf("version = %d.%d, want 2.0", ts.MajorVersion, ts.MinorVersion)
	}
	if ts.ValidMask != 1<<uint(Module) {
		t.Errorf("ValidMask = 0x%x, want 0x%x", ts.ValidMask, uint64(1)<<uint(Module))
	}
	if ts.RowCounts[Module] != 1 {
		t.Fatalf("RowCounts[Module] = %d, want 1", ts.RowCounts[Module])
	}

	row, ok := ts.RowByRID(Module, 1)
	if !ok {
		t.Fatal("RowByRID(Module, 1) = false, want true")
	}
	if row.U16("Generation") != 0 {
		t.Errorf("Generation = %d, want 0", row.U16("Generation"))
	}
	if row.StringIndex("Name") != 1 {
		t.Errorf("Name offset = %d, want 1", row.StringIndex("Name"))
	}
	if row.GUIDIndex("Mvid") != 1 {
		t.Errorf("Mvid index = %d, want 1", row.GUIDIndex("Mvid"))
	}

	if _, ok := ts.RowByRID(Module, 2); ok {
		t.Error("RowByRID(Module, 2) = true, want false (out of range)")
	}
	if _, ok := ts.RowByRID(TypeDef, 1); ok {
		t.Error("RowByRID(TypeDef, 1) = true, want false (no TypeDef rows)")
	}
}

func TestParseTableStreamPreservesRawExtra(t *testing.T) {
	var buf bytes.Buffer
	w := binio.NewWriter(&buf)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("building fixture: %v", err)
		}
	}

	must(w.WriteU32(0))
	must(w.WriteU8(2))
	must(w.WriteU8(0))
	must(w.WriteU8(byte(heapExtraData))) // heap extra data flag set
	must(w.WriteU8(0))
	must(w.WriteU64(0)) // no tables valid
	must(w.WriteU64(0))
	must(w.WriteU32(0xDEADBEEF)) // the undocumented extra 4 bytes

	ts, err := parseTableStream(buf.Bytes())
	if err != nil {
		t.Fatalf("parseTableStream: %v", err)
	}

	want := []byte{0xEF, 0xBE, 0xAD, 0xDE}
	if len(ts.RawExtra) != 4 {
		t.Fatalf("RawExtra = % x, want 4 bytes", ts.RawExtra)
	}
	for i := range want {
		if ts.RawExtra[i] != want[i] {
			t.Fatalf("RawExtra = % x, want % x", ts.RawExtra, want)
		}
	}
}
