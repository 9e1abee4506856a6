package metadata

import "testing"

func TestCodedIndexRoundTrip(t *testing.T) {
	cases := []struct {
		kind codedKind
		idx  codedIndex
	}{
		{codedTypeDefOrRef, codedIndex{Table: TypeDef, RID: 5}},
		{codedTypeDefOrRef, codedIndex{Table: TypeRef, RID: 1}},
		{codedTypeDefOrRef, codedIndex{Table: TypeSpec, RID: 0}},
		{codedHasCustomAttribute, codedIndex{Table: MethodSpec, RID: 42}},
		{codedCustomAttributeType, codedIndex{Table: MethodDef, RID: 7}},
		{codedCustomAttributeType, codedIndex{Table: MemberRef, RID: 7}},
	}

	for _, tc := range cases {
		raw, err := encodeCodedIndex(tc.kind, tc.idx)
		if err != nil {
			t.Fatalf("encodeCodedIndex(%v): %v", tc.idx, err)
		}
		got, err := decodeCodedIndex(tc.kind, raw)
		if err != nil {
			t.Fatalf("decodeCodedIndex(0x%x): %v", raw, err)
		}
		if got != tc.idx {
			t.Errorf("round trip %+v -> 0x%x -> %+v", tc.idx, raw, got)
		}
	}
}

func TestCodedIndexRejectsUnusedTag(t *testing.T) {
	// Tags 0 and 1 of codedCustomAttributeType are reserved/unused.
	if _, err := decodeCodedIndex(codedCustomAttributeType, 0); err == nil {
		t.Fatal("decodeCodedIndex(tag 0): want error, got nil")
	}
	if _, err := decodeCodedIndex(codedCustomAttributeType, 1); err == nil {
		t.Fatal("decodeCodedIndex(tag 1): want error, got nil")
	}
}

func TestCodedIndexWidthWidensAtBoundary(t *testing.T) {
	// codedTypeDefOrRef has 3 targets, so its tag occupies 2 bits: the
	// index widens to 4 bytes once (rowCount << 2) >= 2^16, i.e. rowCount
	// >= 2^14.
	var rowCounts [tableCount]uint32

	rowCounts[TypeDef] = (1 << 14) - 1
	if w := codedIndexWidth(codedTypeDefOrRef, rowCounts); w != 2 {
		t.Errorf("codedIndexWidth at 2^14-1 rows = %d, want 2", w)
	}

	rowCounts[TypeDef] = 1 << 14
	if w := codedIndexWidth(codedTypeDefOrRef, rowCounts); w != 4 {
		t.Errorf("codedIndexWidth at 2^14 rows = %d, want 4", w)
	}
}

func TestSimpleIndexWidthWidensAtBoundary(t *testing.T) {
	if w := simpleIndexWidth((1 << 16) - 1); w != 2 {
		t.Errorf("simpleIndexWidth(2^16-1) = %d, want 2", w)
	}
	if w := simpleIndexWidth(1 << 16); w != 4 {
		t.Errorf("simpleIndexWidth(2^16) = %d, want 4", w)
	}
}
