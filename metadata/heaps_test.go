package metadata

import "testing"

func TestStringHeapGet(t *testing.T) {
	data := []byte{0x00, 'H', 'i', 0x00, 'B', 'y', 'e', 0x00}
	h := newStringHeap(data)

	if got, err := h.Get(0); err != nil || got != "" {
		t.Fatalf("Get(0) = %q, %v, want empty string", got, err)
	}
	if got, err := h.Get(1); err != nil || got != "Hi" {
		t.Fatalf("Get(1) = %q, %v, want %q", got, err, "Hi")
	}
	if got, err := h.Get(4); err != nil || got != "Bye" {
		t.Fatalf("Get(4) = %q, %v, want %q", got, err, "Bye")
	}
}

func TestBlobHeapGet(t *testing.T) {
	data := []byte{0x00, 0x03, 0xAA, 0xBB, 0xCC}
	h := newBlobHeap(data)

	if got, err := h.Get(0); err != nil || len(got) != 0 {
		t.Fatalf("Get(0) = % x, %v, want empty", got, err)
	}
	got, err := h.Get(1)
	if err != nil {
		t.Fatalf("Get(1): %v", err)
	}
	want := []byte{0xAA, 0xBB, 0xCC}
	if len(got) != len(want) {
		t.Fatalf("Get(1) = % x, want % x", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Get(1) = % x, want % x", got, want)
		}
	}
}

func TestGUIDHeapGetNilAtZero(t *testing.T) {
	h := newGUIDHeap(make([]byte, 16))
	id, err := h.Get(0)
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	if id.String() != "00000000-0000-0000-0000-000000000000" {
		t.Errorf("Get(0) = %s, want nil GUID", id.String())
	}
}

func TestGUIDHeapGetOutOfRange(t *testing.T) {
	h := newGUIDHeap(make([]byte, 16))
	if _, err := h.Get(2); err == nil {
		t.Fatal("Get(2) on a 1-GUID heap: want error, got nil")
	}
}

func TestUserStringHeapGet(t *testing.T) {
	// Compressed length 5 (4 bytes of "H\x00i\x00" UTF-16LE + 1 marker byte).
	data := []byte{0x00, 0x05, 'H', 0x00, 'i', 0x00, 0x00}
	h := newUserStringHeap(data)

	got, special, err := h.Get(1)
	if err != nil {
		t.Fatalf("Get(1): %v", err)
	}
	if got != "Hi" {
		t.Errorf("Get(1) = %q, want %q", got, "Hi")
	}
	if special {
		t.Errorf("Get(1) special = true, want false")
	}
}
