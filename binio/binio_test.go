package binio

import (
	"bytes"
	"testing"
)

func TestCompressedIntegerRoundTrip(t *testing.T) {
	cases := []struct {
		value uint32
		want  []byte
	}{
		{0x03, []byte{0x03}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x80, 0x80}},
		{0x2E57, []byte{0xAE, 0x57}},
		{0x3FFF, []byte{0xBF, 0xFF}},
		{0x4000, []byte{0xC0, 0x00, 0x40, 0x00}},
		{0x1FFFFFFF, []byte{0xDF, 0xFF, 0xFF, 0xFF}},
	}

	for _, tc := range cases {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		if err := w.WriteCompressedU32(tc.value); err != nil {
			t.Fatalf("WriteCompressedU32(0x%x): %v", tc.value, err)
		}
		if !bytes.Equal(buf.Bytes(), tc.want) {
			t.Errorf("WriteCompressedU32(0x%x) = % x, want % x", tc.value, buf.Bytes(), tc.want)
		}

		r := NewReaderBytes(buf.Bytes())
		got, err := r.ReadCompressedU32()
		if err != nil {
			t.Fatalf("ReadCompressedU32 round trip for 0x%x: %v", tc.value, err)
		}
		if got != tc.value {
			t.Errorf("round trip 0x%x: got 0x%x", tc.value, got)
		}
	}
}

func TestCompressedIntegerTooLarge(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteCompressedU32(0x20000000); err == nil {
		t.Fatal("expected error encoding value >= 2^29")
	}
}

func TestCompressed7BitRoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 300, 1 << 20, 0xFFFFFFFF} {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		if err := w.WriteCompressed7BitU32(v); err != nil {
			t.Fatalf("WriteCompressed7BitU32(%d): %v", v, err)
		}

		r := NewReaderBytes(buf.Bytes())
		got, err := r.ReadCompressed7BitU32()
		if err != nil {
			t.Fatalf("ReadCompressed7BitU32(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
	}
}

func TestWriterAlignTo(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteBytes([]byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := w.AlignTo(16); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 16 {
		t.Errorf("expected 16 bytes after align, got %d", buf.Len())
	}
}

func TestReaderFork(t *testing.T) {
	data := []byte("hello, world, this is a forked reader")
	r := NewReaderBytes(data)

	fork, err := r.Fork(7, 5)
	if err != nil {
		t.Fatal(err)
	}

	got, err := fork.ReadBytes(5)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "world" {
		t.Errorf("forked read = %q, want %q", got, "world")
	}

	if _, err := fork.ReadBytes(1); err == nil {
		t.Error("expected OutOfBounds reading past forked range")
	}
}

func TestReaderOutOfBounds(t *testing.T) {
	r := NewReaderBytes([]byte{1, 2, 3})
	if _, err := r.ReadBytes(4); err == nil {
		t.Error("expected error reading past end of reader")
	}
}
