package metadata

import (
	"github.com/davejbax/corepe/binio"
	"github.com/davejbax/corepe/errs"
	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
)

// StringHeap is the "#Strings" heap: NUL-terminated UTF-8 strings, addressed
// by byte offset. Offset 0 is always the empty string.
type StringHeap struct {
	data []byte
}

func newStringHeap(data []byte) *StringHeap { return &StringHeap{data: data} }

// Get returns the NUL-terminated string starting at offset.
func (h *StringHeap) Get(offset uint32) (string, error) {
	if offset == 0 {
		return "", nil
	}
	if int(offset) >= len(h.data) {
		return "", errs.At(errs.OutOfBounds, int64(offset), "string heap offset out of range", nil)
	}
	r := binio.NewReaderBytes(h.data)
	if err := r.Seek(int64(offset)); err != nil {
		return "", err
	}
	return r.ReadCString(int(r.Size() - r.Position()))
}

// BlobHeap is the "#Blob" heap: length-prefixed (ECMA-335 compressed
// integer) byte blobs, addressed by byte offset. Offset 0 is the empty blob.
type BlobHeap struct {
	data []byte
}

func newBlobHeap(data []byte) *BlobHeap { return &BlobHeap{data: data} }

// Get returns the blob bytes starting at offset, after reading and
// consuming its compressed length prefix.
func (h *BlobHeap) Get(offset uint32) ([]byte, error) {
	if int(offset) >= len(h.data) && offset != 0 {
		return nil, errs.At(errs.OutOfBounds, int64(offset), "blob heap offset out of range", nil)
	}
	r := binio.NewReaderBytes(h.data)
	if err := r.Seek(int64(offset)); err != nil {
		return nil, err
	}
	length, err := r.ReadCompressedU32()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(int(length))
}

// GUIDHeap is the "#GUID" heap: a sequence of 16-byte GUIDs, addressed by a
// 1-based index (index 0 means "no GUID").
type GUIDHeap struct {
	data []byte
}

func newGUIDHeap(data []byte) *GUIDHeap { return &GUIDHeap{data: data} }

// Get returns the GUID at the given 1-based index.
func (h *GUIDHeap) Get(index uint32) (uuid.UUID, error) {
	if index == 0 {
		return uuid.Nil, nil
	}
	offset := (index - 1) * 16
	if int(offset+16) > len(h.data) {
		return uuid.Nil, errs.At(errs.OutOfBounds, int64(offset), "GUID heap index out of range", nil)
	}

	raw := h.data[offset : offset+16]
	// The CLI heap stores GUIDs as little-endian Data1/Data2/Data3 followed
	// by the big-endian Data4 bytes, same layout as Windows GUID structs;
	// uuid.UUID expects pure big-endian, so the first three fields need
	// byte-swapping.
	var swapped [16]byte
	swapped[0], swapped[1], swapped[2], swapped[3] = raw[3], raw[2], raw[1], raw[0]
	swapped[4], swapped[5] = raw[5], raw[4]
	swapped[6], swapped[7] = raw[7], raw[6]
	copy(swapped[8:], raw[8:16])

	id, err := uuid.FromBytes(swapped[:])
	if err != nil {
		return uuid.Nil, errs.At(errs.MalformedMetadata, int64(offset), "malformed GUID heap entry", err)
	}
	return id, nil
}

// UserStringHeap is the "#US" heap: length-prefixed UTF-16LE strings used by
// the ldstr IL instruction, each followed by a single trailing byte
// indicating whether any character requires special handling when the
// runtime re-interns the string.
type UserStringHeap struct {
	data []byte
}

func newUserStringHeap(data []byte) *UserStringHeap { return &UserStringHeap{data: data} }

// Get decodes the user string at offset. The returned bool reports the
// heap's trailing "has special chars" marker byte.
func (h *UserStringHeap) Get(offset uint32) (string, bool, error) {
	if offset == 0 {
		return "", false, nil
	}
	if int(offset) >= len(h.data) {
		return "", false, errs.At(errs.OutOfBounds, int64(offset), "user string heap offset out of range", nil)
	}

	r := binio.NewReaderBytes(h.data)
	if err := r.Seek(int64(offset)); err != nil {
		return "", false, err
	}
	length, err := r.ReadCompressedU32()
	if err != nil {
		return "", false, err
	}
	if length == 0 {
		return "", false, nil
	}

	raw, err := r.ReadBytes(int(length))
	if err != nil {
		return "", false, err
	}

	// The last byte is the special-chars marker, not part of the UTF-16
	// payload.
	utf16Bytes := raw[:len(raw)-1]
	special := raw[len(raw)-1] != 0

	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(utf16Bytes)
	if err != nil {
		return "", false, errs.At(errs.MalformedMetadata, int64(offset), "malformed UTF-16 in user string heap", err)
	}

	return string(decoded), special, nil
}
