// Package binio provides the random-access reader and sequential writer
// primitives the PE, metadata, and x86 packages build on: fixed-width reads,
// ECMA-335 compressed integers, and 7-bit (LEB128-style) integers.
package binio

import (
	"encoding/binary"
	"io"

	"github.com/davejbax/corepe/errs"
)

// Reader is random-access over a contiguous byte range with stable offsets.
// Partial reads are errors, not short reads, per the reader contract.
type Reader struct {
	base io.ReaderAt
	size int64
	pos  int64

	// baseOffset is the absolute offset into the original byte range that
	// this Reader's position zero corresponds to. It exists so that
	// forked readers can report offsets relative to the original file,
	// which is what error messages and RVA arithmetic want.
	baseOffset int64
}

// NewReader wraps r, treating it as size bytes starting at absolute offset 0.
func NewReader(r io.ReaderAt, size int64) *Reader {
	return &Reader{base: r, size: size}
}

// NewReaderBytes is a convenience constructor over an in-memory buffer.
func NewReaderBytes(b []byte) *Reader {
	return NewReader(sliceReaderAt(b), int64(len(b)))
}

type sliceReaderAt []byte

func (s sliceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(s)) {
		return 0, io.EOF
	}
	n := copy(p, s[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total number of bytes addressable by this reader.
func (r *Reader) Size() int64 { return r.size }

// Position returns the current read cursor, relative to this reader's start.
func (r *Reader) Position() int64 { return r.pos }

// AbsolutePosition returns the cursor relative to the outermost reader this
// one was forked from, for use in error messages.
func (r *Reader) AbsolutePosition() int64 { return r.baseOffset + r.pos }

// Seek moves the read cursor to an absolute offset within this reader.
func (r *Reader) Seek(offset int64) error {
	if offset < 0 || offset > r.size {
		return errs.At(errs.OutOfBounds, r.baseOffset+offset, "seek past end of reader", nil)
	}
	r.pos = offset
	return nil
}

// Fork returns a cheap sub-reader over [offset, offset+length) of this
// reader, without copying the underlying bytes.
func (r *Reader) Fork(offset, length int64) (*Reader, error) {
	if offset < 0 || length < 0 || offset+length > r.size {
		return nil, errs.At(errs.OutOfBounds, r.baseOffset+offset, "fork range exceeds reader bounds", nil)
	}
	return &Reader{
		base:       io.NewSectionReader(r.base, offset, length),
		size:       length,
		baseOffset: r.baseOffset + offset,
	}, nil
}

func (r *Reader) readAt(buf []byte) error {
	if r.pos+int64(len(buf)) > r.size {
		return errs.At(errs.OutOfBounds, r.baseOffset+r.pos, "read past end of reader", nil)
	}
	n, err := r.base.ReadAt(buf, r.pos)
	if err != nil && !(err == io.EOF && n == len(buf)) {
		return errs.At(errs.OutOfBounds, r.baseOffset+r.pos, "short read", err)
	}
	r.pos += int64(len(buf))
	return nil
}

// ReadBytes reads exactly n bytes and advances the cursor.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := r.readAt(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	var buf [1]byte
	if err := r.readAt(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadU16 reads a little-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	var buf [2]byte
	if err := r.readAt(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	var buf [4]byte
	if err := r.readAt(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadU64 reads a little-endian uint64.
func (r *Reader) ReadU64() (uint64, error) {
	var buf [8]byte
	if err := r.readAt(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadCompressedU32 reads an ECMA-335 §II.23.2 compressed unsigned integer:
// 1, 2, or 4 bytes depending on the top bits of the first byte. Values that
// would require a 5th byte (>= 2^29) are malformed.
func (r *Reader) ReadCompressedU32() (uint32, error) {
	start := r.AbsolutePosition()

	first, err := r.ReadU8()
	if err != nil {
		return 0, err
	}

	switch {
	case first&0x80 == 0:
		return uint32(first), nil
	case first&0xC0 == 0x80:
		second, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		return (uint32(first&0x3F) << 8) | uint32(second), nil
	case first&0xE0 == 0xC0:
		rest, err := r.ReadBytes(3)
		if err != nil {
			return 0, err
		}
		return (uint32(first&0x1F) << 24) | (uint32(rest[0]) << 16) | (uint32(rest[1]) << 8) | uint32(rest[2]), nil
	default:
		return 0, errs.At(errs.MalformedMetadata, start, "compressed integer prefix byte is malformed", nil)
	}
}

// ReadCompressed7BitU32 reads a continuation-bit (LEB128-style) encoded
// unsigned integer, up to 5 bytes.
func (r *Reader) ReadCompressed7BitU32() (uint32, error) {
	var result uint32
	var shift uint
	for i := 0; i < 5; i++ {
		b, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
	return 0, errs.At(errs.MalformedMetadata, r.AbsolutePosition(), "7-bit integer exceeds 5 bytes", nil)
}

// ReadCString reads bytes until a NUL terminator (consumed but not
// returned), for ASCII section/stream names.
func (r *Reader) ReadCString(maxLen int) (string, error) {
	var out []byte
	for i := 0; i < maxLen; i++ {
		b, err := r.ReadU8()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(out), nil
		}
		out = append(out, b)
	}
	return string(out), nil
}
