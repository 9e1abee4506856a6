package binio

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"

	"github.com/davejbax/corepe/errs"
)

// Writer is a sequential, append-only byte sink with explicit alignment,
// plus the compressed-integer writers the metadata engine needs.
type Writer struct {
	w       io.Writer
	written int64
}

// NewWriter wraps w, counting bytes written through it.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// BytesWritten returns the number of bytes written so far.
func (w *Writer) BytesWritten() int64 { return w.written }

// WriteBytes writes p verbatim.
func (w *Writer) WriteBytes(p []byte) error {
	n, err := w.w.Write(p)
	w.written += int64(n)
	if err != nil {
		return errs.Plain(errs.OutOfBounds, "short write", err)
	}
	return nil
}

// WriteU8 writes a single byte.
func (w *Writer) WriteU8(v uint8) error {
	return w.WriteBytes([]byte{v})
}

// WriteU16 writes a little-endian uint16.
func (w *Writer) WriteU16(v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return w.WriteBytes(buf[:])
}

// WriteU32 writes a little-endian uint32.
func (w *Writer) WriteU32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return w.WriteBytes(buf[:])
}

// WriteU64 writes a little-endian uint64.
func (w *Writer) WriteU64(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return w.WriteBytes(buf[:])
}

// WriteZeros writes count zero bytes.
func (w *Writer) WriteZeros(count int) error {
	if count <= 0 {
		return nil
	}
	const chunk = 4096
	buf := make([]byte, min(count, chunk))
	remaining := count
	for remaining > 0 {
		n := min(remaining, len(buf))
		if err := w.WriteBytes(buf[:n]); err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}

// AlignTo zero-pads until BytesWritten() is a multiple of n.
func (w *Writer) AlignTo(n int64) error {
	if n <= 0 {
		return nil
	}
	rem := w.written % n
	if rem == 0 {
		return nil
	}
	return w.WriteZeros(int(n - rem))
}

// WriteCompressedU32 writes u using the ECMA-335 §II.23.2 compressed
// integer encoding. Values >= 2^29 cannot be represented.
func (w *Writer) WriteCompressedU32(u uint32) error {
	switch {
	case u < 0x80:
		return w.WriteU8(uint8(u))
	case u < 0x4000:
		return w.WriteBytes([]byte{byte(0x80 | (u >> 8)), byte(u)})
	case u < 0x20000000:
		return w.WriteBytes([]byte{
			byte(0xC0 | (u >> 24)),
			byte(u >> 16),
			byte(u >> 8),
			byte(u),
		})
	default:
		return errs.Plain(errs.MalformedMetadata, "value too large for compressed integer encoding", nil)
	}
}

// WriteCompressed7BitU32 writes u using continuation-bit (LEB128-style)
// encoding.
func (w *Writer) WriteCompressed7BitU32(u uint32) error {
	for {
		b := byte(u & 0x7F)
		u >>= 7
		if u != 0 {
			b |= 0x80
		}
		if err := w.WriteU8(b); err != nil {
			return err
		}
		if u == 0 {
			return nil
		}
	}
}

// bufferPool backs [PooledWriter]: a reusable *bytes.Buffer pool so callers
// building many small, short-lived segments (e.g. one per metadata row
// during a rebuild) don't churn the allocator.
var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// PooledWriter rents a *bytes.Buffer from a shared pool and returns it on
// Release. It satisfies io.Writer via its embedded buffer.
type PooledWriter struct {
	*bytes.Buffer
}

// RentWriter leases a buffer from the pool. Callers must call Release when
// done; leases are not reentrant on the same logical acquisition path.
func RentWriter() *PooledWriter {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return &PooledWriter{Buffer: buf}
}

// Release returns the buffer to the pool.
func (p *PooledWriter) Release() {
	bufferPool.Put(p.Buffer)
	p.Buffer = nil
}
