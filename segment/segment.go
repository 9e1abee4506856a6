// Package segment implements the universal "chunk of bytes at a (file
// offset, RVA) pair" abstraction shared by the PE section table and the
// metadata heaps: a closed set of capability implementations (raw,
// composite, padding, patched) plus a two-phase offset-assignment and
// emission walk.
package segment

import (
	"io"

	"github.com/davejbax/corepe/binio"
	"github.com/davejbax/corepe/errs"
)

// OffsetParams carries the inputs to [Segment.UpdateOffsets]: the new
// absolute file offset and RVA this segment (and its children) should be
// relocated to, plus the alignment its parent wants children padded to.
type OffsetParams struct {
	NewFileOffset uint64
	NewRVA        uint32
	ParentAlign   uint32
}

// Segment is the capability interface every chunk of a rebuildable image
// implements. It is deliberately small and closed: raw bytes, a composite of
// children, a zero-fill padding wrapper, and a post-assign patch wrapper are
// the only variants.
type Segment interface {
	// PhysicalSize is the number of bytes this segment actually contributes
	// when written.
	PhysicalSize() uint32
	// VirtualSize is always >= PhysicalSize; the gap is zero-filled at load.
	VirtualSize() uint32
	// FileOffset and RVA report this segment's current position, valid only
	// after UpdateOffsets has been called (directly or via a parent).
	FileOffset() uint64
	RVA() uint32
	// UpdateOffsets relocates this segment (and recursively, any children)
	// to the given parameters.
	UpdateOffsets(params OffsetParams)
	// Write serializes this segment's physical bytes (not the virtual
	// padding gap) to w.
	Write(w *binio.Writer) error
}

// Raw is a segment that owns a fixed byte slice. Its virtual size may
// exceed its physical size; the difference is zero-filled by wrapping it in
// a [Composite] alongside a [Padding], or by setting VirtSize directly for a
// segment whose children don't exist (e.g. a BSS-like section).
type Raw struct {
	Data     []byte
	VirtSize uint32 // if zero, defaults to len(Data)

	fileOffset uint64
	rva        uint32
}

var _ Segment = (*Raw)(nil)

func NewRaw(data []byte) *Raw {
	return &Raw{Data: data}
}

func (s *Raw) PhysicalSize() uint32 { return uint32(len(s.Data)) }

func (s *Raw) VirtualSize() uint32 {
	if s.VirtSize > s.PhysicalSize() {
		return s.VirtSize
	}
	return s.PhysicalSize()
}

func (s *Raw) FileOffset() uint64 { return s.fileOffset }
func (s *Raw) RVA() uint32        { return s.rva }

func (s *Raw) UpdateOffsets(params OffsetParams) {
	s.fileOffset = params.NewFileOffset
	s.rva = params.NewRVA
}

func (s *Raw) Write(w *binio.Writer) error {
	return w.WriteBytes(s.Data)
}

// Padding is a pure zero-fill segment: physical size 0, virtual size Size.
// It models the gap between a section's raw data and its (larger) virtual
// size, and inter-section alignment gaps.
type Padding struct {
	Size uint32

	fileOffset uint64
	rva        uint32
}

var _ Segment = (*Padding)(nil)

func NewPadding(size uint32) *Padding { return &Padding{Size: size} }

func (s *Padding) PhysicalSize() uint32 { return 0 }
func (s *Padding) VirtualSize() uint32  { return s.Size }
func (s *Padding) FileOffset() uint64   { return s.fileOffset }
func (s *Padding) RVA() uint32          { return s.rva }

func (s *Padding) UpdateOffsets(params OffsetParams) {
	s.fileOffset = params.NewFileOffset
	s.rva = params.NewRVA
}

func (s *Padding) Write(w *binio.Writer) error { return nil }

// Composite is an ordered sequence of child segments. After UpdateOffsets,
// every child's FileOffset/RVA is derivable from the parent's plus the
// accumulated sizes (and per-child alignment) of its preceding siblings.
type Composite struct {
	Children []Segment

	fileOffset uint64
	rva        uint32
}

var _ Segment = (*Composite)(nil)

func NewComposite(children ...Segment) *Composite {
	return &Composite{Children: children}
}

func (s *Composite) PhysicalSize() uint32 {
	var total uint32
	for _, c := range s.Children {
		total += c.PhysicalSize()
	}
	return total
}

func (s *Composite) VirtualSize() uint32 {
	var total uint32
	for _, c := range s.Children {
		total += c.VirtualSize()
	}
	return total
}

func (s *Composite) FileOffset() uint64 { return s.fileOffset }
func (s *Composite) RVA() uint32        { return s.rva }

// UpdateOffsets assigns this composite's own offset, then walks children in
// order, each starting immediately after the previous one's virtual extent,
// rounded up to ParentAlign (so the virtual-size gap of one child becomes a
// real gap before the next, and every child lands on an aligned boundary).
// The file-offset cursor advances by the same aligned virtual extent as the
// RVA cursor: a child's physical bytes are a prefix of that extent, and the
// remainder is the zero-fill gap that keeps both cursors in lockstep with
// their virtual layout.
func (s *Composite) UpdateOffsets(params OffsetParams) {
	s.fileOffset = params.NewFileOffset
	s.rva = params.NewRVA

	fileOffset := params.NewFileOffset
	rva := params.NewRVA

	for _, c := range s.Children {
		c.UpdateOffsets(OffsetParams{
			NewFileOffset: fileOffset,
			NewRVA:        rva,
			ParentAlign:   params.ParentAlign,
		})
		extent := alignUp32(c.VirtualSize(), params.ParentAlign)
		fileOffset += uint64(extent)
		rva += extent
	}
}

// alignUp32 rounds v up to the next multiple of align; align == 0 means no
// alignment is applied.
func alignUp32(v, align uint32) uint32 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

func (s *Composite) Write(w *binio.Writer) error {
	for _, c := range s.Children {
		if err := c.Write(w); err != nil {
			return err
		}
	}
	return nil
}

// Patch is a single post-assign edit applied after a [Patched]'s base
// segment has written itself: either a literal byte replacement, or a
// reference patch computed lazily from the final, assigned offsets (e.g. a
// relative displacement that's only known once both ends have a home).
type Patch struct {
	Offset int64 // offset within the base segment's physical bytes
	Bytes  []byte
	Resolve func() ([]byte, error) // if set, takes precedence over Bytes
}

// Patched wraps a base [Segment] with edits applied after the base writes
// itself, enabling post-serialization fixups for values only known after
// offset assignment (e.g. IAT displacements, PC-relative LEA operands).
type Patched struct {
	Base    Segment
	Patches []Patch
}

var _ Segment = (*Patched)(nil)

func NewPatched(base Segment, patches ...Patch) *Patched {
	return &Patched{Base: base, Patches: patches}
}

func (s *Patched) PhysicalSize() uint32          { return s.Base.PhysicalSize() }
func (s *Patched) VirtualSize() uint32           { return s.Base.VirtualSize() }
func (s *Patched) FileOffset() uint64            { return s.Base.FileOffset() }
func (s *Patched) RVA() uint32                   { return s.Base.RVA() }
func (s *Patched) UpdateOffsets(p OffsetParams) { s.Base.UpdateOffsets(p) }

func (s *Patched) Write(w *binio.Writer) error {
	pooled := binio.RentWriter()
	defer pooled.Release()

	baseWriter := binio.NewWriter(pooled)
	if err := s.Base.Write(baseWriter); err != nil {
		return err
	}

	buf := append([]byte(nil), pooled.Bytes()...)

	for _, patch := range s.Patches {
		edit := patch.Bytes
		if patch.Resolve != nil {
			resolved, err := patch.Resolve()
			if err != nil {
				return err
			}
			edit = resolved
		}

		if patch.Offset < 0 || patch.Offset+int64(len(edit)) > int64(len(buf)) {
			return errs.At(errs.InvariantViolation, patch.Offset, "patch offset out of range of base segment", nil)
		}
		copy(buf[patch.Offset:], edit)
	}

	return w.WriteBytes(buf)
}

// WriteAll performs the emit phase of the two-phase rebuild over an
// already-offset-assigned segment tree, writing it to w.
func WriteAll(w io.Writer, root Segment) (int64, error) {
	writer := binio.NewWriter(w)
	if err := root.Write(writer); err != nil {
		return writer.BytesWritten(), err
	}
	return writer.BytesWritten(), nil
}
