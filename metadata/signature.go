package metadata

import (
	"github.com/davejbax/corepe/binio"
)

// ElementType is an ECMA-335 §II.23.1.16 element type byte: the tag driving
// the signature decoder's recursive descent.
type ElementType byte

const (
	ElementEnd          ElementType = 0x00
	ElementVoid         ElementType = 0x01
	ElementBoolean      ElementType = 0x02
	ElementChar         ElementType = 0x03
	ElementI1           ElementType = 0x04
	ElementU1           ElementType = 0x05
	ElementI2           ElementType = 0x06
	ElementU2           ElementType = 0x07
	ElementI4           ElementType = 0x08
	ElementU4           ElementType = 0x09
	ElementI8           ElementType = 0x0a
	ElementU8           ElementType = 0x0b
	ElementR4           ElementType = 0x0c
	ElementR8           ElementType = 0x0d
	ElementString       ElementType = 0x0e
	ElementPtr          ElementType = 0x0f
	ElementByRef        ElementType = 0x10
	ElementValueType    ElementType = 0x11
	ElementClass        ElementType = 0x12
	ElementVar          ElementType = 0x13
	ElementArray        ElementType = 0x14
	ElementGenericInst  ElementType = 0x15
	ElementTypedByRef   ElementType = 0x16
	ElementI            ElementType = 0x18
	ElementU            ElementType = 0x19
	ElementFnPtr        ElementType = 0x1b
	ElementObject       ElementType = 0x1c
	ElementSZArray      ElementType = 0x1d
	ElementMVar         ElementType = 0x1e
	ElementCModReqd     ElementType = 0x1f
	ElementCModOpt      ElementType = 0x20
	ElementInternal     ElementType = 0x21
	ElementSentinel     ElementType = 0x41
	ElementPinned       ElementType = 0x45
)

// primitiveElements are terminal element types: they carry no further
// signature bytes (no coded index, no recursion).
var primitiveElements = map[ElementType]bool{
	ElementVoid: true, ElementBoolean: true, ElementChar: true,
	ElementI1: true, ElementU1: true, ElementI2: true, ElementU2: true,
	ElementI4: true, ElementU4: true, ElementI8: true, ElementU8: true,
	ElementR4: true, ElementR8: true, ElementString: true,
	ElementTypedByRef: true, ElementI: true, ElementU: true,
	ElementObject: true,
}

// Calling-convention flag bits occupying the low nibble/upper bits of a
// method signature's leading byte (ECMA-335 §II.23.2.1).
const (
	sigCallConvMask   = 0x0f
	sigCallConvVararg = 0x05
	sigGeneric        = 0x10
	sigHasThis        = 0x20
	sigExplicitThis   = 0x40
)

// CustomMod is a required or optional custom modifier attached to a type.
type CustomMod struct {
	Required bool
	Modifier codedIndex // TypeDefOrRef
}

// Type is a decoded signature type: either a primitive terminal, or a
// composite (pointer, byref, array, generic instantiation, function
// pointer) built around child Types.
type Type struct {
	Elem ElementType

	CustomMods []CustomMod

	// TypeToken is set for CLASS/VALUETYPE: the TypeDefOrRef coded index.
	TypeToken codedIndex

	// Child is the element type for PTR/BYREF/SZARRAY/PINNED/ARRAY.
	Child *Type

	// Array fields, set for ARRAY.
	ArrayRank        uint32
	ArraySizes       []uint32
	ArrayLowerBounds []int32

	// GenericArgs is set for GENERICINST: the outer type is Child, the
	// instantiation arguments follow.
	GenericArgs []*Type

	// VarOrMVarIndex is set for VAR/MVAR: the generic parameter index.
	VarOrMVarIndex uint32

	// Method is set for FNPTR: the pointed-to method's signature.
	Method *MethodSignature
}

// MethodSignature is a decoded method def/ref (or standalone/method-spec)
// signature.
type MethodSignature struct {
	HasThis           bool
	ExplicitThis      bool
	Generic           bool
	GenericParamCount uint32
	Params            []*Type
	RetType           *Type
	// SentinelIndex is the index in Params before which the VARARG
	// sentinel appears, or -1 if this isn't a vararg signature.
	SentinelIndex int
}

// FieldSignature is a decoded field signature.
type FieldSignature struct {
	CustomMods []CustomMod
	Type       *Type
}

// PropertySignature is a decoded property signature.
type PropertySignature struct {
	HasThis bool
	Params  []*Type
	Type    *Type
}

// LocalVarSignature is a decoded standalone local-variable signature.
type LocalVarSignature struct {
	Locals []*Type
}

// GenericInstSignature is a decoded method-spec (generic method
// instantiation) signature.
type GenericInstSignature struct {
	Args []*Type
}

const (
	fieldSigPrefix    = 0x06
	propertySigPrefix = 0x08
	localVarSigPrefix = 0x07
	genericInstSigPrefix = 0x0a
)

// sigReader wraps a binio.Reader over exactly one blob's bytes, so that a
// decoder which reads past the declared length fails with OutOfBounds
// rather than silently reading into the next blob: decoders must consume
// exactly the declared length.
type sigReader struct {
	r *binio.Reader
}

func newSigReader(blob []byte) *sigReader {
	return &sigReader{r: binio.NewReaderBytes(blob)}
}

// exhausted reports whether every byte of the blob has been consumed.
func (s *sigReader) exhausted() bool { return s.r.Position() == s.r.Size() }

// DecodeFieldSignature decodes a field signature blob.
func DecodeFieldSignature(blob []byte) (*FieldSignature, error) {
	s := newSigReader(blob)
	lead, err := s.r.ReadU8()
	if err != nil {
		return nil, err
	}
	if lead != fieldSigPrefix {
		return nil, malformedf("field signature has wrong leading byte 0x%x", lead)
	}
	mods, err := decodeCustomMods(s)
	if err != nil {
		return nil, err
	}
	typ, err := decodeType(s)
	if err != nil {
		return nil, err
	}
	if !s.exhausted() {
		return nil, malformedf("field signature under/over-consumed its blob")
	}
	return &FieldSignature{CustomMods: mods, Type: typ}, nil
}

// DecodeMethodSignature decodes a method def/ref signature blob.
func DecodeMethodSignature(blob []byte) (*MethodSignature, error) {
	s := newSigReader(blob)
	sig, err := decodeMethodSignature(s)
	if err != nil {
		return nil, err
	}
	if !s.exhausted() {
		return nil, malformedf("method signature under/over-consumed its blob")
	}
	return sig, nil
}

func decodeMethodSignature(s *sigReader) (*MethodSignature, error) {
	lead, err := s.r.ReadU8()
	if err != nil {
		return nil, err
	}

	sig := &MethodSignature{
		HasThis:      lead&sigHasThis != 0,
		ExplicitThis: lead&sigExplicitThis != 0,
		Generic:      lead&sigGeneric != 0,
	}

	if sig.Generic {
		count, err := s.r.ReadCompressedU32()
		if err != nil {
			return nil, err
		}
		sig.GenericParamCount = count
	}

	paramCount, err := s.r.ReadCompressedU32()
	if err != nil {
		return nil, err
	}

	retType, err := decodeType(s)
	if err != nil {
		return nil, err
	}
	sig.RetType = retType

	sig.SentinelIndex = -1
	sig.Params = make([]*Type, 0, paramCount)
	for i := uint32(0); i < paramCount; i++ {
		b, err := s.r.ReadU8()
		if err != nil {
			return nil, err
		}
		if ElementType(b) == ElementSentinel {
			sig.SentinelIndex = len(sig.Params)
			continue
		}
		if err := s.r.Seek(s.r.Position() - 1); err != nil {
			return nil, err
		}
		t, err := decodeType(s)
		if err != nil {
			return nil, err
		}
		sig.Params = append(sig.Params, t)
	}

	return sig, nil
}

// DecodePropertySignature decodes a property signature blob.
func DecodePropertySignature(blob []byte) (*PropertySignature, error) {
	s := newSigReader(blob)
	lead, err := s.r.ReadU8()
	if err != nil {
		return nil, err
	}
	if lead&0x0f != propertySigPrefix {
		return nil, malformedf("property signature has wrong leading byte 0x%x", lead)
	}
	hasThis := lead&sigHasThis != 0

	count, err := s.r.ReadCompressedU32()
	if err != nil {
		return nil, err
	}
	typ, err := decodeType(s)
	if err != nil {
		return nil, err
	}
	params := make([]*Type, 0, count)
	for i := uint32(0); i < count; i++ {
		p, err := decodeType(s)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	if !s.exhausted() {
		return nil, malformedf("property signature under/over-consumed its blob")
	}
	return &PropertySignature{HasThis: hasThis, Params: params, Type: typ}, nil
}

// DecodeLocalVarSignature decodes a standalone local-variable signature
// blob (used by a method body's StandAloneSig).
func DecodeLocalVarSignature(blob []byte) (*LocalVarSignature, error) {
	s := newSigReader(blob)
	lead, err := s.r.ReadU8()
	if err != nil {
		return nil, err
	}
	if lead != localVarSigPrefix {
		return nil, malformedf("local variable signature has wrong leading byte 0x%x", lead)
	}
	count, err := s.r.ReadCompressedU32()
	if err != nil {
		return nil, err
	}
	locals := make([]*Type, 0, count)
	for i := uint32(0); i < count; i++ {
		t, err := decodeType(s)
		if err != nil {
			return nil, err
		}
		locals = append(locals, t)
	}
	if !s.exhausted() {
		return nil, malformedf("local variable signature under/over-consumed its blob")
	}
	return &LocalVarSignature{Locals: locals}, nil
}

// DecodeTypeSpecSignature decodes a TypeSpec's signature blob: a bare Type.
func DecodeTypeSpecSignature(blob []byte) (*Type, error) {
	s := newSigReader(blob)
	t, err := decodeType(s)
	if err != nil {
		return nil, err
	}
	if !s.exhausted() {
		return nil, malformedf("type spec signature under/over-consumed its blob")
	}
	return t, nil
}

// DecodeGenericInstSignature decodes a MethodSpec's instantiation blob.
func DecodeGenericInstSignature(blob []byte) (*GenericInstSignature, error) {
	s := newSigReader(blob)
	lead, err := s.r.ReadU8()
	if err != nil {
		return nil, err
	}
	if lead != genericInstSigPrefix {
		return nil, malformedf("generic method instantiation has wrong leading byte 0x%x", lead)
	}
	count, err := s.r.ReadCompressedU32()
	if err != nil {
		return nil, err
	}
	args := make([]*Type, 0, count)
	for i := uint32(0); i < count; i++ {
		t, err := decodeType(s)
		if err != nil {
			return nil, err
		}
		args = append(args, t)
	}
	if !s.exhausted() {
		return nil, malformedf("generic method instantiation under/over-consumed its blob")
	}
	return &GenericInstSignature{Args: args}, nil
}

func decodeCustomMods(s *sigReader) ([]CustomMod, error) {
	var mods []CustomMod
	for {
		pos := s.r.Position()
		if pos == s.r.Size() {
			return mods, nil
		}
		b, err := s.r.ReadU8()
		if err != nil {
			return nil, err
		}
		et := ElementType(b)
		if et != ElementCModReqd && et != ElementCModOpt {
			if err := s.r.Seek(pos); err != nil {
				return nil, err
			}
			return mods, nil
		}
		raw, err := s.r.ReadCompressedU32()
		if err != nil {
			return nil, err
		}
		idx, err := decodeCodedIndex(codedTypeDefOrRef, raw)
		if err != nil {
			return nil, err
		}
		mods = append(mods, CustomMod{Required: et == ElementCModReqd, Modifier: idx})
	}
}

// decodeType is the recursive-descent core of every signature decoder: it
// consumes one element-type byte and whatever that type requires.
func decodeType(s *sigReader) (*Type, error) {
	mods, err := decodeCustomMods(s)
	if err != nil {
		return nil, err
	}

	b, err := s.r.ReadU8()
	if err != nil {
		return nil, err
	}
	et := ElementType(b)

	t := &Type{Elem: et, CustomMods: mods}

	switch {
	case primitiveElements[et]:
		return t, nil

	case et == ElementPtr, et == ElementByRef, et == ElementSZArray, et == ElementPinned:
		child, err := decodeType(s)
		if err != nil {
			return nil, err
		}
		t.Child = child
		return t, nil

	case et == ElementValueType, et == ElementClass:
		raw, err := s.r.ReadCompressedU32()
		if err != nil {
			return nil, err
		}
		idx, err := decodeCodedIndex(codedTypeDefOrRef, raw)
		if err != nil {
			return nil, err
		}
		t.TypeToken = idx
		return t, nil

	case et == ElementVar, et == ElementMVar:
		idx, err := s.r.ReadCompressedU32()
		if err != nil {
			return nil, err
		}
		t.VarOrMVarIndex = idx
		return t, nil

	case et == ElementArray:
		elem, err := decodeType(s)
		if err != nil {
			return nil, err
		}
		t.Child = elem

		rank, err := s.r.ReadCompressedU32()
		if err != nil {
			return nil, err
		}
		t.ArrayRank = rank

		numSizes, err := s.r.ReadCompressedU32()
		if err != nil {
			return nil, err
		}
		sizes := make([]uint32, numSizes)
		for i := range sizes {
			v, err := s.r.ReadCompressedU32()
			if err != nil {
				return nil, err
			}
			sizes[i] = v
		}
		t.ArraySizes = sizes

		numLower, err := s.r.ReadCompressedU32()
		if err != nil {
			return nil, err
		}
		lower := make([]int32, numLower)
		for i := range lower {
			v, err := s.r.ReadCompressedU32()
			if err != nil {
				return nil, err
			}
			// Lower bounds are encoded via a zig-zag-like scheme where a
			// signed value is stored by compressing 2*|v| with bit 0 as the
			// sign flag (ECMA-335 §II.23.2.10).
			if v&1 != 0 {
				lower[i] = -int32(v >> 1)
			} else {
				lower[i] = int32(v >> 1)
			}
		}
		t.ArrayLowerBounds = lower

		return t, nil

	case et == ElementGenericInst:
		genKindByte, err := s.r.ReadU8()
		if err != nil {
			return nil, err
		}
		genKind := ElementType(genKindByte)
		if genKind != ElementClass && genKind != ElementValueType {
			return nil, malformedf("generic instantiation's outer type tag 0x%x is neither CLASS nor VALUETYPE", genKindByte)
		}
		rawIdx, err := s.r.ReadCompressedU32()
		if err != nil {
			return nil, err
		}
		outerIdx, err := decodeCodedIndex(codedTypeDefOrRef, rawIdx)
		if err != nil {
			return nil, err
		}
		t.Child = &Type{Elem: genKind, TypeToken: outerIdx}

		argCount, err := s.r.ReadCompressedU32()
		if err != nil {
			return nil, err
		}
		args := make([]*Type, argCount)
		for i := range args {
			a, err := decodeType(s)
			if err != nil {
				return nil, err
			}
			args[i] = a
		}
		t.GenericArgs = args
		return t, nil

	case et == ElementFnPtr:
		m, err := decodeMethodSignature(s)
		if err != nil {
			return nil, err
		}
		t.Method = m
		return t, nil

	default:
		return nil, malformedf("unrecognized element type byte 0x%x", b)
	}
}
