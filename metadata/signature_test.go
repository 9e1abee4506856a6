package metadata

import "testing"

func TestDecodeFieldSignaturePrimitive(t *testing.T) {
	// FIELD I4 -- a field of type int32.
	blob := []byte{fieldSigPrefix, byte(ElementI4)}
	sig, err := DecodeFieldSignature(blob)
	if err != nil {
		t.Fatalf("DecodeFieldSignature: %v", err)
	}
	if sig.Type.Elem != ElementI4 {
		t.Errorf("Type.Elem = %v, want ElementI4", sig.Type.Elem)
	}
	if len(sig.CustomMods) != 0 {
		t.Errorf("CustomMods = %v, want none", sig.CustomMods)
	}
}

func TestDecodeMethodSignatureVoidNoArgs(t *testing.T) {
	// HASTHIS, 0 params, RetType VOID.
	blob := []byte{byte(0x20), 0x00, byte(ElementVoid)}
	sig, err := DecodeMethodSignature(blob)
	if err != nil {
		t.Fatalf("DecodeMethodSignature: %v", err)
	}
	if !sig.HasThis {
		t.Error("HasThis = false, want true")
	}
	if sig.Generic {
		t.Error("Generic = true, want false")
	}
	if len(sig.Params) != 0 {
		t.Errorf("Params = %v, want none", sig.Params)
	}
	if sig.RetType.Elem != ElementVoid {
		t.Errorf("RetType.Elem = %v, want ElementVoid", sig.RetType.Elem)
	}
	if sig.SentinelIndex != -1 {
		t.Errorf("SentinelIndex = %d, want -1", sig.SentinelIndex)
	}
}

func TestDecodeMethodSignatureWithParams(t *testing.T) {
	// Default calling convention (0x00), 2 params, RetType I4, params (STRING, OBJECT).
	blob := []byte{0x00, 0x02, byte(ElementI4), byte(ElementString), byte(ElementObject)}
	sig, err := DecodeMethodSignature(blob)
	if err != nil {
		t.Fatalf("DecodeMethodSignature: %v", err)
	}
	if len(sig.Params) != 2 {
		t.Fatalf("len(Params) = %d, want 2", len(sig.Params))
	}
	if sig.Params[0].Elem != ElementString || sig.Params[1].Elem != ElementObject {
		t.Errorf("Params = %v, %v, want STRING, OBJECT", sig.Params[0].Elem, sig.Params[1].Elem)
	}
}

func TestDecodeTypeSpecSZArray(t *testing.T) {
	// SZARRAY of I4.
	blob := []byte{byte(ElementSZArray), byte(ElementI4)}
	typ, err := DecodeTypeSpecSignature(blob)
	if err != nil {
		t.Fatalf("DecodeTypeSpecSignature: %v", err)
	}
	if typ.Elem != ElementSZArray {
		t.Fatalf("Elem = %v, want ElementSZArray", typ.Elem)
	}
	if typ.Child == nil || typ.Child.Elem != ElementI4 {
		t.Errorf("Child = %v, want I4", typ.Child)
	}
}

func TestDecodeTypeSpecArrayWithBounds(t *testing.T) {
	// ARRAY of I4, rank 2, one explicit size (3), one lower bound (-1,
	// zig-zag encoded as (2*1)|1 = 3).
	blob := []byte{
		byte(ElementArray), byte(ElementI4),
		0x02,       // rank
		0x01, 0x03, // one size, value 3
		0x01, 0x03, // one lower bound, zig-zag encoded -1
	}
	typ, err := DecodeTypeSpecSignature(blob)
	if err != nil {
		t.Fatalf("DecodeTypeSpecSignature: %v", err)
	}
	if typ.Elem != ElementArray {
		t.Fatalf("Elem = %v, want ElementArray", typ.Elem)
	}
	if typ.Child == nil || typ.Child.Elem != ElementI4 {
		t.Errorf("Child = %v, want I4", typ.Child)
	}
	if typ.ArrayRank != 2 {
		t.Errorf("ArrayRank = %d, want 2", typ.ArrayRank)
	}
	if len(typ.ArraySizes) != 1 || typ.ArraySizes[0] != 3 {
		t.Errorf("ArraySizes = %v, want [3]", typ.ArraySizes)
	}
	if len(typ.ArrayLowerBounds) != 1 || typ.ArrayLowerBounds[0] != -1 {
		t.Errorf("ArrayLowerBounds = %v, want [-1]", typ.ArrayLowerBounds)
	}
}

func TestDecodeTypeSpecFnPtr(t *testing.T) {
	// FNPTR to a default-convention method taking one I4 param, returning VOID.
	blob := []byte{byte(ElementFnPtr), 0x00, 0x01, byte(ElementVoid), byte(ElementI4)}
	typ, err := DecodeTypeSpecSignature(blob)
	if err != nil {
		t.Fatalf("DecodeTypeSpecSignature: %v", err)
	}
	if typ.Elem != ElementFnPtr {
		t.Fatalf("Elem = %v, want ElementFnPtr", typ.Elem)
	}
	if typ.Method == nil {
		t.Fatal("Method = nil, want non-nil")
	}
	if len(typ.Method.Params) != 1 || typ.Method.Params[0].Elem != ElementI4 {
		t.Errorf("Method.Params = %v, want [I4]", typ.Method.Params)
	}
	if typ.Method.RetType.Elem != ElementVoid {
		t.Errorf("Method.RetType.Elem = %v, want ElementVoid", typ.Method.RetType.Elem)
	}
}

func TestDecodeTypeSpecClassWithTypeToken(t *testing.T) {
	// CLASS with a TypeDefOrRef coded index pointing at TypeRef RID 3,
	// tag 1 (TypeRef is codedTypeDefOrRef's second target).
	raw, err := encodeCodedIndex(codedTypeDefOrRef, codedIndex{Table: TypeRef, RID: 3})
	if err != nil {
		t.Fatalf("encodeCodedIndex: %v", err)
	}
	blob := append([]byte{byte(ElementClass)}, encodeCompressedForTest(raw)...)

	typ, err := DecodeTypeSpecSignature(blob)
	if err != nil {
		t.Fatalf("DecodeTypeSpecSignature: %v", err)
	}
	if typ.TypeToken.Table != TypeRef || typ.TypeToken.RID != 3 {
		t.Errorf("TypeToken = %+v, want {TypeRef 3}", typ.TypeToken)
	}
}

func TestDecodeGenericInstSignature(t *testing.T) {
	raw, err := encodeCodedIndex(codedTypeDefOrRef, codedIndex{Table: TypeDef, RID: 1})
	if err != nil {
		t.Fatalf("encodeCodedIndex: %v", err)
	}
	blob := []byte{genericInstSigPrefix, 0x02} // 2 args
	blob = append(blob, byte(ElementClass))
	blob = append(blob, encodeCompressedForTest(raw)...)
	blob = append(blob, byte(ElementI4))

	sig, err := DecodeGenericInstSignature(blob)
	if err != nil {
		t.Fatalf("DecodeGenericInstSignature: %v", err)
	}
	if len(sig.Args) != 2 {
		t.Fatalf("len(Args) = %d, want 2", len(sig.Args))
	}
	if sig.Args[0].TypeToken.Table != TypeDef || sig.Args[0].TypeToken.RID != 1 {
		t.Errorf("Args[0].TypeToken = %+v, want {TypeDef 1}", sig.Args[0].TypeToken)
	}
	if sig.Args[1].Elem != ElementI4 {
		t.Errorf("Args[1].Elem = %v, want ElementI4", sig.Args[1].Elem)
	}
}

func TestDecodeTypeSpecGenericInst(t *testing.T) {
	// A TypeSpec representing a generic type instantiation, e.g. List<int>:
	// GENERICINST CLASS <coded-index> <argCount> <args...>
	raw, err := encodeCodedIndex(codedTypeDefOrRef, codedIndex{Table: TypeDef, RID: 9})
	if err != nil {
		t.Fatalf("encodeCodedIndex: %v", err)
	}
	blob := []byte{byte(ElementGenericInst), byte(ElementClass)}
	blob = append(blob, encodeCompressedForTest(raw)...)
	blob = append(blob, 0x01) // 1 generic argument
	blob = append(blob, byte(ElementI4))

	typ, err := DecodeTypeSpecSignature(blob)
	if err != nil {
		t.Fatalf("DecodeTypeSpecSignature: %v", err)
	}
	if typ.Elem != ElementGenericInst {
		t.Fatalf("Elem = %v, want ElementGenericInst", typ.Elem)
	}
	if typ.Child == nil || typ.Child.TypeToken.Table != TypeDef || typ.Child.TypeToken.RID != 9 {
		t.Errorf("Child.TypeToken = %+v, want {TypeDef 9}", typ.Child)
	}
	if len(typ.GenericArgs) != 1 || typ.GenericArgs[0].Elem != ElementI4 {
		t.Errorf("GenericArgs = %v, want [I4]", typ.GenericArgs)
	}
}

func TestDecodeFieldSignatureWithCustomMod(t *testing.T) {
	raw, err := encodeCodedIndex(codedTypeDefOrRef, codedIndex{Table: TypeRef, RID: 2})
	if err != nil {
		t.Fatalf("encodeCodedIndex: %v", err)
	}
	blob := []byte{fieldSigPrefix, byte(ElementCModOpt)}
	blob = append(blob, encodeCompressedForTest(raw)...)
	blob = append(blob, byte(ElementI4))

	sig, err := DecodeFieldSignature(blob)
	if err != nil {
		t.Fatalf("DecodeFieldSignature: %v", err)
	}
	if len(sig.CustomMods) != 1 {
		t.Fatalf("len(CustomMods) = %d, want 1", len(sig.CustomMods))
	}
	if sig.CustomMods[0].Required {
		t.Error("CustomMods[0].Required = true, want false (CMOD_OPT)")
	}
	if sig.CustomMods[0].Modifier.Table != TypeRef || sig.CustomMods[0].Modifier.RID != 2 {
		t.Errorf("Modifier = %+v, want {TypeRef 2}", sig.CustomMods[0].Modifier)
	}
	if sig.Type.Elem != ElementI4 {
		t.Errorf("Type.Elem = %v, want ElementI4", sig.Type.Elem)
	}
}

func TestDecodeLocalVarSignature(t *testing.T) {
	blob := []byte{localVarSigPrefix, 0x02, byte(ElementI4), byte(ElementObject)}
	sig, err := DecodeLocalVarSignature(blob)
	if err != nil {
		t.Fatalf("DecodeLocalVarSignature: %v", err)
	}
	if len(sig.Locals) != 2 {
		t.Fatalf("len(Locals) = %d, want 2", len(sig.Locals))
	}
	if sig.Locals[0].Elem != ElementI4 || sig.Locals[1].Elem != ElementObject {
		t.Errorf("Locals = %v, %v, want I4, OBJECT", sig.Locals[0].Elem, sig.Locals[1].Elem)
	}
}

func TestDecodeMethodSignatureVararg(t *testing.T) {
	// Default calling convention, 2 params (I4, then a VARARG sentinel,
	// then STRING), RetType VOID.
	blob := []byte{0x00, 0x03, byte(ElementVoid), byte(ElementI4), byte(ElementSentinel), byte(ElementString)}
	sig, err := DecodeMethodSignature(blob)
	if err != nil {
		t.Fatalf("DecodeMethodSignature: %v", err)
	}
	if len(sig.Params) != 2 {
		t.Fatalf("len(Params) = %d, want 2", len(sig.Params))
	}
	if sig.SentinelIndex != 1 {
		t.Errorf("SentinelIndex = %d, want 1", sig.SentinelIndex)
	}
	if sig.Params[0].Elem != ElementI4 || sig.Params[1].Elem != ElementString {
		t.Errorf("Params = %v, %v, want I4, STRING", sig.Params[0].Elem, sig.Params[1].Elem)
	}
}

// encodeCompressedForTest mirrors binio.Writer.WriteCompressedU32's encoding
// without requiring a full Writer/buffer dance in each test case.
func encodeCompressedForTest(u uint32) []byte {
	switch {
	case u < 0x80:
		return []byte{byte(u)}
	case u < 0x4000:
		return []byte{byte(0x80 | (u >> 8)), byte(u)}
	default:
		return []byte{byte(0xC0 | (u >> 24)), byte(u >> 16), byte(u >> 8), byte(u)}
	}
}
