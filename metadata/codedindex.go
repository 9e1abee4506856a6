package metadata

// codedKind identifies one of the coded index families defined in ECMA-335
// §II.24.2.6: a small tag occupying the low bits of the encoded value
// selects which table the remaining bits index into.
type codedKind int

const (
	codedTypeDefOrRef codedKind = iota
	codedHasConstant
	codedHasCustomAttribute
	codedHasFieldMarshal
	codedHasDeclSecurity
	codedMemberRefParent
	codedHasSemantics
	codedMethodDefOrRef
	codedMemberForwarded
	codedImplementation
	codedCustomAttributeType
	codedResolutionScope
	codedTypeOrMethodDef

	codedKindCount
)

// codedTargets lists, for each coded index family, the tables selected by
// tag value 0, 1, 2, ... in order. A zero Table entry at a used tag position
// is valid only for codedCustomAttributeType (tags 0 and 1 are unused).
var codedTargets = [codedKindCount][]Table{
	codedTypeDefOrRef:        {TypeDef, TypeRef, TypeSpec},
	codedHasConstant:         {Field, Param, Property},
	codedHasCustomAttribute: {
		MethodDef, Field, TypeRef, TypeDef, Param, InterfaceImpl, MemberRef,
		Module, DeclSecurity, Property, Event, StandAloneSig, ModuleRef,
		TypeSpec, Assembly, AssemblyRef, File, ExportedType, ManifestResource,
		GenericParam, GenericParamConstraint, MethodSpec,
	},
	codedHasFieldMarshal:  {Field, Param},
	codedHasDeclSecurity:  {TypeDef, MethodDef, Assembly},
	codedMemberRefParent:  {TypeDef, TypeRef, ModuleRef, MethodDef, TypeSpec},
	codedHasSemantics:     {Event, Property},
	codedMethodDefOrRef:   {MethodDef, MemberRef},
	codedMemberForwarded:  {Field, MethodDef},
	codedImplementation:   {File, AssemblyRef, ExportedType},
	codedCustomAttributeType: {
		// Tags 0 and 1 are unused by the standard; MethodDef/MemberRef occupy
		// tags 2 and 3.
		Table(-1), Table(-1), MethodDef, MemberRef,
	},
	codedResolutionScope: {Module, ModuleRef, AssemblyRef, TypeRef},
	codedTypeOrMethodDef: {TypeDef, MethodDef},
}

// tagBits returns the number of low bits reserved for the tag in a coded
// index of the given kind.
func tagBits(kind codedKind) uint {
	n := len(codedTargets[kind])
	bits := uint(0)
	for (1 << bits) < n {
		bits++
	}
	return bits
}

// codedIndex is a decoded (table, rid) pair recovered from a coded index's
// raw wire value.
type codedIndex struct {
	Table Table
	RID   uint32
}

func decodeCodedIndex(kind codedKind, raw uint32) (codedIndex, error) {
	bits := tagBits(kind)
	tag := raw & ((1 << bits) - 1)
	rid := raw >> bits

	targets := codedTargets[kind]
	if int(tag) >= len(targets) || targets[tag] < 0 {
		return codedIndex{}, malformedf("coded index tag %d is not valid for this family", tag)
	}

	return codedIndex{Table: targets[tag], RID: rid}, nil
}

func encodeCodedIndex(kind codedKind, idx codedIndex) (uint32, error) {
	bits := tagBits(kind)
	targets := codedTargets[kind]

	for tag, t := range targets {
		if t == idx.Table {
			return (idx.RID << bits) | uint32(tag), nil
		}
	}
	return 0, malformedf("table %s is not a member of this coded index family", idx.Table)
}
