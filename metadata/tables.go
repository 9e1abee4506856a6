package metadata

// Table identifies one of the 45 tables of the ECMA-335 logical metadata
// schema. Table indices are fixed by the standard, not assigned by us.
type Table int

const (
	Module Table = iota
	TypeRef
	TypeDef
	FieldPtr
	Field
	MethodPtr
	MethodDef
	ParamPtr
	Param
	InterfaceImpl
	MemberRef
	Constant
	CustomAttribute
	FieldMarshal
	DeclSecurity
	ClassLayout
	FieldLayout
	StandAloneSig
	EventMap
	EventPtr
	Event
	PropertyMap
	PropertyPtr
	Property
	MethodSemantics
	MethodImpl
	ModuleRef
	TypeSpec
	ImplMap
	FieldRVA
	ENCLog
	ENCMap
	Assembly
	AssemblyProcessor
	AssemblyOS
	AssemblyRef
	AssemblyRefProcessor
	AssemblyRefOS
	File
	ExportedType
	ManifestResource
	NestedClass
	GenericParam
	MethodSpec
	GenericParamConstraint

	tableCount // sentinel, not a real table
)

var tableNames = [tableCount]string{
	Module:                 "Module",
	TypeRef:                "TypeRef",
	TypeDef:                "TypeDef",
	FieldPtr:               "FieldPtr",
	Field:                  "Field",
	MethodPtr:              "MethodPtr",
	MethodDef:              "MethodDef",
	ParamPtr:               "ParamPtr",
	Param:                  "Param",
	InterfaceImpl:          "InterfaceImpl",
	MemberRef:              "MemberRef",
	Constant:               "Constant",
	CustomAttribute:        "CustomAttribute",
	FieldMarshal:           "FieldMarshal",
	DeclSecurity:           "DeclSecurity",
	ClassLayout:            "ClassLayout",
	FieldLayout:            "FieldLayout",
	StandAloneSig:          "StandAloneSig",
	EventMap:               "EventMap",
	EventPtr:               "EventPtr",
	Event:                  "Event",
	PropertyMap:            "PropertyMap",
	PropertyPtr:            "PropertyPtr",
	Property:               "Property",
	MethodSemantics:        "MethodSemantics",
	MethodImpl:             "MethodImpl",
	ModuleRef:              "ModuleRef",
	TypeSpec:               "TypeSpec",
	ImplMap:                "ImplMap",
	FieldRVA:               "FieldRVA",
	ENCLog:                 "ENCLog",
	ENCMap:                 "ENCMap",
	Assembly:               "Assembly",
	AssemblyProcessor:      "AssemblyProcessor",
	AssemblyOS:             "AssemblyOS",
	AssemblyRef:            "AssemblyRef",
	AssemblyRefProcessor:   "AssemblyRefProcessor",
	AssemblyRefOS:          "AssemblyRefOS",
	File:                   "File",
	ExportedType:           "ExportedType",
	ManifestResource:       "ManifestResource",
	NestedClass:            "NestedClass",
	GenericParam:           "GenericParam",
	MethodSpec:             "MethodSpec",
	GenericParamConstraint: "GenericParamConstraint",
}

func (t Table) String() string {
	if t < 0 || int(t) >= len(tableNames) || tableNames[t] == "" {
		return "Unknown"
	}
	return tableNames[t]
}

// columnKind classifies a table column for width derivation and decoding.
// This mirrors the column taxonomy every ECMA-335 reader needs: fixed-width
// scalars, simple row references (RID into one table), heap offsets, and
// coded indices (a tag selecting among several target tables).
type columnKind int

const (
	colU16 columnKind = iota
	colU32
	colStringHeap
	colGUIDHeap
	colBlobHeap
	colSimpleIndex // RID into a single table
	colCodedIndex
)

type column struct {
	name   string
	kind   columnKind
	target Table     // for colSimpleIndex
	coded  codedKind // for colCodedIndex
}

type tableSchema struct {
	columns []column
}

// schemas is indexed by Table and lists each table's columns in wire order.
// Rows for a table absent from the heap's MaskValid bit vector simply don't
// appear; the schema is fixed regardless.
var schemas = [tableCount]tableSchema{
	Module: {[]column{
		{name: "Generation", kind: colU16},
		{name: "Name", kind: colStringHeap},
		{name: "Mvid", kind: colGUIDHeap},
		{name: "EncId", kind: colGUIDHeap},
		{name: "EncBaseId", kind: colGUIDHeap},
	}},
	TypeRef: {[]column{
		{name: "ResolutionScope", kind: colCodedIndex, coded: codedResolutionScope},
		{name: "Name", kind: colStringHeap},
		{name: "Namespace", kind: colStringHeap},
	}},
	TypeDef: {[]column{
		{name: "Flags", kind: colU32},
		{name: "Name", kind: colStringHeap},
		{name: "Namespace", kind: colStringHeap},
		{name: "Extends", kind: colCodedIndex, coded: codedTypeDefOrRef},
		{name: "FieldList", kind: colSimpleIndex, target: Field},
		{name: "MethodList", kind: colSimpleIndex, target: MethodDef},
	}},
	FieldPtr: {[]column{
		{name: "Field", kind: colSimpleIndex, target: Field},
	}},
	Field: {[]column{
		{name: "Flags", kind: colU16},
		{name: "Name", kind: colStringHeap},
		{name: "Signature", kind: colBlobHeap},
	}},
	MethodPtr: {[]column{
		{name: "Method", kind: colSimpleIndex, target: MethodDef},
	}},
	MethodDef: {[]column{
		{name: "RVA", kind: colU32},
		{name: "ImplFlags", kind: colU16},
		{name: "Flags", kind: colU16},
		{name: "Name", kind: colStringHeap},
		{name: "Signature", kind: colBlobHeap},
		{name: "ParamList", kind: colSimpleIndex, target: Param},
	}},
	ParamPtr: {[]column{
		{name: "Param", kind: colSimpleIndex, target: Param},
	}},
	Param: {[]column{
		{name: "Flags", kind: colU16},
		{name: "Sequence", kind: colU16},
		{name: "Name", kind: colStringHeap},
	}},
	InterfaceImpl: {[]column{
		{name: "Class", kind: colSimpleIndex, target: TypeDef},
		{name: "Interface", kind: colCodedIndex, coded: codedTypeDefOrRef},
	}},
	MemberRef: {[]column{
		{name: "Class", kind: colCodedIndex, coded: codedMemberRefParent},
		{name: "Name", kind: colStringHeap},
		{name: "Signature", kind: colBlobHeap},
	}},
	Constant: {[]column{
		{name: "Type", kind: colU16},
		{name: "Parent", kind: colCodedIndex, coded: codedHasConstant},
		{name: "Value", kind: colBlobHeap},
	}},
	CustomAttribute: {[]column{
		{name: "Parent", kind: colCodedIndex, coded: codedHasCustomAttribute},
		{name: "Type", kind: colCodedIndex, coded: codedCustomAttributeType},
		{name: "Value", kind: colBlobHeap},
	}},
	FieldMarshal: {[]column{
		{name: "Parent", kind: colCodedIndex, coded: codedHasFieldMarshal},
		{name: "NativeType", kind: colBlobHeap},
	}},
	DeclSecurity: {[]column{
		{name: "Action", kind: colU16},
		{name: "Parent", kind: colCodedIndex, coded: codedHasDeclSecurity},
		{name: "PermissionSet", kind: colBlobHeap},
	}},
	ClassLayout: {[]column{
		{name: "PackingSize", kind: colU16},
		{name: "ClassSize", kind: colU32},
		{name: "Parent", kind: colSimpleIndex, target: TypeDef},
	}},
	FieldLayout: {[]column{
		{name: "Offset", kind: colU32},
		{name: "Field", kind: colSimpleIndex, target: Field},
	}},
	StandAloneSig: {[]column{
		{name: "Signature", kind: colBlobHeap},
	}},
	EventMap: {[]column{
		{name: "Parent", kind: colSimpleIndex, target: TypeDef},
		{name: "EventList", kind: colSimpleIndex, target: Event},
	}},
	EventPtr: {[]column{
		{name: "Event", kind: colSimpleIndex, target: Event},
	}},
	Event: {[]column{
		{name: "EventFlags", kind: colU16},
		{name: "Name", kind: colStringHeap},
		{name: "EventType", kind: colCodedIndex, coded: codedTypeDefOrRef},
	}},
	PropertyMap: {[]column{
		{name: "Parent", kind: colSimpleIndex, target: TypeDef},
		{name: "PropertyList", kind: colSimpleIndex, target: Property},
	}},
	PropertyPtr: {[]column{
		{name: "Property", kind: colSimpleIndex, target: Property},
	}},
	Property: {[]column{
		{name: "Flags", kind: colU16},
		{name: "Name", kind: colStringHeap},
		{name: "Type", kind: colBlobHeap},
	}},
	MethodSemantics: {[]column{
		{name: "Semantics", kind: colU16},
		{name: "Method", kind: colSimpleIndex, target: MethodDef},
		{name: "Association", kind: colCodedIndex, coded: codedHasSemantics},
	}},
	MethodImpl: {[]column{
		{name: "Class", kind: colSimpleIndex, target: TypeDef},
		{name: "MethodBody", kind: colCodedIndex, coded: codedMethodDefOrRef},
		{name: "MethodDeclaration", kind: colCodedIndex, coded: codedMethodDefOrRef},
	}},
	ModuleRef: {[]column{
		{name: "Name", kind: colStringHeap},
	}},
	TypeSpec: {[]column{
		{name: "Signature", kind: colBlobHeap},
	}},
	ImplMap: {[]column{
		{name: "MappingFlags", kind: colU16},
		{name: "MemberForwarded", kind: colCodedIndex, coded: codedMemberForwarded},
		{name: "ImportName", kind: colStringHeap},
		{name: "ImportScope", kind: colSimpleIndex, target: ModuleRef},
	}},
	FieldRVA: {[]column{
		{name: "RVA", kind: colU32},
		{name: "Field", kind: colSimpleIndex, target: Field},
	}},
	ENCLog: {[]column{
		{name: "Token", kind: colU32},
		{name: "FuncCode", kind: colU32},
	}},
	ENCMap: {[]column{
		{name: "Token", kind: colU32},
	}},
	Assembly: {[]column{
		{name: "HashAlgId", kind: colU32},
		{name: "MajorVersion", kind: colU16},
		{name: "MinorVersion", kind: colU16},
		{name: "BuildNumber", kind: colU16},
		{name: "RevisionNumber", kind: colU16},
		{name: "Flags", kind: colU32},
		{name: "PublicKey", kind: colBlobHeap},
		{name: "Name", kind: colStringHeap},
		{name: "Culture", kind: colStringHeap},
	}},
	AssemblyProcessor: {[]column{
		{name: "Processor", kind: colU32},
	}},
	AssemblyOS: {[]column{
		{name: "OSPlatformID", kind: colU32},
		{name: "OSMajorVersion", kind: colU32},
		{name: "OSMinorVersion", kind: colU32},
	}},
	AssemblyRef: {[]column{
		{name: "MajorVersion", kind: colU16},
		{name: "MinorVersion", kind: colU16},
		{name: "BuildNumber", kind: colU16},
		{name: "RevisionNumber", kind: colU16},
		{name: "Flags", kind: colU32},
		{name: "PublicKeyOrToken", kind: colBlobHeap},
		{name: "Name", kind: colStringHeap},
		{name: "Culture", kind: colStringHeap},
		{name: "HashValue", kind: colBlobHeap},
	}},
	AssemblyRefProcessor: {[]column{
		{name: "Processor", kind: colU32},
		{name: "AssemblyRef", kind: colSimpleIndex, target: AssemblyRef},
	}},
	AssemblyRefOS: {[]column{
		{name: "OSPlatformID", kind: colU32},
		{name: "OSMajorVersion", kind: colU32},
		{name: "OSMinorVersion", kind: colU32},
		{name: "AssemblyRef", kind: colSimpleIndex, target: AssemblyRef},
	}},
	File: {[]column{
		{name: "Flags", kind: colU32},
		{name: "Name", kind: colStringHeap},
		{name: "HashValue", kind: colBlobHeap},
	}},
	ExportedType: {[]column{
		{name: "Flags", kind: colU32},
		{name: "TypeDefId", kind: colU32},
		{name: "TypeName", kind: colStringHeap},
		{name: "TypeNamespace", kind: colStringHeap},
		{name: "Implementation", kind: colCodedIndex, coded: codedImplementation},
	}},
	ManifestResource: {[]column{
		{name: "Offset", kind: colU32},
		{name: "Flags", kind: colU32},
		{name: "Name", kind: colStringHeap},
		{name: "Implementation", kind: colCodedIndex, coded: codedImplementation},
	}},
	NestedClass: {[]column{
		{name: "NestedClass", kind: colSimpleIndex, target: TypeDef},
		{name: "EnclosingClass", kind: colSimpleIndex, target: TypeDef},
	}},
	GenericParam: {[]column{
		{name: "Number", kind: colU16},
		{name: "Flags", kind: colU16},
		{name: "Owner", kind: colCodedIndex, coded: codedTypeOrMethodDef},
		{name: "Name", kind: colStringHeap},
	}},
	MethodSpec: {[]column{
		{name: "Method", kind: colCodedIndex, coded: codedMethodDefOrRef},
		{name: "Instantiation", kind: colBlobHeap},
	}},
	GenericParamConstraint: {[]column{
		{name: "Owner", kind: colSimpleIndex, target: GenericParam},
		{name: "Constraint", kind: colCodedIndex, coded: codedTypeDefOrRef},
	}},
}
