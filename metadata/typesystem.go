package metadata

import "sync"

// Primitive identifies one of the CLI's built-in element-type primitives,
// exposed as interned references by [TypeSystem].
type Primitive struct {
	Name string
	Elem ElementType
}

// TypeSystem is a lazy singleton, one per [Root], exposing the built-in
// element-type primitives as interned references. Initialization is
// idempotent: concurrent first-touch from multiple goroutines observes the
// same fully-built table, never a partially-initialized one.
type TypeSystem struct {
	root *Root

	once       sync.Once
	primitives map[ElementType]*Primitive
}

// NewTypeSystem builds (but does not yet populate) a TypeSystem over root.
func NewTypeSystem(root *Root) *TypeSystem {
	return &TypeSystem{root: root}
}

func (ts *TypeSystem) ensureInit() {
	ts.once.Do(func() {
		ts.primitives = map[ElementType]*Primitive{
			ElementVoid:       {Name: "Void", Elem: ElementVoid},
			ElementBoolean:    {Name: "Boolean", Elem: ElementBoolean},
			ElementChar:       {Name: "Char", Elem: ElementChar},
			ElementI1:         {Name: "SByte", Elem: ElementI1},
			ElementU1:         {Name: "Byte", Elem: ElementU1},
			ElementI2:         {Name: "Int16", Elem: ElementI2},
			ElementU2:         {Name: "UInt16", Elem: ElementU2},
			ElementI4:         {Name: "Int32", Elem: ElementI4},
			ElementU4:         {Name: "UInt32", Elem: ElementU4},
			ElementI8:         {Name: "Int64", Elem: ElementI8},
			ElementU8:         {Name: "UInt64", Elem: ElementU8},
			ElementR4:         {Name: "Single", Elem: ElementR4},
			ElementR8:         {Name: "Double", Elem: ElementR8},
			ElementString:     {Name: "String", Elem: ElementString},
			ElementObject:     {Name: "Object", Elem: ElementObject},
			ElementTypedByRef: {Name: "TypedReference", Elem: ElementTypedByRef},
			ElementI:          {Name: "IntPtr", Elem: ElementI},
			ElementU:          {Name: "UIntPtr", Elem: ElementU},
		}
	})
}

// Primitive returns the interned primitive for an element type, or nil if
// et doesn't name one of the CLI's built-in primitives.
func (ts *TypeSystem) Primitive(et ElementType) *Primitive {
	ts.ensureInit()
	return ts.primitives[et]
}

// Void, Boolean, ... are typed convenience accessors for the primitives
// every TypeSystem exposes.
func (ts *TypeSystem) Void() *Primitive         { return ts.Primitive(ElementVoid) }
func (ts *TypeSystem) Boolean() *Primitive      { return ts.Primitive(ElementBoolean) }
func (ts *TypeSystem) Char() *Primitive         { return ts.Primitive(ElementChar) }
func (ts *TypeSystem) SByte() *Primitive        { return ts.Primitive(ElementI1) }
func (ts *TypeSystem) Byte() *Primitive         { return ts.Primitive(ElementU1) }
func (ts *TypeSystem) Int16() *Primitive        { return ts.Primitive(ElementI2) }
func (ts *TypeSystem) UInt16() *Primitive       { return ts.Primitive(ElementU2) }
func (ts *TypeSystem) Int32() *Primitive        { return ts.Primitive(ElementI4) }
func (ts *TypeSystem) UInt32() *Primitive       { return ts.Primitive(ElementU4) }
func (ts *TypeSystem) Int64() *Primitive        { return ts.Primitive(ElementI8) }
func (ts *TypeSystem) UInt64() *Primitive       { return ts.Primitive(ElementU8) }
func (ts *TypeSystem) Single() *Primitive       { return ts.Primitive(ElementR4) }
func (ts *TypeSystem) Double() *Primitive       { return ts.Primitive(ElementR8) }
func (ts *TypeSystem) String() *Primitive       { return ts.Primitive(ElementString) }
func (ts *TypeSystem) Object() *Primitive       { return ts.Primitive(ElementObject) }
func (ts *TypeSystem) TypedByRef() *Primitive   { return ts.Primitive(ElementTypedByRef) }
func (ts *TypeSystem) IntPtr() *Primitive       { return ts.Primitive(ElementI) }
func (ts *TypeSystem) UIntPtr() *Primitive      { return ts.Primitive(ElementU) }
