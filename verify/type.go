package verify

import (
	"strings"
)

// Modifiers are Java access and property flags, with the bit values the
// class file format uses.
type Modifiers uint16

const (
	Public       Modifiers = 0x0001
	Private      Modifiers = 0x0002
	Protected    Modifiers = 0x0004
	Static       Modifiers = 0x0008
	Final        Modifiers = 0x0010
	Synchronized Modifiers = 0x0020
	Volatile     Modifiers = 0x0040
	Bridge       Modifiers = 0x0040
	Transient    Modifiers = 0x0080
	Varargs      Modifiers = 0x0080
	Native       Modifiers = 0x0100
	Interface    Modifiers = 0x0200
	Abstract     Modifiers = 0x0400
	Strict       Modifiers = 0x0800
	Synthetic    Modifiers = 0x1000
	Annotation   Modifiers = 0x2000
	Enum         Modifiers = 0x4000
)

const (
	classMask       = Public | Protected | Private | Abstract | Static | Final | Strict
	constructorMask = Public | Protected | Private
	methodMask      = Public | Protected | Private | Abstract | Static | Final | Synchronized | Native | Strict
	fieldMask       = Public | Protected | Private | Static | Final | Transient | Volatile
)

// Is reports whether every bit of m2 is set.
func (m Modifiers) Is(m2 Modifiers) bool {
	return m&m2 == m2
}

// Visibility returns the access level the modifiers grant.
func (m Modifiers) Visibility() Visibility {
	switch {
	case m.Is(Public):
		return VisibilityPublic
	case m.Is(Protected):
		return VisibilityProtected
	case m.Is(Private):
		return VisibilityPrivate
	}
	return VisibilityPackagePrivate
}

// string renders the modifiers selected by mask in Java source order.
func (m Modifiers) string(mask Modifiers) string {
	m &= mask
	var words []string
	for _, w := range []struct {
		bit  Modifiers
		name string
	}{
		{Public, "public"},
		{Protected, "protected"},
		{Private, "private"},
		{Abstract, "abstract"},
		{Static, "static"},
		{Final, "final"},
		{Transient, "transient"},
		{Volatile, "volatile"},
		{Synchronized, "synchronized"},
		{Native, "native"},
		{Strict, "strictfp"},
	} {
		if m&w.bit != 0 {
			words = append(words, w.name)
		}
	}
	return strings.Join(words, " ")
}

// Visibility is a Java access level, ordered from most to least
// restrictive.
type Visibility int

const (
	VisibilityPrivate Visibility = iota
	VisibilityPackagePrivate
	VisibilityProtected
	VisibilityPublic
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPrivate:
		return "private"
	case VisibilityPackagePrivate:
		return "package private"
	case VisibilityProtected:
		return "protected"
	case VisibilityPublic:
		return "public"
	}
	return "unknown"
}

var primitives = map[string]bool{
	"boolean": true, "byte": true, "char": true, "short": true,
	"int": true, "long": true, "float": true, "double": true, "void": true,
}

// TypeRef names a type: a primitive keyword or a binary class name such as
// "pkg.Outer$Inner", with array dimensions.
type TypeRef struct {
	Name string
	Dims int
}

// Ref returns a TypeRef for a non-array type.
func Ref(name string) TypeRef {
	return TypeRef{Name: name}
}

// IsPrimitive reports whether the element type is a primitive or void.
func (r TypeRef) IsPrimitive() bool {
	return primitives[r.Name]
}

// constantType reports whether a static final field of this type can hold
// a compile-time constant.
func (r TypeRef) constantType() bool {
	return r.Dims == 0 && r.Name != "void" && (r.IsPrimitive() || r.Name == "java.lang.String")
}

func (r TypeRef) String() string {
	return r.Name + strings.Repeat("[]", r.Dims)
}

// MemberKind says which kind of declaration a Member or Diagnostic is about.
type MemberKind int

const (
	KindType MemberKind = iota
	KindConstructor
	KindMethod
	KindField
)

func (k MemberKind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindConstructor:
		return "constructor"
	case KindMethod:
		return "method"
	case KindField:
		return "field"
	}
	return "unknown"
}

// Member is a declared constructor, method or field. Type is the field
// type or method return type. Constant holds the value of a static final
// field initialized by a compile-time constant: bool, uint16 (char), int32,
// int64, float32, float64 or string.
type Member struct {
	Kind       MemberKind
	Name       string
	Modifiers  Modifiers
	Parameters []TypeRef
	Type       TypeRef
	Exceptions []TypeRef
	Constant   any
	Declaring  string
}

// Visibility returns the member's access level.
func (m *Member) Visibility() Visibility {
	return m.Modifiers.Visibility()
}

// IsSynthetic reports whether the compiler generated the member.
func (m *Member) IsSynthetic() bool {
	return m.Modifiers.Is(Synthetic)
}

// IsBridge reports whether the member is a bridge method.
func (m *Member) IsBridge() bool {
	return m.Kind == KindMethod && m.Modifiers.Is(Bridge)
}

// Signature renders the member like java.lang.reflect's toGenericString,
// with erased types.
func (m *Member) Signature() string {
	var b strings.Builder
	mods := m.Modifiers.string(methodMask)
	switch m.Kind {
	case KindConstructor:
		mods = m.Modifiers.string(constructorMask)
	case KindField:
		mods = m.Modifiers.string(fieldMask)
	}
	if mods != "" {
		b.WriteString(mods)
		b.WriteByte(' ')
	}
	switch m.Kind {
	case KindField:
		b.WriteString(m.Type.String())
		b.WriteByte(' ')
		b.WriteString(m.Declaring + "." + m.Name)
		return b.String()
	case KindConstructor:
		b.WriteString(m.Declaring)
	default:
		b.WriteString(m.Type.String())
		b.WriteByte(' ')
		b.WriteString(m.Declaring + "." + m.Name)
	}
	b.WriteByte('(')
	for i, p := range m.Parameters {
		if i > 0 {
			b.WriteByte(',')
		}
		if i == len(m.Parameters)-1 && m.Modifiers.Is(Varargs) && p.Dims > 0 {
			b.WriteString(TypeRef{Name: p.Name, Dims: p.Dims - 1}.String() + "...")
			continue
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	if len(m.Exceptions) > 0 {
		b.WriteString(" throws ")
		b.WriteString(joinRefs(m.Exceptions, ","))
	}
	return b.String()
}

func joinRefs(refs []TypeRef, sep string) string {
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.String()
	}
	return strings.Join(names, sep)
}

// Type is the structural description of a class or interface.
type Type struct {
	Name         string
	Modifiers    Modifiers
	Superclass   string
	Interfaces   []string
	Constructors []*Member
	Methods      []*Member
	Fields       []*Member
}

// Ref returns a TypeRef naming t.
func (t *Type) Ref() TypeRef {
	return Ref(t.Name)
}

// Visibility returns the type's access level.
func (t *Type) Visibility() Visibility {
	return t.Modifiers.Visibility()
}

// Signature renders the type like java.lang.Class's toGenericString.
func (t *Type) Signature() string {
	mods := t.Modifiers
	kind := "class"
	switch {
	case mods.Is(Annotation):
		kind = "@interface"
		mods &^= Abstract
	case mods.Is(Interface):
		kind = "interface"
		mods &^= Abstract
	case mods.Is(Enum):
		kind = "enum"
	}
	words := mods.string(classMask)
	if words != "" {
		words += " "
	}
	return words + kind + " " + t.Name
}

// Constructor returns the constructor taking params.
func (t *Type) Constructor(params []TypeRef) *Member {
	return find(t.Constructors, "", params)
}

// Method returns the method with the given name and parameters, preferring
// a non-bridge method when a bridge shares the parameter list.
func (t *Type) Method(name string, params []TypeRef) *Member {
	return find(t.Methods, name, params)
}

// Field returns the field with the given name.
func (t *Type) Field(name string) *Member {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func find(members []*Member, name string, params []TypeRef) *Member {
	var bridge *Member
	for _, m := range members {
		if name != "" && m.Name != name {
			continue
		}
		if !sameRefs(m.Parameters, params) {
			continue
		}
		if !m.IsBridge() {
			return m
		}
		if bridge == nil {
			bridge = m
		}
	}
	return bridge
}

func sameRefs(a, b []TypeRef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
