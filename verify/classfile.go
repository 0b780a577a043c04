package verify

import (
	"fmt"
	"strings"

	"github.com/c360studio/semshade/classfile"
)

// ParseType extracts the structural description of a class file.
func ParseType(content []byte) (*Type, error) {
	cf, err := classfile.Parse(content)
	if err != nil {
		return nil, err
	}
	return FromClassFile(cf)
}

// FromClassFile extracts the structural description of a parsed class.
// Names are binary names ("pkg.Outer$Inner"). Static initializers are
// skipped. A nested class takes its modifiers from its own InnerClasses
// entry, as reflection does.
func FromClassFile(cf *classfile.ClassFile) (*Type, error) {
	internal, err := cf.Name()
	if err != nil {
		return nil, err
	}
	t := &Type{
		Name:      binaryName(internal),
		Modifiers: Modifiers(cf.Access) &^ Synchronized,
	}

	inner, err := cf.InnerClasses()
	if err != nil {
		return nil, err
	}
	for _, ic := range inner {
		if ic.Inner == internal {
			t.Modifiers = Modifiers(ic.Access)
			break
		}
	}

	super, err := cf.SuperName()
	if err != nil {
		return nil, err
	}
	t.Superclass = binaryName(super)
	ifaces, err := cf.InterfaceNames()
	if err != nil {
		return nil, err
	}
	for _, i := range ifaces {
		t.Interfaces = append(t.Interfaces, binaryName(i))
	}

	for _, m := range cf.Methods {
		member, err := method(cf, t.Name, m)
		if err != nil {
			return nil, err
		}
		switch {
		case member == nil:
		case member.Kind == KindConstructor:
			t.Constructors = append(t.Constructors, member)
		default:
			t.Methods = append(t.Methods, member)
		}
	}
	for _, f := range cf.Fields {
		member, err := field(cf, t.Name, f)
		if err != nil {
			return nil, err
		}
		t.Fields = append(t.Fields, member)
	}
	return t, nil
}

func method(cf *classfile.ClassFile, declaring string, m *classfile.Member) (*Member, error) {
	name, err := cf.MemberName(m)
	if err != nil {
		return nil, err
	}
	if name == "<clinit>" {
		return nil, nil
	}
	desc, err := cf.MemberDescriptor(m)
	if err != nil {
		return nil, err
	}
	params, ret, err := classfile.ParseMethodDescriptor(desc)
	if err != nil {
		return nil, fmt.Errorf("method %s: %w", name, err)
	}
	member := &Member{
		Kind:      KindMethod,
		Name:      name,
		Modifiers: Modifiers(m.Access),
		Type:      typeRef(ret),
		Declaring: declaring,
	}
	if name == "<init>" {
		member.Kind = KindConstructor
		member.Name = declaring
	}
	for _, p := range params {
		member.Parameters = append(member.Parameters, typeRef(p))
	}
	a, err := cf.Attribute(m.Attributes, "Exceptions")
	if err != nil {
		return nil, err
	}
	if a != nil {
		names, err := cf.ClassNames(a)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", name, err)
		}
		for _, n := range names {
			member.Exceptions = append(member.Exceptions, Ref(binaryName(n)))
		}
	}
	return member, nil
}

func field(cf *classfile.ClassFile, declaring string, f *classfile.Member) (*Member, error) {
	name, err := cf.MemberName(f)
	if err != nil {
		return nil, err
	}
	desc, err := cf.MemberDescriptor(f)
	if err != nil {
		return nil, err
	}
	ft, err := classfile.ParseFieldDescriptor(desc)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	member := &Member{
		Kind:      KindField,
		Name:      name,
		Modifiers: Modifiers(f.Access),
		Type:      typeRef(ft),
		Declaring: declaring,
	}
	if !member.Modifiers.Is(Static | Final) {
		return member, nil
	}
	c, err := cf.ConstantValue(f)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	if c != nil {
		if member.Constant, err = constant(cf, ft, c); err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
	}
	return member, nil
}

// constant decodes a ConstantValue entry as the Go value matching the
// field's declared type.
func constant(cf *classfile.ClassFile, ft classfile.FieldType, c *classfile.Constant) (any, error) {
	want := classfile.TagInteger
	switch {
	case ft.Dims > 0:
		return nil, fmt.Errorf("%w: constant on array field", classfile.ErrMalformed)
	case ft.Base == 'J':
		want = classfile.TagLong
	case ft.Base == 'F':
		want = classfile.TagFloat
	case ft.Base == 'D':
		want = classfile.TagDouble
	case ft.Base == 'L' && ft.Class == "java/lang/String":
		want = classfile.TagString
	case ft.Base == 'L':
		return nil, fmt.Errorf("%w: constant on %s field", classfile.ErrMalformed, ft.Class)
	}
	if c.Tag != want {
		return nil, fmt.Errorf("%w: %s constant for %c field", classfile.ErrMalformed, c.Tag, ft.Base)
	}
	switch ft.Base {
	case 'Z':
		return c.Int() != 0, nil
	case 'C':
		return uint16(c.Int()), nil
	case 'B', 'S', 'I':
		return c.Int(), nil
	case 'J':
		return c.Long(), nil
	case 'F':
		return c.Float(), nil
	case 'D':
		return c.Double(), nil
	}
	return cf.Pool.Utf8(c.First)
}

var baseNames = map[byte]string{
	'B': "byte", 'C': "char", 'D': "double", 'F': "float",
	'I': "int", 'J': "long", 'S': "short", 'Z': "boolean", 'V': "void",
}

func typeRef(ft classfile.FieldType) TypeRef {
	if ft.Base == 'L' {
		return TypeRef{Name: binaryName(ft.Class), Dims: ft.Dims}
	}
	return TypeRef{Name: baseNames[ft.Base], Dims: ft.Dims}
}

func binaryName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}
