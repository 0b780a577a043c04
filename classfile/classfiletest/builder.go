// Package classfiletest assembles class files in memory for tests, so
// relocation and verification can be exercised without a JDK.
package classfiletest

import (
	"encoding/binary"
	"fmt"

	"github.com/c360studio/semshade/classfile"
)

// Builder assembles a ClassFile. Errors are recorded and reported by Build.
type Builder struct {
	cf  *classfile.ClassFile
	err error
}

// NewClass starts a Java 8 class with the given internal name that extends
// java/lang/Object.
func NewClass(name string, access classfile.AccessFlags) *Builder {
	b := &Builder{cf: &classfile.ClassFile{
		Major:  52,
		Pool:   classfile.NewConstantPool(),
		Access: access,
	}}
	b.cf.ThisClass = b.class(name)
	b.cf.SuperClass = b.class("java/lang/Object")
	return b
}

func (b *Builder) keep(idx uint16, err error) uint16 {
	if err != nil && b.err == nil {
		b.err = err
	}
	return idx
}

func (b *Builder) utf8(s string) uint16 {
	return b.keep(b.cf.Pool.AddUtf8(s))
}

func (b *Builder) class(name string) uint16 {
	return b.keep(b.cf.Pool.AddClass(name))
}

// Pool exposes the constant pool for tests that need raw entries.
func (b *Builder) Pool() *classfile.ConstantPool {
	return b.cf.Pool
}

// Super replaces the superclass.
func (b *Builder) Super(name string) *Builder {
	b.cf.SuperClass = b.class(name)
	return b
}

// Interface adds a direct superinterface.
func (b *Builder) Interface(name string) *Builder {
	b.cf.Interfaces = append(b.cf.Interfaces, b.class(name))
	return b
}

// Signature adds a class Signature attribute.
func (b *Builder) Signature(sig string) *Builder {
	b.cf.Attributes = append(b.cf.Attributes, b.u2Attribute("Signature", b.utf8(sig)))
	return b
}

// Annotation adds a RuntimeVisibleAnnotations attribute holding one marker
// annotation per descriptor.
func (b *Builder) Annotation(descs ...string) *Builder {
	b.cf.Attributes = append(b.cf.Attributes, b.annotations(descs))
	return b
}

// InnerClass adds an InnerClasses entry.
func (b *Builder) InnerClass(inner, outer, simple string, access classfile.AccessFlags) *Builder {
	a, err := b.cf.Attribute(b.cf.Attributes, "InnerClasses")
	b.keep(0, err)
	if a == nil {
		a = &classfile.Attribute{Name: b.utf8("InnerClasses"), Info: []byte{0, 0}}
		b.cf.Attributes = append(b.cf.Attributes, a)
	}
	var outerIdx, simpleIdx uint16
	if outer != "" {
		outerIdx = b.class(outer)
	}
	if simple != "" {
		simpleIdx = b.utf8(simple)
	}
	a.Info = appendU2(a.Info, b.class(inner), outerIdx, simpleIdx, uint16(access))
	binary.BigEndian.PutUint16(a.Info, binary.BigEndian.Uint16(a.Info)+1)
	return b
}

// StringConstant adds a String constant and returns its index.
func (b *Builder) StringConstant(s string) uint16 {
	return b.keep(b.cf.Pool.AddString(s))
}

// MemberOption decorates a field or method.
type MemberOption func(b *Builder, m *classfile.Member)

// WithSignature adds a Signature attribute.
func WithSignature(sig string) MemberOption {
	return func(b *Builder, m *classfile.Member) {
		m.Attributes = append(m.Attributes, b.u2Attribute("Signature", b.utf8(sig)))
	}
}

// WithExceptions adds an Exceptions attribute naming internal names.
func WithExceptions(names ...string) MemberOption {
	return func(b *Builder, m *classfile.Member) {
		info := appendU2(nil, uint16(len(names)))
		for _, n := range names {
			info = appendU2(info, b.class(n))
		}
		m.Attributes = append(m.Attributes, &classfile.Attribute{Name: b.utf8("Exceptions"), Info: info})
	}
}

// WithConstant adds a ConstantValue attribute. Supported values are int32,
// int64, float32, float64 and string.
func WithConstant(v any) MemberOption {
	return func(b *Builder, m *classfile.Member) {
		var idx uint16
		switch v := v.(type) {
		case int32:
			idx = b.keep(b.cf.Pool.AddInteger(v))
		case int64:
			idx = b.keep(b.cf.Pool.AddLong(v))
		case float32:
			idx = b.keep(b.cf.Pool.AddFloat(v))
		case float64:
			idx = b.keep(b.cf.Pool.AddDouble(v))
		case string:
			idx = b.keep(b.cf.Pool.AddString(v))
		default:
			b.keep(0, fmt.Errorf("unsupported constant %T", v))
			return
		}
		m.Attributes = append(m.Attributes, b.u2Attribute("ConstantValue", idx))
	}
}

// WithAnnotation adds a RuntimeVisibleAnnotations attribute.
func WithAnnotation(descs ...string) MemberOption {
	return func(b *Builder, m *classfile.Member) {
		m.Attributes = append(m.Attributes, b.annotations(descs))
	}
}

// LocalVariable is one LocalVariableTable entry covering the whole method.
type LocalVariable struct {
	Name       string
	Descriptor string
	Signature  string
	Slot       uint16
}

// WithCode adds a Code attribute with the given bytecode. Locals produce a
// LocalVariableTable and, for entries with a Signature, a
// LocalVariableTypeTable.
func WithCode(maxStack, maxLocals uint16, code []byte, locals ...LocalVariable) MemberOption {
	return func(b *Builder, m *classfile.Member) {
		c := &classfile.Code{MaxStack: maxStack, MaxLocals: maxLocals, Code: code}
		if len(locals) > 0 {
			lvt := appendU2(nil, uint16(len(locals)))
			var typed []LocalVariable
			for _, l := range locals {
				lvt = appendU2(lvt, 0, uint16(len(code)), b.utf8(l.Name), b.utf8(l.Descriptor), l.Slot)
				if l.Signature != "" {
					typed = append(typed, l)
				}
			}
			c.Attributes = append(c.Attributes, &classfile.Attribute{Name: b.utf8("LocalVariableTable"), Info: lvt})
			if len(typed) > 0 {
				lvtt := appendU2(nil, uint16(len(typed)))
				for _, l := range typed {
					lvtt = appendU2(lvtt, 0, uint16(len(code)), b.utf8(l.Name), b.utf8(l.Signature), l.Slot)
				}
				c.Attributes = append(c.Attributes, &classfile.Attribute{Name: b.utf8("LocalVariableTypeTable"), Info: lvtt})
			}
		}
		m.Attributes = append(m.Attributes, &classfile.Attribute{Name: b.utf8("Code"), Info: c.Bytes()})
	}
}

// Field adds a field.
func (b *Builder) Field(access classfile.AccessFlags, name, desc string, opts ...MemberOption) *Builder {
	b.cf.Fields = append(b.cf.Fields, b.member(access, name, desc, opts))
	return b
}

// Method adds a method. Use "<init>" for constructors.
func (b *Builder) Method(access classfile.AccessFlags, name, desc string, opts ...MemberOption) *Builder {
	b.cf.Methods = append(b.cf.Methods, b.member(access, name, desc, opts))
	return b
}

func (b *Builder) member(access classfile.AccessFlags, name, desc string, opts []MemberOption) *classfile.Member {
	m := &classfile.Member{Access: access, Name: b.utf8(name), Descriptor: b.utf8(desc)}
	for _, opt := range opts {
		opt(b, m)
	}
	return m
}

// Ref adds a field or method reference constant and returns its index.
func (b *Builder) Ref(tag classfile.Tag, owner, name, desc string) uint16 {
	return b.keep(b.cf.Pool.AddRef(tag, owner, name, desc))
}

// Build returns the assembled class file.
func (b *Builder) Build() (*classfile.ClassFile, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.cf, nil
}

// Bytes returns the encoded class file.
func (b *Builder) Bytes() ([]byte, error) {
	cf, err := b.Build()
	if err != nil {
		return nil, err
	}
	return cf.Bytes()
}

// MustBytes is Bytes for fixtures; it panics on error.
func (b *Builder) MustBytes() []byte {
	out, err := b.Bytes()
	if err != nil {
		panic(err)
	}
	return out
}

func (b *Builder) u2Attribute(name string, idx uint16) *classfile.Attribute {
	return &classfile.Attribute{Name: b.utf8(name), Info: appendU2(nil, idx)}
}

func (b *Builder) annotations(descs []string) *classfile.Attribute {
	info := appendU2(nil, uint16(len(descs)))
	for _, d := range descs {
		info = appendU2(info, b.utf8(d), 0)
	}
	return &classfile.Attribute{Name: b.utf8("RuntimeVisibleAnnotations"), Info: info}
}

func appendU2(b []byte, vs ...uint16) []byte {
	for _, v := range vs {
		b = binary.BigEndian.AppendUint16(b, v)
	}
	return b
}
