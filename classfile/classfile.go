// Package classfile reads and writes JVM class files.
//
// Parsing keeps every byte it does not interpret (numeric constants,
// attribute payloads, bytecode), so Parse followed by Bytes reproduces the
// input exactly. RewriteNames walks every site that spells a type name and
// lets a caller substitute new names.
package classfile

const magic = 0xCAFEBABE

// AccessFlags is the access_flags bit set of a class, field or method.
type AccessFlags uint16

const (
	AccPublic       AccessFlags = 0x0001
	AccPrivate      AccessFlags = 0x0002
	AccProtected    AccessFlags = 0x0004
	AccStatic       AccessFlags = 0x0008
	AccFinal        AccessFlags = 0x0010
	AccSuper        AccessFlags = 0x0020
	AccSynchronized AccessFlags = 0x0020
	AccVolatile     AccessFlags = 0x0040
	AccBridge       AccessFlags = 0x0040
	AccTransient    AccessFlags = 0x0080
	AccVarargs      AccessFlags = 0x0080
	AccNative       AccessFlags = 0x0100
	AccInterface    AccessFlags = 0x0200
	AccAbstract     AccessFlags = 0x0400
	AccStrict       AccessFlags = 0x0800
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000
	AccModule       AccessFlags = 0x8000
)

// Has reports whether every bit of flag is set.
func (f AccessFlags) Has(flag AccessFlags) bool {
	return f&flag == flag
}

// Attribute is an attribute_info with its payload kept verbatim.
type Attribute struct {
	Name uint16
	Info []byte
}

// Member is a field_info or method_info.
type Member struct {
	Access     AccessFlags
	Name       uint16
	Descriptor uint16
	Attributes []*Attribute
}

// ClassFile is the structural form of a class file.
type ClassFile struct {
	Minor      uint16
	Major      uint16
	Pool       *ConstantPool
	Access     AccessFlags
	ThisClass  uint16
	SuperClass uint16
	Interfaces []uint16
	Fields     []*Member
	Methods    []*Member
	Attributes []*Attribute
}

// Parse decodes a class file. Errors match ErrMalformed.
func Parse(content []byte) (*ClassFile, error) {
	r := newReader(content)
	if m := r.u4(); r.err == nil && m != magic {
		r.off = 0
		r.fail("bad magic %#x", m)
	}
	cf := &ClassFile{}
	cf.Minor = r.u2()
	cf.Major = r.u2()
	cf.Pool = readPool(r)
	cf.Access = AccessFlags(r.u2())
	cf.ThisClass = r.u2()
	cf.SuperClass = r.u2()
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		cf.Interfaces = append(cf.Interfaces, r.u2())
	}
	cf.Fields = readMembers(r)
	cf.Methods = readMembers(r)
	cf.Attributes = readAttributes(r)
	r.expectEnd()
	if r.err != nil {
		return nil, r.err
	}
	if _, err := cf.Pool.ClassName(cf.ThisClass); err != nil {
		return nil, err
	}
	return cf, nil
}

func readMembers(r *reader) []*Member {
	n := int(r.u2())
	members := make([]*Member, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		m := &Member{
			Access:     AccessFlags(r.u2()),
			Name:       r.u2(),
			Descriptor: r.u2(),
		}
		m.Attributes = readAttributes(r)
		members = append(members, m)
	}
	return members
}

func readAttributes(r *reader) []*Attribute {
	n := int(r.u2())
	attrs := make([]*Attribute, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		a := &Attribute{Name: r.u2()}
		size := r.u4()
		if int64(size) > int64(len(r.buf)-r.off) {
			r.fail("attribute length %d exceeds input", size)
			return attrs
		}
		a.Info = r.bytes(int(size))
		attrs = append(attrs, a)
	}
	return attrs
}

// Bytes encodes the class file.
func (cf *ClassFile) Bytes() ([]byte, error) {
	var w writer
	w.u4(magic)
	w.u2(cf.Minor)
	w.u2(cf.Major)
	cf.Pool.write(&w)
	w.u2(uint16(cf.Access))
	w.u2(cf.ThisClass)
	w.u2(cf.SuperClass)
	w.u2(uint16(len(cf.Interfaces)))
	for _, i := range cf.Interfaces {
		w.u2(i)
	}
	writeMembers(&w, cf.Fields)
	writeMembers(&w, cf.Methods)
	writeAttributes(&w, cf.Attributes)
	return w.Bytes(), nil
}

func writeMembers(w *writer, members []*Member) {
	w.u2(uint16(len(members)))
	for _, m := range members {
		w.u2(uint16(m.Access))
		w.u2(m.Name)
		w.u2(m.Descriptor)
		writeAttributes(w, m.Attributes)
	}
}

func writeAttributes(w *writer, attrs []*Attribute) {
	w.u2(uint16(len(attrs)))
	for _, a := range attrs {
		w.u2(a.Name)
		w.u4(uint32(len(a.Info)))
		w.Write(a.Info)
	}
}

// Name returns the internal name of this class.
func (cf *ClassFile) Name() (string, error) {
	return cf.Pool.ClassName(cf.ThisClass)
}

// SuperName returns the internal name of the superclass, or "" for
// java/lang/Object and module-info.
func (cf *ClassFile) SuperName() (string, error) {
	if cf.SuperClass == 0 {
		return "", nil
	}
	return cf.Pool.ClassName(cf.SuperClass)
}

// InterfaceNames returns the internal names of the direct superinterfaces.
func (cf *ClassFile) InterfaceNames() ([]string, error) {
	names := make([]string, 0, len(cf.Interfaces))
	for _, i := range cf.Interfaces {
		name, err := cf.Pool.ClassName(i)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// Attribute returns the first attribute in attrs with the given name, or
// nil when there is none.
func (cf *ClassFile) Attribute(attrs []*Attribute, name string) (*Attribute, error) {
	for _, a := range attrs {
		n, err := cf.Pool.Utf8(a.Name)
		if err != nil {
			return nil, err
		}
		if n == name {
			return a, nil
		}
	}
	return nil, nil
}

// MemberName returns the name of a field or method.
func (cf *ClassFile) MemberName(m *Member) (string, error) {
	return cf.Pool.Utf8(m.Name)
}

// MemberDescriptor returns the descriptor of a field or method.
func (cf *ClassFile) MemberDescriptor(m *Member) (string, error) {
	return cf.Pool.Utf8(m.Descriptor)
}

// ClassNames decodes an attribute made of a u2 count followed by that many
// Class indexes, such as Exceptions or NestMembers.
func (cf *ClassFile) ClassNames(a *Attribute) ([]string, error) {
	r := newReader(a.Info)
	n := int(r.u2())
	names := make([]string, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		idx := r.u2()
		if r.err != nil {
			break
		}
		name, err := cf.Pool.ClassName(idx)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	r.expectEnd()
	if r.err != nil {
		return nil, r.err
	}
	return names, nil
}

// InnerClass is one entry of the InnerClasses attribute. Zero indexes are
// reported as empty names.
type InnerClass struct {
	Inner  string
	Outer  string
	Simple string
	Access AccessFlags
}

// InnerClasses decodes the InnerClasses attribute of the class, if any.
func (cf *ClassFile) InnerClasses() ([]InnerClass, error) {
	a, err := cf.Attribute(cf.Attributes, "InnerClasses")
	if err != nil || a == nil {
		return nil, err
	}
	r := newReader(a.Info)
	n := int(r.u2())
	out := make([]InnerClass, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		inner, outer, simple, access := r.u2(), r.u2(), r.u2(), AccessFlags(r.u2())
		if r.err != nil {
			break
		}
		ic := InnerClass{Access: access}
		if ic.Inner, err = cf.Pool.ClassName(inner); err != nil {
			return nil, err
		}
		if outer != 0 {
			if ic.Outer, err = cf.Pool.ClassName(outer); err != nil {
				return nil, err
			}
		}
		if simple != 0 {
			if ic.Simple, err = cf.Pool.Utf8(simple); err != nil {
				return nil, err
			}
		}
		out = append(out, ic)
	}
	r.expectEnd()
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}

// ConstantValue returns the constant referenced by a field's
// ConstantValue attribute, or nil when the field has none.
func (cf *ClassFile) ConstantValue(field *Member) (*Constant, error) {
	a, err := cf.Attribute(field.Attributes, "ConstantValue")
	if err != nil || a == nil {
		return nil, err
	}
	if len(a.Info) != 2 {
		return nil, malformed("ConstantValue attribute of %d bytes", len(a.Info))
	}
	return cf.Pool.Get(uint16(a.Info[0])<<8 | uint16(a.Info[1]))
}
