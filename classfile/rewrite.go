package classfile

// NameKind classifies a name site visited by RewriteNames.
type NameKind int

const (
	// InternalName is the value of a Class constant: an internal name such
	// as "pkg/Type$Inner", or an array descriptor such as "[Lpkg/Type;".
	InternalName NameKind = iota
	// Descriptor is a field or method descriptor.
	Descriptor
	// Signature is a generic class, method or field signature.
	Signature
)

func (k NameKind) String() string {
	switch k {
	case InternalName:
		return "internal name"
	case Descriptor:
		return "descriptor"
	case Signature:
		return "signature"
	}
	return "unknown"
}

// NameFunc returns the replacement for a name. Returning value unchanged
// leaves the site alone.
type NameFunc func(kind NameKind, value string) (string, error)

// RewriteNames visits every site that spells a type name: Class constants,
// NameAndType and MethodType descriptors, field and method descriptors,
// Signature attributes, local variable tables, annotations, type
// annotations, annotation defaults and record components, including
// attributes nested in Code and Record.
//
// A replaced name gets its own Utf8 entry. The original entry is never
// modified, so a string literal that happens to share it keeps its value.
// RewriteNames reports whether any site changed.
func (cf *ClassFile) RewriteNames(fn NameFunc) (bool, error) {
	rw := &rewriter{pool: cf.Pool, fn: fn}
	if err := rw.constants(); err != nil {
		return false, err
	}
	for _, members := range [][]*Member{cf.Fields, cf.Methods} {
		for _, m := range members {
			idx, err := rw.utf8(Descriptor, m.Descriptor)
			if err != nil {
				return false, err
			}
			m.Descriptor = idx
			if err := rw.attributes(m.Attributes); err != nil {
				return false, err
			}
		}
	}
	if err := rw.attributes(cf.Attributes); err != nil {
		return false, err
	}
	return rw.changed, nil
}

type rewriter struct {
	pool    *ConstantPool
	fn      NameFunc
	changed bool
}

// utf8 rewrites the Utf8 entry at idx and returns the index to use instead.
func (rw *rewriter) utf8(kind NameKind, idx uint16) (uint16, error) {
	value, err := rw.pool.Utf8(idx)
	if err != nil {
		return 0, err
	}
	out, err := rw.fn(kind, value)
	if err != nil {
		return 0, err
	}
	if out == value {
		return idx, nil
	}
	next, err := rw.pool.AddUtf8(out)
	if err != nil {
		return 0, err
	}
	rw.changed = true
	return next, nil
}

func (rw *rewriter) constants() error {
	// Entries appended while rewriting are already in their final form.
	n := len(rw.pool.entries)
	for i := 1; i < n; i++ {
		c := rw.pool.entries[i]
		if c == nil {
			continue
		}
		var err error
		switch c.Tag {
		case TagClass:
			c.First, err = rw.utf8(InternalName, c.First)
		case TagNameAndType:
			c.Second, err = rw.utf8(Descriptor, c.Second)
		case TagMethodType:
			c.First, err = rw.utf8(Descriptor, c.First)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (rw *rewriter) attributes(attrs []*Attribute) error {
	for _, a := range attrs {
		name, err := rw.pool.Utf8(a.Name)
		if err != nil {
			return err
		}
		if err := rw.attribute(name, a); err != nil {
			return err
		}
	}
	return nil
}

func (rw *rewriter) attribute(name string, a *Attribute) error {
	switch name {
	case "Code":
		code, err := ParseCode(a.Info)
		if err != nil {
			return err
		}
		if err := rw.attributes(code.Attributes); err != nil {
			return err
		}
		a.Info = code.Bytes()
		return nil
	case "Record":
		return rw.record(a)
	}

	r := newReader(a.Info)
	switch name {
	case "Signature":
		rw.patch(r, Signature)
	case "LocalVariableTable", "LocalVariableTypeTable":
		kind := Descriptor
		if name == "LocalVariableTypeTable" {
			kind = Signature
		}
		n := int(r.u2())
		for i := 0; i < n && r.err == nil; i++ {
			r.skip(6) // start_pc, length, name_index
			rw.patch(r, kind)
			r.skip(2) // index
		}
	case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
		rw.annotations(r)
	case "RuntimeVisibleParameterAnnotations", "RuntimeInvisibleParameterAnnotations":
		n := int(r.u1())
		for i := 0; i < n && r.err == nil; i++ {
			rw.annotations(r)
		}
	case "RuntimeVisibleTypeAnnotations", "RuntimeInvisibleTypeAnnotations":
		n := int(r.u2())
		for i := 0; i < n && r.err == nil; i++ {
			rw.typeAnnotation(r)
		}
	case "AnnotationDefault":
		rw.elementValue(r)
	default:
		// Other attributes reference types only through Class constants.
		return nil
	}
	r.expectEnd()
	return r.err
}

// patch rewrites the Utf8 index at the reader position in place.
func (rw *rewriter) patch(r *reader, kind NameKind) {
	off := r.off
	idx := r.u2()
	if r.err != nil {
		return
	}
	next, err := rw.utf8(kind, idx)
	if err != nil {
		r.err = err
		return
	}
	if next != idx {
		r.patchU2(off, next)
	}
}

func (rw *rewriter) annotations(r *reader) {
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		rw.annotation(r)
	}
}

func (rw *rewriter) annotation(r *reader) {
	rw.patch(r, Descriptor)
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		r.skip(2) // element_name_index
		rw.elementValue(r)
	}
}

func (rw *rewriter) elementValue(r *reader) {
	switch tag := r.u1(); tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		r.skip(2)
	case 'e':
		rw.patch(r, Descriptor)
		r.skip(2) // const_name_index
	case 'c':
		rw.patch(r, Descriptor)
	case '@':
		rw.annotation(r)
	case '[':
		n := int(r.u2())
		for i := 0; i < n && r.err == nil; i++ {
			rw.elementValue(r)
		}
	default:
		r.fail("unknown element_value tag %q", tag)
	}
}

func (rw *rewriter) typeAnnotation(r *reader) {
	switch target := r.u1(); {
	case target == 0x00 || target == 0x01: // type_parameter_target
		r.skip(1)
	case target == 0x10: // supertype_target
		r.skip(2)
	case target == 0x11 || target == 0x12: // type_parameter_bound_target
		r.skip(2)
	case target >= 0x13 && target <= 0x15: // empty_target
	case target == 0x16: // formal_parameter_target
		r.skip(1)
	case target == 0x17: // throws_target
		r.skip(2)
	case target == 0x40 || target == 0x41: // localvar_target
		n := int(r.u2())
		r.skip(6 * n)
	case target == 0x42: // catch_target
		r.skip(2)
	case target >= 0x43 && target <= 0x46: // offset_target
		r.skip(2)
	case target >= 0x47 && target <= 0x4B: // type_argument_target
		r.skip(3)
	default:
		r.fail("unknown type annotation target %#x", target)
		return
	}
	pathLen := int(r.u1())
	r.skip(2 * pathLen)
	rw.annotation(r)
}

func (rw *rewriter) record(a *Attribute) error {
	r := newReader(a.Info)
	var w writer
	n := r.u2()
	w.u2(n)
	for i := 0; i < int(n) && r.err == nil; i++ {
		name := r.u2()
		desc := r.u2()
		attrs := readAttributes(r)
		if r.err != nil {
			break
		}
		next, err := rw.utf8(Descriptor, desc)
		if err != nil {
			return err
		}
		if err := rw.attributes(attrs); err != nil {
			return err
		}
		w.u2(name)
		w.u2(next)
		writeAttributes(&w, attrs)
	}
	r.expectEnd()
	if r.err != nil {
		return r.err
	}
	a.Info = w.Bytes()
	return nil
}
