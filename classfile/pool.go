package classfile

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tag identifies the kind of a constant pool entry.
type Tag uint8

const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20
)

var tagNames = map[Tag]string{
	TagUtf8:               "Utf8",
	TagInteger:            "Integer",
	TagFloat:              "Float",
	TagLong:               "Long",
	TagDouble:             "Double",
	TagClass:              "Class",
	TagString:             "String",
	TagFieldref:           "Fieldref",
	TagMethodref:          "Methodref",
	TagInterfaceMethodref: "InterfaceMethodref",
	TagNameAndType:        "NameAndType",
	TagMethodHandle:       "MethodHandle",
	TagMethodType:         "MethodType",
	TagDynamic:            "Dynamic",
	TagInvokeDynamic:      "InvokeDynamic",
	TagModule:             "Module",
	TagPackage:            "Package",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// Constant is one constant pool entry. Which fields are meaningful depends
// on Tag:
//
//   - Utf8: Utf8 holds the raw modified UTF-8 bytes
//   - Integer, Float, Long, Double: Raw holds the 4 or 8 payload bytes
//   - Class, String, MethodType, Module, Package: First
//   - Fieldref, Methodref, InterfaceMethodref, NameAndType, Dynamic,
//     InvokeDynamic: First and Second
//   - MethodHandle: Kind and First
type Constant struct {
	Tag    Tag
	Utf8   string
	Raw    []byte
	Kind   uint8
	First  uint16
	Second uint16
}

// Wide reports whether the entry takes two pool slots.
func (c *Constant) Wide() bool {
	return c.Tag == TagLong || c.Tag == TagDouble
}

// Int returns the value of an Integer constant.
func (c *Constant) Int() int32 {
	return int32(binary.BigEndian.Uint32(c.Raw))
}

// Float returns the value of a Float constant.
func (c *Constant) Float() float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(c.Raw))
}

// Long returns the value of a Long constant.
func (c *Constant) Long() int64 {
	return int64(binary.BigEndian.Uint64(c.Raw))
}

// Double returns the value of a Double constant.
func (c *Constant) Double() float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(c.Raw))
}

// ConstantPool is a class file constant pool. Index 0 and the slot after a
// Long or Double are unusable and hold nil.
type ConstantPool struct {
	entries []*Constant
	utf8    map[string]uint16
}

// NewConstantPool returns an empty pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{entries: []*Constant{nil}}
}

// Count is the constant_pool_count as written to the class file.
func (p *ConstantPool) Count() int {
	return len(p.entries)
}

// Get returns the entry at index i.
func (p *ConstantPool) Get(i uint16) (*Constant, error) {
	if i == 0 || int(i) >= len(p.entries) || p.entries[i] == nil {
		return nil, malformed("constant pool index %d out of range", i)
	}
	return p.entries[i], nil
}

func (p *ConstantPool) typed(i uint16, tag Tag) (*Constant, error) {
	c, err := p.Get(i)
	if err != nil {
		return nil, err
	}
	if c.Tag != tag {
		return nil, malformed("constant pool index %d is %s, want %s", i, c.Tag, tag)
	}
	return c, nil
}

// Utf8 returns the Utf8 value at index i.
func (p *ConstantPool) Utf8(i uint16) (string, error) {
	c, err := p.typed(i, TagUtf8)
	if err != nil {
		return "", err
	}
	return c.Utf8, nil
}

// ClassName returns the internal name held by the Class constant at i.
func (p *ConstantPool) ClassName(i uint16) (string, error) {
	c, err := p.typed(i, TagClass)
	if err != nil {
		return "", err
	}
	return p.Utf8(c.First)
}

// Add appends an entry and returns its index.
func (p *ConstantPool) Add(c *Constant) (uint16, error) {
	slots := 1
	if c.Wide() {
		slots = 2
	}
	if len(p.entries)+slots > math.MaxUint16 {
		return 0, ErrPoolOverflow
	}
	p.entries = append(p.entries, c)
	i := uint16(len(p.entries) - 1)
	if c.Wide() {
		p.entries = append(p.entries, nil)
	}
	if c.Tag == TagUtf8 && p.utf8 != nil {
		if _, ok := p.utf8[c.Utf8]; !ok {
			p.utf8[c.Utf8] = i
		}
	}
	return i, nil
}

// AddUtf8 returns the index of a Utf8 entry holding s, appending one when
// the pool has none.
func (p *ConstantPool) AddUtf8(s string) (uint16, error) {
	if len(s) > math.MaxUint16 {
		return 0, fmt.Errorf("utf8 constant of %d bytes: %w", len(s), ErrPoolOverflow)
	}
	if p.utf8 == nil {
		p.utf8 = make(map[string]uint16)
		for i, c := range p.entries {
			if c == nil || c.Tag != TagUtf8 {
				continue
			}
			if _, ok := p.utf8[c.Utf8]; !ok {
				p.utf8[c.Utf8] = uint16(i)
			}
		}
	}
	if i, ok := p.utf8[s]; ok {
		return i, nil
	}
	return p.Add(&Constant{Tag: TagUtf8, Utf8: s})
}

// AddClass appends a Class constant naming the internal name.
func (p *ConstantPool) AddClass(internalName string) (uint16, error) {
	name, err := p.AddUtf8(internalName)
	if err != nil {
		return 0, err
	}
	return p.Add(&Constant{Tag: TagClass, First: name})
}

// AddString appends a String constant.
func (p *ConstantPool) AddString(s string) (uint16, error) {
	v, err := p.AddUtf8(s)
	if err != nil {
		return 0, err
	}
	return p.Add(&Constant{Tag: TagString, First: v})
}

// AddNameAndType appends a NameAndType constant.
func (p *ConstantPool) AddNameAndType(name, descriptor string) (uint16, error) {
	n, err := p.AddUtf8(name)
	if err != nil {
		return 0, err
	}
	d, err := p.AddUtf8(descriptor)
	if err != nil {
		return 0, err
	}
	return p.Add(&Constant{Tag: TagNameAndType, First: n, Second: d})
}

// AddRef appends a Fieldref, Methodref or InterfaceMethodref constant.
func (p *ConstantPool) AddRef(tag Tag, owner, name, descriptor string) (uint16, error) {
	class, err := p.AddClass(owner)
	if err != nil {
		return 0, err
	}
	nat, err := p.AddNameAndType(name, descriptor)
	if err != nil {
		return 0, err
	}
	return p.Add(&Constant{Tag: tag, First: class, Second: nat})
}

// AddInteger appends an Integer constant.
func (p *ConstantPool) AddInteger(v int32) (uint16, error) {
	raw := make([]byte, 4)
	binary.BigEndian.PutUint32(raw, uint32(v))
	return p.Add(&Constant{Tag: TagInteger, Raw: raw})
}

// AddLong appends a Long constant.
func (p *ConstantPool) AddLong(v int64) (uint16, error) {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, uint64(v))
	return p.Add(&Constant{Tag: TagLong, Raw: raw})
}

// AddFloat appends a Float constant.
func (p *ConstantPool) AddFloat(v float32) (uint16, error) {
	raw := make([]byte, 4)
	binary.BigEndian.PutUint32(raw, math.Float32bits(v))
	return p.Add(&Constant{Tag: TagFloat, Raw: raw})
}

// AddDouble appends a Double constant.
func (p *ConstantPool) AddDouble(v float64) (uint16, error) {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, math.Float64bits(v))
	return p.Add(&Constant{Tag: TagDouble, Raw: raw})
}

func readPool(r *reader) *ConstantPool {
	count := int(r.u2())
	if count == 0 {
		r.fail("constant_pool_count is 0")
		return nil
	}
	p := &ConstantPool{entries: make([]*Constant, 1, count)}
	for len(p.entries) < count && r.err == nil {
		c := &Constant{Tag: Tag(r.u1())}
		switch c.Tag {
		case TagUtf8:
			n := int(r.u2())
			c.Utf8 = string(r.bytes(n))
		case TagInteger, TagFloat:
			c.Raw = r.bytes(4)
		case TagLong, TagDouble:
			c.Raw = r.bytes(8)
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			c.First = r.u2()
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType,
			TagDynamic, TagInvokeDynamic:
			c.First = r.u2()
			c.Second = r.u2()
		case TagMethodHandle:
			c.Kind = r.u1()
			c.First = r.u2()
		default:
			r.fail("unknown constant pool tag %d at index %d", uint8(c.Tag), len(p.entries))
			return nil
		}
		p.entries = append(p.entries, c)
		if c.Wide() {
			if len(p.entries) >= count {
				r.fail("wide constant at last pool index %d", len(p.entries)-1)
				return nil
			}
			p.entries = append(p.entries, nil)
		}
	}
	return p
}

func (p *ConstantPool) write(w *writer) {
	w.u2(uint16(len(p.entries)))
	for _, c := range p.entries {
		if c == nil {
			continue
		}
		w.u1(uint8(c.Tag))
		switch c.Tag {
		case TagUtf8:
			w.u2(uint16(len(c.Utf8)))
			w.WriteString(c.Utf8)
		case TagInteger, TagFloat, TagLong, TagDouble:
			w.Write(c.Raw)
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			w.u2(c.First)
		case TagMethodHandle:
			w.u1(c.Kind)
			w.u2(c.First)
		default:
			w.u2(c.First)
			w.u2(c.Second)
		}
	}
}
