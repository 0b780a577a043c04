package classfile

// ExceptionHandler is one exception_table entry of a Code attribute.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// Code is the decoded payload of a Code attribute. The bytecode itself is
// kept opaque.
type Code struct {
	MaxStack   uint16
	MaxLocals  uint16
	Code       []byte
	Handlers   []ExceptionHandler
	Attributes []*Attribute
}

// ParseCode decodes the payload of a Code attribute.
func ParseCode(info []byte) (*Code, error) {
	r := newReader(info)
	c := &Code{
		MaxStack:  r.u2(),
		MaxLocals: r.u2(),
	}
	size := r.u4()
	if int64(size) > int64(len(info)-r.off) {
		r.fail("code length %d exceeds attribute", size)
		return nil, r.err
	}
	c.Code = r.bytes(int(size))
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		c.Handlers = append(c.Handlers, ExceptionHandler{
			StartPC:   r.u2(),
			EndPC:     r.u2(),
			HandlerPC: r.u2(),
			CatchType: r.u2(),
		})
	}
	c.Attributes = readAttributes(r)
	r.expectEnd()
	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

// Bytes encodes the Code payload.
func (c *Code) Bytes() []byte {
	var w writer
	w.u2(c.MaxStack)
	w.u2(c.MaxLocals)
	w.u4(uint32(len(c.Code)))
	w.Write(c.Code)
	w.u2(uint16(len(c.Handlers)))
	for _, h := range c.Handlers {
		w.u2(h.StartPC)
		w.u2(h.EndPC)
		w.u2(h.HandlerPC)
		w.u2(h.CatchType)
	}
	writeAttributes(&w, c.Attributes)
	return w.Bytes()
}
