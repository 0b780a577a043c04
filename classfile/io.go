package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// reader decodes big-endian values and remembers the first failure, so
// callers can check once after a run of reads.
type reader struct {
	buf []byte
	off int
	err error
}

func newReader(b []byte) *reader {
	return &reader{buf: b}
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = &FormatError{Offset: r.off, Reason: fmt.Sprintf(format, args...)}
	}
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.fail("need %d bytes, %d left", n, len(r.buf)-r.off)
		return false
	}
	return true
}

func (r *reader) u1() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *reader) u2() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *reader) u4() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

// bytes returns a copy of the next n bytes.
func (r *reader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+n])
	r.off += n
	return out
}

func (r *reader) skip(n int) {
	if r.need(n) {
		r.off += n
	}
}

func (r *reader) done() bool {
	return r.off >= len(r.buf)
}

// expectEnd fails when input is left over.
func (r *reader) expectEnd() {
	if r.err == nil && r.off != len(r.buf) {
		r.fail("%d trailing bytes", len(r.buf)-r.off)
	}
}

// patchU2 overwrites the u2 at off in place.
func (r *reader) patchU2(off int, v uint16) {
	binary.BigEndian.PutUint16(r.buf[off:], v)
}

type writer struct {
	bytes.Buffer
}

func (w *writer) u1(v uint8) {
	w.WriteByte(v)
}

func (w *writer) u2(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func (w *writer) u4(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.Write(b[:])
}
