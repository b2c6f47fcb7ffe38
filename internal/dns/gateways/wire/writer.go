package wire

import "encoding/binary"

// writer appends big-endian fields to a fixed MaxMessageSize buffer. Once a
// write does not fit, overflow is set and every later write is ignored.
type writer struct {
	buf      [MaxMessageSize]byte
	off      int
	overflow bool
}

func newWriter() *writer {
	return &writer{}
}

func (w *writer) reserve(n int) []byte {
	if w.overflow || w.off+n > len(w.buf) {
		w.overflow = true
		return nil
	}
	b := w.buf[w.off : w.off+n]
	w.off += n
	return b
}

func (w *writer) uint16(v uint16) {
	if b := w.reserve(2); b != nil {
		binary.BigEndian.PutUint16(b, v)
	}
}

func (w *writer) uint32(v uint32) {
	if b := w.reserve(4); b != nil {
		binary.BigEndian.PutUint32(b, v)
	}
}

func (w *writer) bytes(p []byte) {
	if b := w.reserve(len(p)); b != nil {
		copy(b, p)
	}
}

func (w *writer) result() []byte {
	out := make([]byte, w.off)
	copy(out, w.buf[:w.off])
	return out
}
