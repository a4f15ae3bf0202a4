package packet

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
)

// Writer builds a server packet. All multi-byte writes are little-endian.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

func NewWriterWithOpcode(opcode byte) *Writer {
	w := &Writer{buf: make([]byte, 0, 64)}
	w.WriteC(opcode)
	return w
}

// WriteC writes 1 byte.
func (w *Writer) WriteC(v byte) {
	w.buf = append(w.buf, v)
}

// WriteH writes 2 bytes little-endian.
func (w *Writer) WriteH(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// WriteD writes 4 bytes little-endian (signed or unsigned via cast).
func (w *Writer) WriteD(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

// WriteDU writes 4 bytes little-endian unsigned.
func (w *Writer) WriteDU(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteFixedH writes v ×FixedScale as a signed 16-bit value, saturating.
func (w *Writer) WriteFixedH(v float32) {
	f := fixed(v)
	f = math32.Max(math32.Min(f, math.MaxInt16), math.MinInt16)
	w.WriteH(uint16(int16(f)))
}

// WriteFixedD writes v ×FixedScale as a signed 32-bit value, saturating.
func (w *Writer) WriteFixedD(v float32) {
	f := fixed(v)
	switch {
	case f >= math.MaxInt32:
		w.WriteD(math.MaxInt32)
	case f <= math.MinInt32:
		w.WriteD(math.MinInt32)
	default:
		w.WriteD(int32(f))
	}
}

// fixed scales and rounds half away from zero. NaN becomes 0.
func fixed(v float32) float32 {
	if math32.IsNaN(v) {
		return 0
	}
	f := v * FixedScale
	if f < 0 {
		return -math32.Floor(-f + 0.5)
	}
	return math32.Floor(f + 0.5)
}

// WriteS writes a null-terminated UTF-8 string.
func (w *Writer) WriteS(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0) // null terminator
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the packet content.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the current length.
func (w *Writer) Len() int {
	return len(w.buf)
}
