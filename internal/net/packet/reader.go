package packet

import (
	"encoding/binary"
)

// Reader decodes fields from a client payload whose byte 0 is the opcode.
// Short payloads never fail: a field that runs past the end reads as zero
// and the cursor moves to the end.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: min(1, len(data))}
}

func (r *Reader) Opcode() byte {
	if len(r.data) == 0 {
		return 0
	}
	return r.data[0]
}

// take returns the next n bytes, or nil when fewer remain.
func (r *Reader) take(n int) []byte {
	if r.off+n > len(r.data) {
		r.off = len(r.data)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// ReadC reads one byte.
func (r *Reader) ReadC() byte {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

// ReadH reads a little-endian uint16.
func (r *Reader) ReadH() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

// ReadD reads a little-endian int32.
func (r *Reader) ReadD() int32 {
	if b := r.take(4); b != nil {
		return int32(binary.LittleEndian.Uint32(b))
	}
	return 0
}

func (r *Reader) ReadFixedH() float32 { return float32(int16(r.ReadH())) / FixedScale }
func (r *Reader) ReadFixedD() float32 { return float32(r.ReadD()) / FixedScale }

// ReadS reads a NUL-terminated UTF-8 string. A missing terminator ends the
// string at the end of the payload.
func (r *Reader) ReadS() string {
	rest := r.data[r.off:]
	for i, c := range rest {
		if c == 0 {
			r.off += i + 1
			return string(rest[:i])
		}
	}
	r.off = len(r.data)
	return string(rest)
}

// ReadBytes copies up to n bytes.
func (r *Reader) ReadBytes(n int) []byte {
	n = min(n, r.Remaining())
	b := make([]byte, n)
	copy(b, r.data[r.off:])
	r.off += n
	return b
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }
