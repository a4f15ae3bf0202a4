package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame layout: [2 bytes LE: total length including the header][payload].
const (
	frameHeader = 2
	MaxPayload  = 0xFFFF - frameHeader
)

// ErrFrameSize marks a frame whose length header is empty or too large.
var ErrFrameSize = errors.New("frame size out of range")

// ReadFrame reads one frame from r and returns its payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeader]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	n := int(binary.LittleEndian.Uint16(header[:])) - frameHeader
	if n <= 0 {
		return nil, fmt.Errorf("read frame: %w (payload %d)", ErrFrameSize, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", n, err)
	}
	return payload, nil
}

// WriteFrame writes data as one frame. Header and payload go out in a
// single Write so a frame is never split across writers.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) == 0 || len(data) > MaxPayload {
		return fmt.Errorf("write frame: %w (payload %d)", ErrFrameSize, len(data))
	}
	buf := make([]byte, frameHeader+len(data))
	binary.LittleEndian.PutUint16(buf, uint16(len(buf)))
	copy(buf[frameHeader:], data)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
