package wire

import (
	"encoding/binary"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// Buffer is a growable scratch buffer with explicit exponential
// (capacity-doubling) growth, used to serialize a message's fields
// before its length is known: the length prefix must precede the
// payload it describes.
type Buffer struct {
	data []byte
}

// NewBuffer returns an empty scratch buffer with a small initial
// capacity.
func NewBuffer() *Buffer {
	return &Buffer{data: make([]byte, 0, 64)}
}

func (b *Buffer) grow(extra int) {
	needed := len(b.data) + extra
	if needed <= cap(b.data) {
		return
	}
	newCap := cap(b.data)
	if newCap == 0 {
		newCap = 64
	}
	for newCap < needed {
		newCap *= 2
	}
	grown := make([]byte, len(b.data), newCap)
	copy(grown, b.data)
	b.data = grown
}

// Bytes returns the accumulated bytes. The returned slice aliases the
// buffer's storage and must not be retained across further writes.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the number of bytes accumulated so far.
func (b *Buffer) Len() int { return len(b.data) }

// WriteU8 appends a single byte.
func (b *Buffer) WriteU8(v byte) {
	b.grow(1)
	b.data = append(b.data, v)
}

// WriteU16 appends a big-endian uint16.
func (b *Buffer) WriteU16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	b.grow(2)
	b.data = append(b.data, tmp[:]...)
}

// WriteI32 appends a big-endian two's-complement int32.
func (b *Buffer) WriteI32(v int32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(v))
	b.grow(4)
	b.data = append(b.data, tmp[:]...)
}

// WriteVarint62 appends a QUIC-style varint admitting the full 62-bit
// range.
func (b *Buffer) WriteVarint62(v uint64) error {
	if err := checkWidth(v, MaxU62, "varint"); err != nil {
		return err
	}
	b.grow(quicvarint.Len(v))
	b.data = quicvarint.Append(b.data, v)
	return nil
}

// WriteVarint53 appends a QUIC-style varint restricted to 53 bits.
func (b *Buffer) WriteVarint53(v uint64) error {
	if err := checkWidth(v, MaxU53, "varint53"); err != nil {
		return err
	}
	return b.WriteVarint62(v)
}

// WriteString appends a u53 byte-length prefix followed by the UTF-8
// bytes of s.
func (b *Buffer) WriteString(s string) error {
	if err := b.WriteVarint53(uint64(len(s))); err != nil {
		return err
	}
	b.WriteBytes([]byte(s))
	return nil
}

// WriteBytes appends a raw byte slice with no length prefix.
func (b *Buffer) WriteBytes(p []byte) {
	b.grow(len(p))
	b.data = append(b.data, p...)
}

// Writer is a push-based chunk producer sinking into a writable byte
// stream. It performs a single Write call per flush so that, without
// external synchronization, a message is emitted atomically with
// respect to concurrent writers on the same stream.
type Writer struct {
	w io.Writer
}

// NewWriter wraps a sink.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Flush writes buf's accumulated bytes to the sink in one Write call.
func (w *Writer) Flush(buf *Buffer) error {
	_, err := w.w.Write(buf.Bytes())
	return err
}

// WriteRaw writes p directly to the sink in one Write call.
func (w *Writer) WriteRaw(p []byte) error {
	_, err := w.w.Write(p)
	return err
}
