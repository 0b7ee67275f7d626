package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/quic-go/quic-go/quicvarint"
)

// byteReader is the minimal capability Reader needs from its backing
// stream: sequential bytes, one-byte pushback (for Done's peek), and
// io.ByteReader for quicvarint.
type byteReader interface {
	io.Reader
	io.ByteReader
	UnreadByte() error
}

// Reader is a pull-based chunk consumer over a byte stream. It may be
// backed by an arbitrary io.Reader (control and object streams) or by
// a fixed in-memory buffer (framed payload decoding).
type Reader struct {
	br byteReader
}

// NewReader wraps an arbitrary io.Reader. If r doesn't already offer
// byte-at-a-time reads with pushback, it's wrapped in a bufio.Reader.
func NewReader(r io.Reader) *Reader {
	if br, ok := r.(byteReader); ok {
		return &Reader{br: br}
	}
	return &Reader{br: bufio.NewReader(r)}
}

// NewReaderBytes wraps a fixed byte slice for buffer decoding.
func NewReaderBytes(b []byte) *Reader {
	return &Reader{br: bytes.NewReader(b)}
}

// Read returns exactly n bytes or fails with INSUFFICIENT_DATA.
func (r *Reader) Read(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, newErr(CodeInsufficientData, "bytes", err)
	}
	return buf, nil
}

// ReadAll returns the remaining bytes until stream end.
func (r *Reader) ReadAll() ([]byte, error) {
	buf, err := io.ReadAll(r.br)
	if err != nil {
		return nil, newErr(CodeInsufficientData, "readAll", err)
	}
	return buf, nil
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (byte, error) {
	b, err := r.br.ReadByte()
	if err != nil {
		return 0, newErr(CodeInsufficientData, "u8", err)
	}
	return b, nil
}

// ReadU16 reads a big-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	buf, err := r.Read(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}

// ReadI32 reads a big-endian two's-complement int32.
func (r *Reader) ReadI32() (int32, error) {
	buf, err := r.Read(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf)), nil
}

// ReadVarint62 reads a QUIC-style varint admitting the full 62-bit
// range ("u62").
func (r *Reader) ReadVarint62() (uint64, error) {
	v, err := quicvarint.Read(r.br)
	if err != nil {
		return 0, newErr(CodeInsufficientData, "varint", err)
	}
	return v, nil
}

// ReadVarint53 reads a QUIC-style varint restricted to 53 bits
// ("u53"), rejecting anything wider as VARINT_TOO_LARGE.
func (r *Reader) ReadVarint53() (uint64, error) {
	v, err := r.ReadVarint62()
	if err != nil {
		return 0, err
	}
	if err := checkWidth(v, MaxU53, "varint53"); err != nil {
		return 0, err
	}
	return v, nil
}

// ReadString reads a u53 byte-length prefix followed by that many
// UTF-8 bytes.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadVarint53()
	if err != nil {
		return "", err
	}
	buf, err := r.Read(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", newErr(CodeBadString, "string", nil)
	}
	return string(buf), nil
}

// Done reports whether no further bytes are available without
// blocking for more than the underlying stream's own read semantics
// require (i.e. it may block until EOF or the next chunk arrives, but
// never invents data).
func (r *Reader) Done() bool {
	_, err := r.br.ReadByte()
	if err != nil {
		return true
	}
	_ = r.br.UnreadByte()
	return false
}

// Bound reads exactly n bytes and returns them as a fresh Reader over
// that fixed slice, used to enforce exact consumption within a framed
// message.
func (r *Reader) Bound(n uint64) (*Reader, error) {
	buf, err := r.Read(int(n))
	if err != nil {
		return nil, err
	}
	return NewReaderBytes(buf), nil
}

// RequireEmpty returns TRAILING_BYTES if the reader still has data,
// otherwise nil. Callers use this after decoding a framed message's
// fields to enforce exact consumption.
func (r *Reader) RequireEmpty() error {
	if r.Done() {
		return nil
	}
	return newErr(CodeTrailingBytes, "message", nil)
}
