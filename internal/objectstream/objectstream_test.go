package objectstream

import (
	"bytes"
	"errors"
	"testing"

	"github.com/zsiec/moqc/internal/wire"
)

func TestGroupHeaderRoundTrip(t *testing.T) {
	t.Parallel()
	cases := []Header{
		{RequestID: 1, GroupID: 0},
		{RequestID: 9, GroupID: 42, HasExtensions: true},
		{RequestID: 9, GroupID: 42, HasSubgroup: true},
		{RequestID: 9, GroupID: 42, HasEnd: true},
		{RequestID: 9, GroupID: 42, HasExtensions: true, HasSubgroup: true, HasEnd: true},
	}
	for _, h := range cases {
		buf := wire.NewBuffer()
		if err := h.Encode(buf); err != nil {
			t.Fatalf("encode %+v: %v", h, err)
		}
		r := wire.NewReaderBytes(buf.Bytes())
		got, err := DecodeHeader(r)
		if err != nil {
			t.Fatalf("decode %+v: %v", h, err)
		}
		if got != h {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, h)
		}
		if !r.Done() {
			t.Fatalf("reader not fully consumed for %+v", h)
		}
	}
}

func TestGroupHeaderEncodePanicsOnConflictingFlags(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for conflicting subgroup flags")
		}
	}()
	h := Header{HasSubgroup: true, HasSubgroupObject: true}
	_ = h.Encode(wire.NewBuffer())
}

func TestGroupHeaderRejectsInvalidType(t *testing.T) {
	t.Parallel()
	buf := wire.NewBuffer()
	if err := buf.WriteVarint53(0x1E); err != nil { // hasSubgroup|hasSubgroupObject, always invalid
		t.Fatal(err)
	}
	r := wire.NewReaderBytes(buf.Bytes())
	_, err := DecodeHeader(r)
	if !errors.Is(err, ErrInvalidGroupType) {
		t.Fatalf("expected ErrInvalidGroupType, got %v", err)
	}
}

func TestGroupHeaderRejectsUnsupportedSubgroupID(t *testing.T) {
	t.Parallel()
	buf := wire.NewBuffer()
	if err := buf.WriteVarint53(groupTypeBase | flagHasSubgroup); err != nil {
		t.Fatal(err)
	}
	if err := buf.WriteVarint53(1); err != nil { // request id
		t.Fatal(err)
	}
	if err := buf.WriteVarint53(1); err != nil { // group id
		t.Fatal(err)
	}
	buf.WriteU8(0x07) // non-zero subgroup id, unsupported
	buf.WriteU8(0)    // priority

	r := wire.NewReaderBytes(buf.Bytes())
	_, err := DecodeHeader(r)
	if !errors.Is(err, ErrUnsupportedSubgroup) {
		t.Fatalf("expected ErrUnsupportedSubgroup, got %v", err)
	}
}

func TestFrameRoundTripWithPayload(t *testing.T) {
	t.Parallel()
	group := Header{HasExtensions: true}
	f := Frame{Payload: []byte("keyframe")}

	buf := wire.NewBuffer()
	if err := EncodeFrame(buf, group, f); err != nil {
		t.Fatal(err)
	}
	r := wire.NewReaderBytes(buf.Bytes())
	got, err := DecodeFrame(r, group)
	if err != nil {
		t.Fatal(err)
	}
	if got.End || !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
	if !r.Done() {
		t.Fatal("reader not fully consumed")
	}
}

func TestFrameRoundTripEmptyWithHasEnd(t *testing.T) {
	t.Parallel()
	group := Header{HasEnd: true}
	f := Frame{Payload: []byte{}}

	buf := wire.NewBuffer()
	if err := EncodeFrame(buf, group, f); err != nil {
		t.Fatal(err)
	}
	r := wire.NewReaderBytes(buf.Bytes())
	got, err := DecodeFrame(r, group)
	if err != nil {
		t.Fatal(err)
	}
	if got.End {
		t.Fatal("expected an empty data frame, not an end marker")
	}
	if len(got.Payload) != 0 {
		t.Fatalf("expected empty payload, got %v", got.Payload)
	}
}

func TestFrameEndOfGroupCanonicalStatus(t *testing.T) {
	t.Parallel()
	group := Header{} // HasEnd false: this frame itself signals the end.
	buf := wire.NewBuffer()
	if err := EncodeFrame(buf, group, Frame{End: true}); err != nil {
		t.Fatal(err)
	}
	r := wire.NewReaderBytes(buf.Bytes())
	got, err := DecodeFrame(r, group)
	if err != nil {
		t.Fatal(err)
	}
	if !got.End {
		t.Fatal("expected end-of-group frame")
	}
}

func TestFrameEndOfGroupAcceptsStatusZero(t *testing.T) {
	t.Parallel()
	group := Header{}
	buf := wire.NewBuffer()
	if err := buf.WriteVarint53(0); err != nil { // id_delta
		t.Fatal(err)
	}
	if err := buf.WriteVarint53(0); err != nil { // payload_length
		t.Fatal(err)
	}
	if err := buf.WriteVarint53(0); err != nil { // status 0, nonconformant end marker
		t.Fatal(err)
	}

	r := wire.NewReaderBytes(buf.Bytes())
	got, err := DecodeFrame(r, group)
	if err != nil {
		t.Fatal(err)
	}
	if !got.End {
		t.Fatal("expected status 0 without HasEnd to be treated as end-of-group")
	}
}

func TestFrameRejectsNonzeroIDDelta(t *testing.T) {
	t.Parallel()
	group := Header{}
	buf := wire.NewBuffer()
	if err := buf.WriteVarint53(1); err != nil { // nonzero id_delta
		t.Fatal(err)
	}
	if err := buf.WriteVarint53(0); err != nil {
		t.Fatal(err)
	}
	if err := buf.WriteVarint53(0); err != nil {
		t.Fatal(err)
	}

	r := wire.NewReaderBytes(buf.Bytes())
	if _, err := DecodeFrame(r, group); !errors.Is(err, ErrNonzeroIDDelta) {
		t.Fatalf("expected ErrNonzeroIDDelta, got %v", err)
	}
}

func TestFrameRejectsNonzeroExtensionsLength(t *testing.T) {
	t.Parallel()
	group := Header{HasExtensions: true}
	buf := wire.NewBuffer()
	if err := buf.WriteVarint53(0); err != nil { // id_delta
		t.Fatal(err)
	}
	if err := buf.WriteVarint53(3); err != nil { // nonzero extensions length
		t.Fatal(err)
	}

	r := wire.NewReaderBytes(buf.Bytes())
	if _, err := DecodeFrame(r, group); !errors.Is(err, ErrNonzeroExtensions) {
		t.Fatalf("expected ErrNonzeroExtensions, got %v", err)
	}
}

func TestFrameRejectsUnsupportedStatus(t *testing.T) {
	t.Parallel()
	group := Header{HasEnd: true}
	buf := wire.NewBuffer()
	if err := buf.WriteVarint53(0); err != nil { // id_delta
		t.Fatal(err)
	}
	if err := buf.WriteVarint53(0); err != nil { // payload_length
		t.Fatal(err)
	}
	if err := buf.WriteVarint53(7); err != nil { // status 7, unsupported
		t.Fatal(err)
	}

	r := wire.NewReaderBytes(buf.Bytes())
	if _, err := DecodeFrame(r, group); !errors.Is(err, ErrUnsupportedStatus) {
		t.Fatalf("expected ErrUnsupportedStatus, got %v", err)
	}
}
