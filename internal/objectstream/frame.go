package objectstream

import "github.com/zsiec/moqc/internal/wire"

// statusEmpty and statusGroupEnd are the object-status values a
// zero-length frame object may carry. Status 0 is also accepted as an
// end-of-group marker when the enclosing group has no HasEnd flag:
// some servers emit it instead of the canonical GROUP_END. Do not
// tighten this.
const (
	statusEmpty    = 0x00
	statusGroupEnd = 0x03
)

// Frame is a single frame object within a group. End distinguishes an
// end-of-group marker (no payload delivered to the application) from
// an ordinary, possibly-empty, data frame.
type Frame struct {
	Payload []byte
	End     bool
}

// EncodeFrame appends a frame object to buf. group determines whether
// a (always-zero) extensions-length field is present.
func EncodeFrame(buf *wire.Buffer, group Header, f Frame) error {
	if err := buf.WriteVarint53(0); err != nil { // id_delta, always 0
		return err
	}
	if group.HasExtensions {
		if err := buf.WriteVarint53(0); err != nil { // extensions_length, always 0
			return err
		}
	}

	if f.End {
		if err := buf.WriteVarint53(0); err != nil { // payload_length
			return err
		}
		return buf.WriteVarint53(statusGroupEnd)
	}

	if err := buf.WriteVarint53(uint64(len(f.Payload))); err != nil {
		return err
	}
	if len(f.Payload) > 0 {
		buf.WriteBytes(f.Payload)
		return nil
	}
	return buf.WriteVarint53(statusEmpty)
}

// DecodeFrame reads a frame object from r, given the group header it
// belongs to.
func DecodeFrame(r *wire.Reader, group Header) (Frame, error) {
	idDelta, err := r.ReadVarint53()
	if err != nil {
		return Frame{}, err
	}
	if idDelta != 0 {
		return Frame{}, ErrNonzeroIDDelta
	}

	if group.HasExtensions {
		extLen, err := r.ReadVarint53()
		if err != nil {
			return Frame{}, err
		}
		if extLen != 0 {
			return Frame{}, ErrNonzeroExtensions
		}
	}

	size, err := r.ReadVarint53()
	if err != nil {
		return Frame{}, err
	}

	if size > 0 {
		payload, err := r.Read(int(size))
		if err != nil {
			return Frame{}, err
		}
		return Frame{Payload: payload}, nil
	}

	status, err := r.ReadVarint53()
	if err != nil {
		return Frame{}, err
	}

	switch {
	case status == statusEmpty && group.HasEnd:
		return Frame{Payload: []byte{}}, nil
	case (status == statusEmpty || status == statusGroupEnd) && !group.HasEnd:
		return Frame{End: true}, nil
	default:
		return Frame{}, ErrUnsupportedStatus
	}
}
