package control

import "github.com/zsiec/moqc/internal/wire"

// Parameters is the extension parameter map carried by several ietf
// messages: entries keyed by a u62 id holding opaque, u53-length-
// prefixed byte values.
type Parameters map[uint64][]byte

// EncodeParameters writes count followed by (id, length, bytes) triples.
func EncodeParameters(buf *wire.Buffer, p Parameters) error {
	if err := buf.WriteVarint53(uint64(len(p))); err != nil {
		return err
	}
	for id, value := range p {
		if err := buf.WriteVarint62(id); err != nil {
			return err
		}
		if err := buf.WriteVarint53(uint64(len(value))); err != nil {
			return err
		}
		buf.WriteBytes(value)
	}
	return nil
}

// DecodeParameters reads a parameter map, rejecting duplicate ids and
// maps larger than maxParameters.
func DecodeParameters(r *wire.Reader) (Parameters, error) {
	count, err := r.ReadVarint53()
	if err != nil {
		return nil, err
	}
	if count > maxParameters {
		return nil, ErrTooManyParameters
	}

	p := make(Parameters, count)
	for i := uint64(0); i < count; i++ {
		id, err := r.ReadVarint62()
		if err != nil {
			return nil, err
		}
		if _, dup := p[id]; dup {
			return nil, ErrDuplicateParameter
		}
		length, err := r.ReadVarint53()
		if err != nil {
			return nil, err
		}
		value, err := r.Read(int(length))
		if err != nil {
			return nil, err
		}
		p[id] = value
	}
	return p, nil
}
