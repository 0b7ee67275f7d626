package wire

// MaxIETFPayload is the largest payload the ietf framing's u16 length
// prefix can address.
const MaxIETFPayload = 65535

// EncodeLite serializes a lite-framed message: a u53 length prefix
// covering the concatenation of the type id and the message fields.
func EncodeLite(typeID uint64, fields *Buffer) (*Buffer, error) {
	body := NewBuffer()
	if err := body.WriteVarint62(typeID); err != nil {
		return nil, err
	}
	body.WriteBytes(fields.Bytes())

	out := NewBuffer()
	if err := out.WriteVarint53(uint64(body.Len())); err != nil {
		return nil, err
	}
	out.WriteBytes(body.Bytes())
	return out, nil
}

// DecodeLite reads a lite-framed message header (length prefix, then
// type id) and returns the type id plus a Reader bounded to exactly
// the remaining field bytes. Callers must parse those fields and then
// call body.RequireEmpty() to detect TRAILING_BYTES.
func DecodeLite(r *Reader) (typeID uint64, body *Reader, err error) {
	length, err := r.ReadVarint53()
	if err != nil {
		return 0, nil, err
	}
	body, err = r.Bound(length)
	if err != nil {
		return 0, nil, err
	}
	typeID, err = body.ReadVarint62()
	if err != nil {
		return 0, nil, err
	}
	return typeID, body, nil
}

// EncodeIETF serializes an ietf-framed message: a u53 type id followed
// by a big-endian u16 length prefix covering only the fields.
func EncodeIETF(typeID uint64, fields *Buffer) (*Buffer, error) {
	if fields.Len() > MaxIETFPayload {
		return nil, newErr(CodeMessageTooLarge, "payload", nil)
	}

	out := NewBuffer()
	if err := out.WriteVarint62(typeID); err != nil {
		return nil, err
	}
	out.WriteU16(uint16(fields.Len()))
	out.WriteBytes(fields.Bytes())
	return out, nil
}

// DecodeIETF reads an ietf-framed message header (type id, then u16
// length) and returns the type id plus a Reader bounded to exactly the
// declared payload. Callers must parse the fields and then call
// body.RequireEmpty().
func DecodeIETF(r *Reader) (typeID uint64, body *Reader, err error) {
	typeID, err = r.ReadVarint62()
	if err != nil {
		return 0, nil, err
	}
	length, err := r.ReadU16()
	if err != nil {
		return 0, nil, err
	}
	body, err = r.Bound(uint64(length))
	if err != nil {
		return 0, nil, err
	}
	return typeID, body, nil
}
