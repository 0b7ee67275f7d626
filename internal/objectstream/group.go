package objectstream

import (
	"github.com/zsiec/moqc/internal/wire"
)

// groupTypeBase is the low bound of the group-header type-id space;
// the low four bits are feature flags layered on top of it.
const groupTypeBase = 0x10

// groupTypeMax is the high bound of the valid type-id range. IDs
// 0x1E and 0x1F would require hasSubgroup and hasSubgroupObject to
// both be set, which is never valid, so the range excludes them.
const groupTypeMax = 0x1D

const subgroupID = 0x00

const (
	flagHasExtensions     = 0x01
	flagHasSubgroup       = 0x02
	flagHasSubgroupObject = 0x04
	flagHasEnd            = 0x08
)

// Header is the group header carried at the start of every
// unidirectional object stream (draft-ietf-moq-transport-14 §9.2).
type Header struct {
	RequestID uint64
	GroupID   uint64

	// HasExtensions indicates every frame object in this group carries
	// an (always-zero) extensions-length field.
	HasExtensions bool
	// HasSubgroup indicates an explicit subgroup id byte follows the
	// group id. Mutually exclusive with HasSubgroupObject.
	HasSubgroup bool
	// HasSubgroupObject indicates the first object id doubles as the
	// subgroup id. Mutually exclusive with HasSubgroup.
	HasSubgroupObject bool
	// HasEnd indicates the stream carries no implicit end-of-group
	// marker; the stream's own FIN terminates the group.
	HasEnd bool
}

// Encode appends the group header to buf. It panics if HasSubgroup and
// HasSubgroupObject are both set: that combination is an encode-time
// programmer error, not a wire condition.
func (h Header) Encode(buf *wire.Buffer) error {
	if h.HasSubgroup && h.HasSubgroupObject {
		panic("objectstream: HasSubgroup and HasSubgroupObject cannot both be set")
	}

	id := byte(groupTypeBase)
	if h.HasExtensions {
		id |= flagHasExtensions
	}
	if h.HasSubgroup {
		id |= flagHasSubgroup
	}
	if h.HasSubgroupObject {
		id |= flagHasSubgroupObject
	}
	if h.HasEnd {
		id |= flagHasEnd
	}
	buf.WriteU8(id)

	if err := buf.WriteVarint53(h.RequestID); err != nil {
		return err
	}
	if err := buf.WriteVarint53(h.GroupID); err != nil {
		return err
	}
	if h.HasSubgroup {
		buf.WriteU8(subgroupID)
	}
	buf.WriteU8(0) // publisher priority: ignored on decode, transmitted as 0.
	return nil
}

// DecodeHeader reads a group header from r. r must already be
// positioned at the type-id byte (typically peeked from the start of a
// freshly-accepted unidirectional stream).
func DecodeHeader(r *wire.Reader) (Header, error) {
	id, err := r.ReadVarint53()
	if err != nil {
		return Header{}, err
	}
	if id < groupTypeBase || id > groupTypeMax {
		return Header{}, errInvalidGroupType(id)
	}

	h := Header{
		HasExtensions:     id&flagHasExtensions != 0,
		HasSubgroup:       id&flagHasSubgroup != 0,
		HasSubgroupObject: id&flagHasSubgroupObject != 0,
		HasEnd:            id&flagHasEnd != 0,
	}
	if h.HasSubgroup && h.HasSubgroupObject {
		return Header{}, errInvalidGroupType(id)
	}

	h.RequestID, err = r.ReadVarint53()
	if err != nil {
		return Header{}, err
	}
	h.GroupID, err = r.ReadVarint53()
	if err != nil {
		return Header{}, err
	}

	if h.HasSubgroup {
		sub, err := r.ReadU8()
		if err != nil {
			return Header{}, err
		}
		if sub != subgroupID {
			return Header{}, errUnsupportedSubgroup(sub)
		}
	}

	if _, err := r.ReadU8(); err != nil { // publisher priority, ignored
		return Header{}, err
	}

	return h, nil
}
