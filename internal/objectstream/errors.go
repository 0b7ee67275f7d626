package objectstream

import (
	"errors"
	"fmt"
)

// Sentinel errors for object-stream decode failures.
var (
	ErrInvalidGroupType    = errors.New("objectstream: invalid group type id")
	ErrUnsupportedSubgroup = errors.New("objectstream: unsupported subgroup id")
	ErrNonzeroIDDelta      = errors.New("objectstream: nonzero id_delta unsupported")
	ErrNonzeroExtensions   = errors.New("objectstream: nonzero extensions length unsupported")
	ErrUnsupportedStatus   = errors.New("objectstream: unsupported object status")
)

type groupTypeError struct {
	id  uint64
	err error
}

func (e *groupTypeError) Error() string { return fmt.Sprintf("%v (id=%#x)", e.err, e.id) }
func (e *groupTypeError) Unwrap() error { return e.err }

func errInvalidGroupType(id uint64) error {
	return &groupTypeError{id: id, err: ErrInvalidGroupType}
}

func errUnsupportedSubgroup(id byte) error {
	return &groupTypeError{id: uint64(id), err: ErrUnsupportedSubgroup}
}
