package blackboard

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrInvalidArgument = errors.New("invalid argument")
)

// TypeMismatchError reports a typed read whose requested type does not match
// the stored value.
type TypeMismatchError struct {
	Key       string
	Stored    reflect.Type
	Requested reflect.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: key %q holds %v, requested %v", ErrTypeMismatch, e.Key, e.Stored, e.Requested)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }
