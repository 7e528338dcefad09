package echonet_lite

import (
	"errors"
	"fmt"
)

var (
	ErrFrameTooShort     = errors.New("frame too short")
	ErrInvalidEHD        = errors.New("unsupported EHD")
	ErrTruncatedProperty = errors.New("truncated property")
	ErrEDTTooLong        = errors.New("EDT exceeds 255 bytes")
	ErrTooManyProperties = errors.New("too many properties in one frame")

	ErrUnsupportedValue = errors.New("unsupported value")
	ErrReadOnlyProperty = errors.New("property is read-only")
)

// ErrInvalidPropertyMap はプロパティマップの形式が不正であることを示します。
type ErrInvalidPropertyMap struct {
	EDT []byte
}

func (e ErrInvalidPropertyMap) Error() string {
	return fmt.Sprintf("invalid property map: %X", e.EDT)
}
