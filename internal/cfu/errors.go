package cfu

import (
	"errors"
	"fmt"
)

// ErrTooShort reports a buffer smaller than the layout being decoded.
var ErrTooShort = errors.New("cfu: buffer too short")

func tooShort(layout string, got, want int) error {
	return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrTooShort, layout, want, got)
}
