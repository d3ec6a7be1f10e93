package codec

import (
	"errors"
	"fmt"
	"strings"
)

// ErrShortBuffer is matched by every LengthError.
var ErrShortBuffer = errors.New("payload shorter than message length")

// LengthError reports a payload too short for its message.
type LengthError struct {
	Message string
	Want    int
	Got     int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("%s: need %d bytes, got %d", e.Message, e.Want, e.Got)
}

func (e *LengthError) Is(target error) bool {
	return target == ErrShortBuffer
}

// ClampError lists the signals whose physical value was saturated to the
// documented range during encoding. The payload returned alongside it is
// complete and safe to transmit.
type ClampError struct {
	Message string
	Signals []string
}

func (e *ClampError) Error() string {
	return fmt.Sprintf("%s: clamped to range: %s", e.Message, strings.Join(e.Signals, ", "))
}

// IsClamped reports whether err is, or wraps, a ClampError.
func IsClamped(err error) bool {
	var ce *ClampError
	return errors.As(err, &ce)
}
