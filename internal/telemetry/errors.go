package telemetry

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is matched by every decode failure.
	ErrMalformed = errors.New("telemetry: malformed frame")

	// ErrInvalidTopic indicates an empty topic or one containing whitespace.
	ErrInvalidTopic = errors.New("telemetry: invalid topic")

	ErrEmptyJointName = errors.New("telemetry: empty joint name")
	ErrDuplicateJoint = errors.New("telemetry: duplicate joint name")
	ErrTimestampOrder = errors.New("telemetry: joint timestamp exceeds snapshot timestamp")
	ErrNonFinite      = errors.New("telemetry: non-finite joint value")
)

// DecodeKind classifies why a frame could not be decoded.
type DecodeKind int

const (
	MissingSeparator DecodeKind = iota
	EmptyTopic
	InvalidPayload
	InvalidReading
)

func (k DecodeKind) String() string {
	switch k {
	case MissingSeparator:
		return "missing separator"
	case EmptyTopic:
		return "empty topic"
	case InvalidPayload:
		return "invalid payload"
	case InvalidReading:
		return "invalid reading"
	default:
		return "unknown"
	}
}

// DecodeError is returned by Decode. It always matches ErrMalformed.
type DecodeError struct {
	Kind  DecodeKind
	Frame string
	Err   error
}

const maxFrameExcerpt = 64

func (e *DecodeError) Error() string {
	excerpt := e.Frame
	if len(excerpt) > maxFrameExcerpt {
		excerpt = excerpt[:maxFrameExcerpt] + "..."
	}
	if e.Err != nil {
		return fmt.Sprintf("telemetry: decode %q: %s: %v", excerpt, e.Kind, e.Err)
	}
	return fmt.Sprintf("telemetry: decode %q: %s", excerpt, e.Kind)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrMalformed }
