package megaid

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by the engine wraps exactly one of these,
// so callers can tell tampering apart from bad input with errors.Is.
var (
	// ErrInvalidConfiguration: bad bit width or incomplete key pair.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrMalformedID: wrong segment count, empty segment or non-numeric snowflake.
	ErrMalformedID = errors.New("malformed compound id")

	// ErrSignatureInvalid: HMAC verification failed (tampering or wrong key).
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrTokenMalformed: the signed envelope is structurally invalid.
	ErrTokenMalformed = errors.New("token malformed")

	// ErrTokenExpired: the envelope carries an exp/nbf claim that is not currently valid.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidMetadata: metadata cannot be serialized into the token payload.
	ErrInvalidMetadata = errors.New("invalid metadata")
)

// Block names a signed segment of a compound ID.
type Block string

const (
	BlockImmutable Block = "immutable"
	BlockMutable   Block = "mutable"
)

// Error describes an engine failure.
type Error struct {
	Kind  error
	Block Block // empty when the failure is not tied to a signed block
	Msg   string
	Err   error // underlying cause, if any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Block != "" {
		msg = fmt.Sprintf("%s block: %s", e.Block, msg)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// FailedBlock returns the block a token failure belongs to, if any.
func FailedBlock(err error) (Block, bool) {
	var e *Error
	if errors.As(err, &e) && e.Block != "" {
		return e.Block, true
	}
	return "", false
}

// IsTampered reports whether err indicates a forged or altered block.
func IsTampered(err error) bool {
	return errors.Is(err, ErrSignatureInvalid) || errors.Is(err, ErrTokenMalformed)
}

func configErrorf(format string, args ...any) error {
	return &Error{Kind: ErrInvalidConfiguration, Msg: fmt.Sprintf(format, args...)}
}

func malformedf(format string, args ...any) error {
	return &Error{Kind: ErrMalformedID, Msg: fmt.Sprintf(format, args...)}
}
