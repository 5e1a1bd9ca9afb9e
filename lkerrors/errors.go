// Package lkerrors enumerates the error kinds used across the node, mirroring
// the base::Error subclass hierarchy of the original C++ node without
// replicating C++ exception flow: every fallible call here returns a plain
// Go error built by New/Wrap, inspectable via errors.Is against the Kind
// sentinels below.
package lkerrors

import (
	"errors"
	"fmt"
)

type Kind int

const (
	InvalidArgument Kind = iota
	InaccessibleFile
	ParsingError
	CryptoError
	LogicError
	DatabaseError
	NetworkError
	Timeout
	FatalConsensusError
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case InaccessibleFile:
		return "inaccessible file"
	case ParsingError:
		return "parsing error"
	case CryptoError:
		return "crypto error"
	case LogicError:
		return "logic error"
	case DatabaseError:
		return "database error"
	case NetworkError:
		return "network error"
	case Timeout:
		return "timeout"
	case FatalConsensusError:
		return "fatal consensus error"
	default:
		return "unknown error"
	}
}

// Error wraps a Kind and a message, optionally chaining an underlying cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, lkerrors.InvalidArgument) work by comparing Kinds
// when the target is itself a bare Kind wrapped via New(kind, "").
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Sentinel is a zero-message *Error of the given kind, useful as the target
// of errors.Is(err, lkerrors.Sentinel(lkerrors.CryptoError)).
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
