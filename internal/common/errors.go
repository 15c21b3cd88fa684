// Package common provides shared utilities used across all features
package common

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for reporting and process exit codes.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindDerivation
	KindAllocation
	KindNetwork
	KindProgram
	KindConfirmationTimeout
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindDerivation:
		return "DerivationError"
	case KindAllocation:
		return "AllocationError"
	case KindNetwork:
		return "NetworkError"
	case KindProgram:
		return "ProgramError"
	case KindConfirmationTimeout:
		return "ConfirmationTimeout"
	default:
		return "Error"
	}
}

// ExitCode maps the kind to the process exit status.
func (k Kind) ExitCode() int {
	switch k {
	case KindValidation:
		return 2
	case KindDerivation:
		return 3
	case KindAllocation:
		return 4
	case KindNetwork:
		return 5
	case KindProgram:
		return 6
	case KindConfirmationTimeout:
		return 7
	default:
		return 1
	}
}

// Error is a classified failure. Code and Logs are only set for program errors.
type Error struct {
	Kind Kind
	Op   string
	// Code is the custom program error code, -1 when the chain did not report one.
	Code      int64
	Logs      []string
	Signature string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(" [")
		b.WriteString(e.Op)
		b.WriteString("]")
	}
	if e.Kind == KindProgram && e.Code >= 0 {
		fmt.Fprintf(&b, " (custom program error 0x%x)", e.Code)
	}
	if e.Signature != "" {
		b.WriteString(" signature=")
		b.WriteString(e.Signature)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Code: -1, Err: err}
}

func Validation(op string, err error) error {
	return newError(KindValidation, op, err)
}

func Validationf(op, format string, args ...any) error {
	return newError(KindValidation, op, fmt.Errorf(format, args...))
}

func Derivation(op string, err error) error {
	return newError(KindDerivation, op, err)
}

func Allocation(op string, err error) error {
	return newError(KindAllocation, op, err)
}

func Network(op string, err error) error {
	return newError(KindNetwork, op, err)
}

// Program builds an on-chain rejection error. code is -1 when unknown.
func Program(op string, code int64, logs []string, err error) error {
	e := newError(KindProgram, op, err)
	e.Code = code
	e.Logs = logs
	return e
}

func ConfirmationTimeout(op, signature string, err error) error {
	e := newError(KindConfirmationTimeout, op, err)
	e.Signature = signature
	return e
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCode returns 0 for nil and the kind's exit code otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}
