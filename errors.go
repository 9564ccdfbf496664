package ipmifru

import (
	"errors"
	"fmt"
)

// Error is a structured engine error, the FRU-domain analogue of the
// teacher's ublk *Error (op/device/code/errno becomes op/fru/code/cc).
type Error struct {
	Op             string // operation that failed ("read", "write", "destroy", ...)
	FRUName        string // printable FRU name, empty if not applicable
	Code           ErrorCode
	CompletionCode byte // IPMI completion code, 0 if not applicable
	Msg            string
	Inner          error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.FRUName != "" {
		parts = append(parts, fmt.Sprintf("fru=%s", e.FRUName))
	}
	if e.CompletionCode != 0 {
		parts = append(parts, fmt.Sprintf("cc=0x%02x", e.CompletionCode))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("ipmifru: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("ipmifru: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode is a high-level error category, per §7's taxonomy.
type ErrorCode string

const (
	ErrCodeCancelled         ErrorCode = "cancelled"
	ErrCodeInvalidArgument   ErrorCode = "invalid argument"
	ErrCodeMessageSize       ErrorCode = "message size"
	ErrCodeOutOfMemory       ErrorCode = "out of memory"
	ErrCodeUnsupportedFormat ErrorCode = "unsupported format"
	ErrCodeBusy              ErrorCode = "busy"
	ErrCodePermissionDenied  ErrorCode = "permission denied"
	ErrCodeIPMI              ErrorCode = "ipmi error"
	ErrCodeNotImplemented    ErrorCode = "not implemented"
)

// NewError builds a plain structured error with no FRU or completion-code
// context.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewFRUError builds a structured error naming the FRU it occurred on.
func NewFRUError(op, fruName string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, FRUName: fruName, Code: code, Msg: msg}
}

// NewIPMIError wraps a non-zero completion code as a fatal transport error.
func NewIPMIError(op, fruName string, cc byte) *Error {
	return &Error{
		Op:             op,
		FRUName:        fruName,
		Code:           ErrCodeIPMI,
		CompletionCode: cc,
		Msg:            fmt.Sprintf("completion code 0x%02x", cc),
	}
}

// WrapError attaches op/fru context to an existing error, preserving its
// code if it is already structured.
func WrapError(op, fruName string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if fe, ok := inner.(*Error); ok {
		return &Error{
			Op:             op,
			FRUName:        fruName,
			Code:           fe.Code,
			CompletionCode: fe.CompletionCode,
			Msg:            fe.Msg,
			Inner:          fe.Inner,
		}
	}
	return &Error{Op: op, FRUName: fruName, Code: ErrCodeIPMI, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a structured Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}
