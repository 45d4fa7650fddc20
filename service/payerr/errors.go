// Package payerr holds the error taxonomy shared by the settlement and
// donation services. Controllers switch on Code(err).
package payerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrCode string

const (
	ErrValidation ErrCode = "VALIDATION"
	ErrNotFound   ErrCode = "NOT_FOUND"
	ErrGateway    ErrCode = "GATEWAY"
)

// Messages shown to callers. NotFound covers both missing and already
// settled records so the response does not leak which one it was.
const (
	MsgNotProcessable = "payment not found or already processed"
	MsgSessionFailed  = "payment session could not be created, try again"
	MsgNotCompleted   = "payment was not completed"
)

type Error struct {
	Code   ErrCode
	Msg    string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " [%s: %s]", k, e.Fields[k])
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Code extracts the error code, "" for internal errors.
func Code(err error) ErrCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Message returns the caller-facing message of a coded error.
func Message(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Msg
	}
	return ""
}

// FieldErrors returns the per-field messages of a validation error.
func FieldErrors(err error) map[string]string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Fields
	}
	return nil
}

func Validation(msg string, fields map[string]string) error {
	return &Error{Code: ErrValidation, Msg: msg, Fields: fields}
}

func NotFound(msg string) error {
	return &Error{Code: ErrNotFound, Msg: msg}
}

func Gateway(msg string, cause error) error {
	return &Error{Code: ErrGateway, Msg: msg, Err: cause}
}

// Fields collects field-level validation failures.
type Fields map[string]string

func (f Fields) Add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

// Err returns a validation error when any field failed, nil otherwise.
func (f Fields) Err() error {
	if len(f) == 0 {
		return nil
	}
	return Validation("validation error", f)
}
