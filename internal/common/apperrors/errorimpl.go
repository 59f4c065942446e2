package apperrors

import (
	"errors"
	"strings"
)

type appError struct {
	msg         string
	parent      error
	wrapped     []error
	statusCode  int
	expandError bool
}

func (e *appError) Error() string {
	return e.msg
}

func (e *appError) ErrorAll() string {
	if !e.expandError {
		return e.msg
	}
	var b strings.Builder
	b.WriteString(e.msg)
	for _, err := range e.wrapped {
		if err == e.parent {
			continue
		}
		b.WriteString("; ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *appError) Unwrap() error {
	return e.parent
}

func (e *appError) UnwrapAll() []error {
	return e.wrapped
}

func (e *appError) derive(msg string, errs []error) *appError {
	child := &appError{
		msg:         msg,
		parent:      e,
		statusCode:  e.statusCode,
		expandError: e.expandError,
	}
	if len(errs) > 0 {
		child.wrapped = append([]error{e}, errs...)
	}
	return child
}

func (e *appError) New(msg string) Error {
	return e.derive(msg, nil)
}

func (e *appError) Msg(msg string) Error {
	child := e.derive(msg, nil)
	child.wrapped = append([]error{e}, e.wrapped...)
	return child
}

func (e *appError) MsgErr(msg string, errs ...error) Error {
	return e.derive(msg, nonNil(errs))
}

func (e *appError) Err(errs ...error) Error {
	return e.derive(e.msg, nonNil(errs))
}

func (e *appError) SetExpandError(flag bool) Error {
	cp := *e
	cp.expandError = flag
	return &cp
}

func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statusCode = code
	return &cp
}

func (e *appError) StatusCode() int {
	return e.statusCode
}

// Is matches target against the parent chain and every wrapped error.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.parent, target) {
		return true
	}
	for _, err := range e.wrapped {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// New creates a root error.
func New(msg string) Error {
	return &appError{msg: msg}
}

func nonNil(errs []error) []error {
	out := errs[:0:0]
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
