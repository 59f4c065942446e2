// Package apperrors implements chained application errors that carry an HTTP
// status code. Errors are declared once as package level sentinels and then
// derived per call site, so errors.Is matches the sentinel at every level.
package apperrors

// Error is the error type returned across package boundaries. Every
// derivation returns a new value; sentinels are never mutated.
type Error interface {
	error
	Unwrap() error

	New(msg string) Error                  // child error with a fresh message
	Msg(msg string) Error                  // child error with a fresh message that also wraps the parent
	MsgErr(msg string, err ...error) Error // like Msg, additionally wrapping err
	Err(err ...error) Error                // same message, wrapping err
	SetExpandError(bool) Error             // ErrorAll includes wrapped messages when true
	SetStatusCode(int) Error
	StatusCode() int
	ErrorAll() string
	UnwrapAll() []error
}

// StatusCode returns the status code carried by err, or 0 when err is not an
// Error or carries none.
func StatusCode(err error) int {
	if appErr, ok := err.(Error); ok {
		return appErr.StatusCode()
	}
	return 0
}
