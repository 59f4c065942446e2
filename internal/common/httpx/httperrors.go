package httpx

import (
	"fmt"
	"net/http"
)

// Error is an HTTP error response.
type Error struct {
	Description string
	StatusCode  int
}

type errorRsp struct {
	Error string `json:"error"`
}

// Send writes the error as a JSON body. Headers already set on w (CORS,
// request id) are preserved.
func (e *Error) Send(w http.ResponseWriter) {
	if w == nil {
		return
	}
	body, err := json.Marshal(&errorRsp{Error: e.Description})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	w.Write(body)
}

func (e *Error) Error() string {
	return e.Description
}

func newError(status int, def string, msg []string) *Error {
	if len(msg) > 0 && msg[0] != "" {
		def = msg[0]
	}
	return &Error{Description: def, StatusCode: status}
}

func ErrReqMethodNotSupported() *Error {
	return newError(http.StatusMethodNotAllowed, "request method not supported", nil)
}

func ErrUnableToParseReqData() *Error {
	return newError(http.StatusBadRequest, "unable to parse request data", nil)
}

func ErrUnableToReadRequest() *Error {
	return newError(http.StatusBadRequest, "unable to read request data", nil)
}

// ErrRequestTooLarge is returned when a body exceeds limit bytes.
func ErrRequestTooLarge(limit int64) *Error {
	return newError(http.StatusRequestEntityTooLarge, fmt.Sprintf("request body too large (limit: %d bytes)", limit), nil)
}

func ErrApplicationError(msg ...string) *Error {
	return newError(http.StatusInternalServerError, "unable to process request", msg)
}

func ErrUnAuthorized(msg ...string) *Error {
	return newError(http.StatusUnauthorized, "Unauthorized", msg)
}

func ErrRequestTimeout() *Error {
	return newError(http.StatusRequestTimeout, "request timed out", nil)
}

func ErrServiceUnavailable(msg ...string) *Error {
	return newError(http.StatusServiceUnavailable, "service unavailable", msg)
}
