// Package httpx holds the request decoding and JSON response plumbing shared
// by every handler. Handlers return (*Response, error); WrapHttpRsp turns
// either into a written response.
package httpx

import (
	"errors"
	"io"
	"net/http"

	jsonitor "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/voicedesk/voicedesk/internal/common/apperrors"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

// DefaultMaxBodySize bounds request bodies when the caller passes no limit.
const DefaultMaxBodySize int64 = 64 << 10

// GetRequestData decodes a JSON request body into data. Only POST and PUT
// are accepted. The body is read up to limit bytes (DefaultMaxBodySize when
// limit <= 0).
func GetRequestData(r *http.Request, data any, limit int64) error {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return ErrReqMethodNotSupported()
	}
	if r.Body == nil || r.Body == http.NoBody {
		return ErrUnableToParseReqData()
	}
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		log.Ctx(r.Context()).Debug().Err(err).Msg("unable to read request body")
		return ErrUnableToReadRequest()
	}
	if int64(len(body)) > limit {
		return ErrRequestTooLarge(limit)
	}
	if err := json.Unmarshal(body, data); err != nil {
		return ErrUnableToParseReqData()
	}
	return nil
}

// Response is what a RequestHandler produces on success.
type Response struct {
	StatusCode int
	Location   string
	Response   any
}

// RequestHandler handles one request.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp adapts a RequestHandler to http.HandlerFunc. Errors are written
// as {"error": <message>} with the status code they carry; errors without a
// status code become 500.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			FromError(err).Send(w)
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		var location []string
		if rsp.Location != "" {
			location = append(location, rsp.Location)
		}
		SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response, location...)
	}
}

// FromError converts any error into an *Error suitable for sending.
func FromError(err error) *Error {
	var httpErr *Error
	if errors.As(err, &httpErr) {
		return httpErr
	}
	if appErr, ok := err.(apperrors.Error); ok {
		statusCode := appErr.StatusCode()
		if statusCode == 0 {
			statusCode = http.StatusInternalServerError
		}
		return &Error{
			StatusCode:  statusCode,
			Description: appErr.ErrorAll(),
		}
	}
	return ErrApplicationError()
}
