package httpx

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/voicedesk/voicedesk/internal/common/logtrace"
)

// SendJsonRsp marshals msg and writes it with statusCode. A Location header is
// set only for 201 responses. Pre-encoded JSON may be passed as string or
// []byte.
func SendJsonRsp(ctx context.Context, w http.ResponseWriter, statusCode int, msg any, location ...string) {
	var body []byte
	switch v := msg.(type) {
	case string:
		body = []byte(v)
	case []byte:
		body = v
	default:
		var err error
		body, err = json.Marshal(msg)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("unable to marshal json")
			ErrApplicationError("Id: " + logtrace.RequestIdFromContext(ctx)).Send(w)
			return
		}
	}
	if !json.Valid(body) {
		log.Ctx(ctx).Error().Msg("response is not valid json")
		ErrApplicationError().Send(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if statusCode == http.StatusCreated && len(location) > 0 {
		w.Header().Set("Location", location[0])
	}
	w.WriteHeader(statusCode)
	w.Write(body)
}
