package httpx

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// Headers sent by browser clients of the public endpoints.
const permissiveAllowHeaders = "authorization, x-client-info, apikey, content-type"

// PermissiveCORS allows any origin to call the wrapped endpoints and answers
// preflight requests itself with an empty 200. The headers are set before the
// handler runs so they also accompany error responses.
func PermissiveCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", permissiveAllowHeaders)
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")

		if r.Method == http.MethodOptions {
			log.Ctx(r.Context()).Debug().Msg("preflight request")
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
