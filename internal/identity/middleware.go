package identity

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/voicedesk/voicedesk/internal/common/httpx"
)

// RequireUser rejects requests without a valid bearer token and stores the
// resolved user in the request context.
func RequireUser(p Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			user, err := p.GetUser(ctx, BearerToken(r.Header.Get("Authorization")))
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("request not authenticated")
				httpx.ErrUnAuthorized().Send(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(ctx, user)))
		})
	}
}
