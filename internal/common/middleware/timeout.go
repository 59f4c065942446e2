package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/voicedesk/voicedesk/internal/common/httpx"
)

// SetTimeout bounds the request context to timeout. The handler's response is
// buffered; if the handler has not returned when the deadline passes, the
// client receives 408 and whatever the handler writes later is discarded.
func SetTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &timeoutWriter{header: w.Header().Clone()}
			done := make(chan struct{})
			go func() {
				defer func() {
					if p := recover(); p != nil {
						log.Ctx(ctx).Error().Msgf("panic in handler: %v", p)
						tw.panicked = true
					}
					close(done)
				}()
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()

			select {
			case <-done:
				if tw.panicked && tw.status == 0 {
					httpx.ErrApplicationError().Send(w)
					return
				}
				tw.flushTo(w)
			case <-ctx.Done():
				log.Ctx(ctx).Error().Dur("timeout", timeout).Msg("request timed out")
				httpx.ErrRequestTimeout().Send(w)
			}
		})
	}
}

// timeoutWriter buffers the handler's response so that a late handler never
// races with the timeout response on the real writer.
type timeoutWriter struct {
	header   http.Header
	status   int
	body     []byte
	panicked bool
}

func (tw *timeoutWriter) Header() http.Header { return tw.header }

func (tw *timeoutWriter) WriteHeader(code int) {
	if tw.status == 0 {
		tw.status = code
	}
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	if tw.status == 0 {
		tw.status = http.StatusOK
	}
	tw.body = append(tw.body, b...)
	return len(b), nil
}

func (tw *timeoutWriter) flushTo(w http.ResponseWriter) {
	dst := w.Header()
	for k, v := range tw.header {
		dst[k] = v
	}
	if tw.status == 0 {
		tw.status = http.StatusOK
	}
	w.WriteHeader(tw.status)
	w.Write(tw.body)
}
