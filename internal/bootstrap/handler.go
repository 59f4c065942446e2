package bootstrap

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/voicedesk/voicedesk/internal/common/httpx"
)

type handler struct {
	svc         *Service
	maxBodySize int64
}

// Router serves the bootstrap operation at its mount point. Any origin may
// call it; preflight requests are answered without touching the service.
func Router(svc *Service, maxBodySize int64) chi.Router {
	h := &handler{svc: svc, maxBodySize: maxBodySize}
	r := chi.NewRouter()
	r.Use(httpx.PermissiveCORS)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.ErrReqMethodNotSupported().Send(w)
	})
	r.Post("/", httpx.WrapHttpRsp(h.bootstrap))
	return r
}

func (h *handler) bootstrap(r *http.Request) (*httpx.Response, error) {
	rsp, err := h.svc.Bootstrap(r.Context(), r.Header.Get("Authorization"), func(req *Request) error {
		return httpx.GetRequestData(r, req, h.maxBodySize)
	})
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}
