package teardown

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/voicedesk/voicedesk/internal/common/httpx"
	"github.com/voicedesk/voicedesk/internal/identity"
)

// Router serves the session routes. Every route requires a bearer token
// resolving to the session's end user.
func Router(svc *Service, users identity.Provider) chi.Router {
	h := &handler{svc: svc}
	r := chi.NewRouter()
	r.Use(identity.RequireUser(users))
	r.Get("/{sessionID}", httpx.WrapHttpRsp(h.get))
	r.Post("/{sessionID}/end", httpx.WrapHttpRsp(h.end))
	return r
}

type handler struct {
	svc *Service
}

func (h *handler) get(r *http.Request) (*httpx.Response, error) {
	view, err := h.svc.Get(r.Context(), identity.UserFromContext(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: view}, nil
}

func (h *handler) end(r *http.Request) (*httpx.Response, error) {
	rsp, err := h.svc.End(r.Context(), identity.UserFromContext(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: rsp}, nil
}
