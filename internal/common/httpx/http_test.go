package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicedesk/voicedesk/internal/common/apperrors"
)

type payload struct {
	AgentID string `json:"agentId"`
}

func TestGetRequestData(t *testing.T) {
	t.Run("decodes json", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"agentId":"a1"}`))
		var p payload
		require.NoError(t, GetRequestData(r, &p, 0))
		assert.Equal(t, "a1", p.AgentID)
	})
	t.Run("rejects get", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		err := GetRequestData(r, &payload{}, 0)
		require.Error(t, err)
		assert.Equal(t, http.StatusMethodNotAllowed, FromError(err).StatusCode)
	})
	t.Run("rejects malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"agentId":`))
		err := GetRequestData(r, &payload{}, 0)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, FromError(err).StatusCode)
	})
	t.Run("rejects empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		err := GetRequestData(r, &payload{}, 0)
		require.Error(t, err)
	})
	t.Run("enforces limit", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"agentId":"`+strings.Repeat("x", 100)+`"}`))
		err := GetRequestData(r, &payload{}, 16)
		require.Error(t, err)
		assert.Equal(t, http.StatusRequestEntityTooLarge, FromError(err).StatusCode)
	})
}

func TestWrapHttpRsp(t *testing.T) {
	ErrMissing := apperrors.New("Agent not found").SetStatusCode(http.StatusNotFound)

	tests := []struct {
		name       string
		handler    RequestHandler
		wantStatus int
		wantBody   string
	}{
		{
			name: "success",
			handler: func(r *http.Request) (*Response, error) {
				return &Response{StatusCode: http.StatusOK, Response: map[string]string{"roomName": "r"}}, nil
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"roomName":"r"}`,
		},
		{
			name: "app error keeps status",
			handler: func(r *http.Request) (*Response, error) {
				return nil, ErrMissing.Err(errors.New("no rows"))
			},
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"Agent not found"}`,
		},
		{
			name: "app error without status",
			handler: func(r *http.Request) (*Response, error) {
				return nil, apperrors.New("boom")
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"boom"}`,
		},
		{
			name: "plain error is withheld",
			handler: func(r *http.Request) (*Response, error) {
				return nil, errors.New("dsn=postgres://secret")
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"unable to process request"}`,
		},
		{
			name: "http error",
			handler: func(r *http.Request) (*Response, error) {
				return nil, ErrUnAuthorized()
			},
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":"Unauthorized"}`,
		},
		{
			name: "nil response",
			handler: func(r *http.Request) (*Response, error) {
				return nil, nil
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"unable to process request"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WrapHttpRsp(tt.handler)(w, httptest.NewRequest(http.MethodPost, "/", nil))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestResponseWriterTracksStatus(t *testing.T) {
	rw := NewResponseWriter(httptest.NewRecorder())
	assert.False(t, rw.Written())
	assert.Equal(t, http.StatusOK, rw.Status())
	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusInternalServerError)
	assert.True(t, rw.Written())
	assert.Equal(t, http.StatusCreated, rw.Status())
	assert.Same(t, rw, NewResponseWriter(rw))
}
