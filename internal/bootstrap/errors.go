package bootstrap

import (
	"net/http"

	"github.com/voicedesk/voicedesk/internal/common/apperrors"
)

// Client-visible failures of a bootstrap request. Messages are part of the
// public contract; causes are attached with Err/MsgErr and only logged.
var (
	ErrBootstrap       apperrors.Error = apperrors.New("bootstrap error").SetStatusCode(http.StatusInternalServerError)
	ErrUnauthenticated apperrors.Error = ErrBootstrap.New("Unauthorized").SetStatusCode(http.StatusUnauthorized)
	ErrInvalidInput    apperrors.Error = ErrBootstrap.New("Agent ID is required").SetStatusCode(http.StatusBadRequest)
	ErrAgentNotFound   apperrors.Error = ErrBootstrap.New("Agent not found").SetStatusCode(http.StatusNotFound)
	ErrMisconfigured   apperrors.Error = ErrBootstrap.New("internal server error").SetStatusCode(http.StatusInternalServerError)
	ErrPersistence     apperrors.Error = ErrBootstrap.New("Failed to create session").SetStatusCode(http.StatusInternalServerError)
	ErrSigning         apperrors.Error = ErrBootstrap.New("Failed to generate token").SetStatusCode(http.StatusInternalServerError)
)
