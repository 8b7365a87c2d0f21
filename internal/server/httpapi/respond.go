package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
)

const maxBodyBytes = 1 << 20

// errorBody is the wire shape of every failure.
type errorBody struct {
	Error            string `json:"error"`
	Message          string `json:"message"`
	RemainingSeconds int    `json:"remainingSeconds,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error(context.Background(), "encode response failed", "error", err)
	}
}

// statusFor maps the error taxonomy onto HTTP statuses. Handlers for link
// tokens override the status of common.ErrTokenInvalid.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrAccountLocked):
		return http.StatusLocked
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrSessionExpired),
		errors.Is(err, common.ErrTokenReused),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrTicketExpired),
		errors.Is(err, common.ErrVerificationExpired):
		return http.StatusGone
	case errors.Is(err, common.ErrInvalidCode),
		errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrEmailInUse):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondErrorStatus(w, r, err, statusFor(err))
}

func (s *Server) respondErrorStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	body := errorBody{Error: common.CodeForError(err), Message: err.Error()}
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		body.Message = common.ErrInternal.Error()
	}

	var locked *common.AccountLockedError
	if errors.As(err, &locked) {
		body.RemainingSeconds = locked.RemainingSeconds()
	}
	s.respondJSON(w, status, body)
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return common.NewValidationError("malformed JSON body")
	}
	return nil
}
