package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/services"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/tokens"
)

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /auth/register", s.limit(s.handleRegister))
	mux.HandleFunc("POST /auth/login", s.limit(s.handleLogin))
	mux.HandleFunc("POST /auth/2fa/login", s.limit(s.handleTwoFactorLogin))
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("POST /auth/forgot-password", s.limit(s.handleForgotPassword))
	mux.HandleFunc("POST /auth/reset-password", s.limit(s.handleResetPassword))
	mux.HandleFunc("POST /auth/verify-email", s.handleVerifyEmail)

	mux.HandleFunc("GET /auth/me", s.requireAuth(s.handleMe))
	mux.HandleFunc("PATCH /auth/profile", s.requireAuth(s.handleProfile))
	mux.HandleFunc("POST /auth/verify-email/resend", s.requireAuth(s.handleResendVerification))
	mux.HandleFunc("POST /auth/change-password", s.requireAuth(s.handleChangePassword))
	mux.HandleFunc("POST /auth/2fa/setup", s.requireAuth(s.handleTwoFactorSetup))
	mux.HandleFunc("POST /auth/2fa/enable", s.requireAuth(s.limit(s.handleTwoFactorEnable)))
	mux.HandleFunc("POST /auth/2fa/disable", s.requireAuth(s.limit(s.handleTwoFactorDisable)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	user, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, newUserResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondLogin(w, r, res)
}

func (s *Server) handleTwoFactorLogin(w http.ResponseWriter, r *http.Request) {
	var req twoFactorLoginRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.auth.Complete2FA(r.Context(), req.TempToken, req.Token)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondLogin(w, r, res)
}

func (s *Server) respondLogin(w http.ResponseWriter, r *http.Request, res *services.LoginResult) {
	if res.Requires2FA {
		s.respondJSON(w, http.StatusOK, pendingTwoFactorResponse{
			Requires2FA: true,
			TempToken:   res.TempToken,
			Channel:     string(res.Channel),
			ExpiresAt:   res.TicketExpiresAt,
		})
		return
	}

	s.setRefreshCookie(w, r, res.Tokens)
	s.respondJSON(w, http.StatusOK, newTokenResponse(res.Tokens, res.User))
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, r *http.Request, pair *tokens.TokenPair) {
	if err := s.cookies.Set(w, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
		s.logger.Error(r.Context(), "refresh cookie not set", "error", err)
	}
}

// refreshTokenFrom prefers the body and falls back to the cookie.
func (s *Server) refreshTokenFrom(w http.ResponseWriter, r *http.Request) (string, error) {
	var req refreshRequest
	if err := s.decode(w, r, &req); err != nil {
		return "", err
	}
	if req.RefreshToken != "" {
		return req.RefreshToken, nil
	}
	token, _ := s.cookies.Read(r)
	return token, nil
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, err := s.refreshTokenFrom(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	pair, err := s.auth.Refresh(r.Context(), token)
	if err != nil {
		s.cookies.Clear(w)
		s.respondError(w, r, err)
		return
	}

	s.setRefreshCookie(w, r, pair)
	s.respondJSON(w, http.StatusOK, newTokenResponse(pair, nil))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, err := s.refreshTokenFrom(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.cookies.Clear(w)
	if err := s.auth.Logout(r.Context(), token); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	_ = s.auth.RequestPasswordReset(r.Context(), req.Email)
	s.respondJSON(w, http.StatusAccepted, messageResponse{
		Message: "if an account exists for this address, a reset link is on its way",
	})
}

// respondLinkError reports a bad link token as 400.
func (s *Server) respondLinkError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if errors.Is(err, common.ErrTokenInvalid) {
		status = http.StatusBadRequest
	}
	s.respondErrorStatus(w, r, err, status)
}

// respondReauthError is for signed-in callers confirming a password or code.
// A wrong password is 403 so clients do not mistake it for a dead access token.
func (s *Server) respondReauthError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if errors.Is(err, common.ErrInvalidCredentials) {
		status = http.StatusForbidden
	}
	s.respondErrorStatus(w, r, err, status)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		s.respondLinkError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "password updated"})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	user, err := s.auth.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		s.respondLinkError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newUserResponse(user))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	user, err := s.auth.Me(r.Context(), id.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newUserResponse(user))
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	id, _ := identityFrom(r.Context())
	if err := s.auth.RequestEmailChange(r.Context(), id.UserID, req.NewEmail); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, messageResponse{Message: "confirmation sent to the new address"})
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	sent, err := s.auth.RequestEmailVerification(r.Context(), id.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	status := http.StatusAccepted
	if !sent {
		status = http.StatusOK
	}
	s.respondJSON(w, status, resendResponse{Sent: sent})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	id, _ := identityFrom(r.Context())
	if err := s.auth.ChangePassword(r.Context(), id.UserID, id.SessionID, req.CurrentPassword, req.NewPassword); err != nil {
		s.respondReauthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTwoFactorSetup(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	key, err := s.auth.SetupTOTP(r.Context(), id.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, totpSetupResponse{Secret: key.Secret, OTPAuthURL: key.URL})
}

func (s *Server) handleTwoFactorEnable(w http.ResponseWriter, r *http.Request) {
	var req twoFactorRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	id, _ := identityFrom(r.Context())
	var err error
	switch req.Method {
	case "", "totp":
		err = s.auth.EnableTOTP(r.Context(), id.UserID, req.Secret, req.Token)
	case "email":
		err = s.auth.EnableEmailTwoFactor(r.Context(), id.UserID, req.Password)
	default:
		err = common.NewValidationError("unknown two-factor method")
	}
	if err != nil {
		s.respondReauthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTwoFactorDisable(w http.ResponseWriter, r *http.Request) {
	var req twoFactorRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	id, _ := identityFrom(r.Context())
	if err := s.auth.DisableTwoFactor(r.Context(), id.UserID, req.Token, req.Password); err != nil {
		s.respondReauthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
