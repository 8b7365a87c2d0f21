package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", time.Second, srv.Client())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin_Tokens(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathLogin, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "a@example.com", in.Email)

		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken":     "acc",
			"refreshToken":    "ref",
			"accessExpiresAt": "2026-03-01T12:15:00Z",
			"user":            map[string]any{"id": "u1", "role": "user", "emailVerified": true},
		})
	})

	res, err := c.Login(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	assert.Nil(t, res.Pending)
	assert.Equal(t, "ref", res.Tokens.RefreshToken)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC), res.Tokens.AccessExpiresAt)
	assert.Equal(t, "u1", res.User.ID)
	assert.True(t, res.User.EmailVerified)
}

func TestLogin_PendingTwoFactor(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"requires2FA": true, "tempToken": "tmp", "channel": "totp"})
	})

	res, err := c.Login(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)
	assert.Nil(t, res.Tokens)
	require.NotNil(t, res.Pending)
	assert.Equal(t, "tmp", res.Pending.TempToken)
	assert.Equal(t, "totp", res.Pending.Channel)
}

func TestLogin_EmptyTokensIsUnexpected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	_, err := c.Login(context.Background(), "a@example.com", "pw")
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   error
	}{
		{"credentials", 401, errorBody{Error: common.CodeInvalidCredentials, Message: "invalid credentials"}, common.ErrInvalidCredentials},
		{"reused", 401, errorBody{Error: common.CodeReused}, common.ErrTokenReused},
		{"session expired", 401, errorBody{Error: common.CodeSessionExpired}, common.ErrSessionExpired},
		{"expired", 401, errorBody{Error: common.CodeExpired}, common.ErrTokenExpired},
		{"ticket", 410, errorBody{Error: common.CodeTicketExpired}, common.ErrTicketExpired},
		{"verification", 410, errorBody{Error: common.CodeVerificationExpired}, common.ErrVerificationExpired},
		{"invalid code", 400, errorBody{Error: common.CodeInvalidCode}, common.ErrInvalidCode},
		{"email in use", 409, errorBody{Error: common.CodeEmailInUse}, common.ErrEmailInUse},
		{"rate limited", 429, errorBody{Error: common.CodeRateLimited}, ErrRateLimited},
		{"bare 401", 401, "nope", common.ErrTokenInvalid},
		{"bare 502", 502, nil, common.ErrNetwork},
		{"bare 500", 500, nil, common.ErrInternal},
		{"bare 418", 418, nil, ErrUnexpectedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			err := c.Do(context.Background(), http.MethodGet, "/x", "", nil, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestErrorMapping_LockedCarriesRemaining(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusLocked, errorBody{Error: common.CodeLocked, Message: "locked", RemainingSeconds: 240})
	})

	_, err := c.Login(context.Background(), "a@example.com", "pw")
	assert.ErrorIs(t, err, common.ErrAccountLocked)

	var locked *common.AccountLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, 240*time.Second, locked.Remaining)
}

func TestDo_BearerHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer acc", r.Header.Get(common.AuthorizationHeaderName))
		writeJSON(w, http.StatusOK, map[string]string{"id": "u1"})
	})

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, c.Do(context.Background(), http.MethodGet, PathMe, "acc", nil, &out))
	assert.Equal(t, "u1", out.ID)
}

func TestDo_NoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(common.AuthorizationHeaderName))
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, c.Logout(context.Background(), "ref"))
}

func TestDo_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewHTTPClient(srv.URL, 50*time.Millisecond, srv.Client())

	err := c.Health(context.Background())
	assert.ErrorIs(t, err, common.ErrRequestTimeout)
}

func TestDo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(url, time.Second, nil)

	err := c.Health(context.Background())
	assert.ErrorIs(t, err, common.ErrNetwork)
	assert.False(t, errors.Is(err, common.ErrRequestTimeout))
}

func TestDo_CallerCancel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Health(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewHTTPClient_Defaults(t *testing.T) {
	c := NewHTTPClient("http://example.com///", 0, nil)

	assert.Equal(t, "http://example.com", c.baseURL)
	assert.Equal(t, common.DefaultRequestTimeout, c.timeout)
	assert.NotNil(t, c.http)
}
