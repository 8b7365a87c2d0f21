package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/models"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
)

type HTTPClient struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// NewHTTPClient builds a client for baseURL. A nil hc uses a fresh
// http.Client; timeout <= 0 falls back to common.DefaultRequestTimeout.
func NewHTTPClient(baseURL string, timeout time.Duration, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = &http.Client{}
	}
	if timeout <= 0 {
		timeout = common.DefaultRequestTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    hc,
	}
}

func (c *HTTPClient) Do(ctx context.Context, method, path, accessToken string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return errorFromResponse(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return transportError(err)
		}
		return fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	return nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginBody is the union of the token and pending-2FA login responses.
type loginBody struct {
	AccessToken     string       `json:"accessToken"`
	RefreshToken    string       `json:"refreshToken"`
	AccessExpiresAt time.Time    `json:"accessExpiresAt"`
	User            *models.User `json:"user"`

	Requires2FA bool      `json:"requires2FA"`
	TempToken   string    `json:"tempToken"`
	Channel     string    `json:"channel"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (b *loginBody) response() (*LoginResponse, error) {
	if b.Requires2FA {
		return &LoginResponse{Pending: &models.PendingTwoFactor{
			TempToken: b.TempToken,
			Channel:   b.Channel,
			ExpiresAt: b.ExpiresAt,
		}}, nil
	}
	pair := &models.TokenPair{
		AccessToken:     b.AccessToken,
		RefreshToken:    b.RefreshToken,
		AccessExpiresAt: b.AccessExpiresAt,
	}
	if pair.Empty() {
		return nil, fmt.Errorf("%w: login response without tokens", ErrUnexpectedResponse)
	}
	return &LoginResponse{Tokens: pair, User: b.User}, nil
}

func (c *HTTPClient) Register(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	if err := c.Do(ctx, http.MethodPost, PathRegister, "", credentials{Email: email, Password: password}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var body loginBody
	if err := c.Do(ctx, http.MethodPost, PathLogin, "", credentials{Email: email, Password: password}, &body); err != nil {
		return nil, err
	}
	return body.response()
}

func (c *HTTPClient) Complete2FA(ctx context.Context, tempToken, code string) (*LoginResponse, error) {
	in := map[string]string{"tempToken": tempToken, "token": code}

	var body loginBody
	if err := c.Do(ctx, http.MethodPost, PathLogin2FA, "", in, &body); err != nil {
		return nil, err
	}
	return body.response()
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	var pair models.TokenPair
	in := map[string]string{"refreshToken": refreshToken}
	if err := c.Do(ctx, http.MethodPost, PathRefresh, "", in, &pair); err != nil {
		return nil, err
	}
	if pair.Empty() {
		return nil, fmt.Errorf("%w: refresh response without tokens", ErrUnexpectedResponse)
	}
	return &pair, nil
}

func (c *HTTPClient) Logout(ctx context.Context, refreshToken string) error {
	return c.Do(ctx, http.MethodPost, PathLogout, "", map[string]string{"refreshToken": refreshToken}, nil)
}

func (c *HTTPClient) ForgotPassword(ctx context.Context, email string) error {
	return c.Do(ctx, http.MethodPost, PathForgotPassword, "", map[string]string{"email": email}, nil)
}

func (c *HTTPClient) ResetPassword(ctx context.Context, token, newPassword string) error {
	in := map[string]string{"token": token, "newPassword": newPassword}
	return c.Do(ctx, http.MethodPost, PathResetPassword, "", in, nil)
}

func (c *HTTPClient) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	if err := c.Do(ctx, http.MethodPost, PathVerifyEmail, "", map[string]string{"token": token}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPClient) Health(ctx context.Context) error {
	return c.Do(ctx, http.MethodGet, PathHealth, "", nil, nil)
}
