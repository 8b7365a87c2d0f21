package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
)

var (
	ErrRateLimited        = errors.New("too many requests")
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// APIError is a failure reported by the server. It unwraps to the sentinel
// named by its code.
type APIError struct {
	Status  int
	Code    string
	Message string

	err error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
}

func (e *APIError) Unwrap() error {
	return e.err
}

type errorBody struct {
	Error            string `json:"error"`
	Message          string `json:"message"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

const maxErrorBodyBytes = 64 << 10

func errorFromResponse(resp *http.Response) error {
	var body errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, maxErrorBodyBytes)).Decode(&body)

	apiErr := &APIError{Status: resp.StatusCode, Code: body.Error, Message: body.Message}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	switch {
	case body.Error == common.CodeLocked || resp.StatusCode == http.StatusLocked:
		apiErr.err = &common.AccountLockedError{Remaining: time.Duration(body.RemainingSeconds) * time.Second}
	case body.Error == common.CodeRateLimited || resp.StatusCode == http.StatusTooManyRequests:
		apiErr.err = ErrRateLimited
	default:
		apiErr.err = common.ErrorForCode(body.Error)
		if apiErr.err == nil {
			apiErr.err = errorForStatus(resp.StatusCode)
		}
	}
	return apiErr
}

// errorForStatus covers responses without a known code, e.g. from a proxy.
func errorForStatus(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return common.ErrTokenInvalid
	case http.StatusBadRequest:
		return common.ErrValidation
	case http.StatusConflict:
		return common.ErrEmailInUse
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return common.ErrRequestTimeout
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return common.ErrNetwork
	default:
		if status >= http.StatusInternalServerError {
			return common.ErrInternal
		}
		return ErrUnexpectedResponse
	}
}

// transportError classifies a failure to get a response at all.
func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %w", common.ErrRequestTimeout, err)
	}
	return fmt.Errorf("%w: %w", common.ErrNetwork, err)
}
