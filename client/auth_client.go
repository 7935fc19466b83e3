package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	viqerrors "github.com/voiceiq/viq-cli/pkg/errors"
)

// LoginError is a login failure with the message shown to the user.
type LoginError struct {
	Message string
	Err     error
}

func (e *LoginError) Error() string { return e.Message }
func (e *LoginError) Unwrap() error { return e.Err }

// Login failures. Neither touches stored credentials.
var (
	ErrInvalidLogin = &LoginError{Message: "Invalid email or password.", Err: viqerrors.ErrUnauthorized}
	ErrNoToken      = &LoginError{Message: "No token received from server.", Err: viqerrors.ErrTransport}
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the POST /login response.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// Login exchanges credentials for an access token. No token is sent.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("encoding login request: %w", err)
	}

	var result LoginResult
	err = c.do(ctx, call{
		method:      http.MethodPost,
		path:        "/login",
		endpoint:    EndpointLogin,
		body:        bytes.NewReader(body),
		contentType: "application/json",
		noAuth:      true,
	}, &result)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			return nil, ErrInvalidLogin
		}
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, ErrNoToken
	}
	return &result, nil
}

// PingResult describes a reachability check.
type PingResult struct {
	BaseURL string        `json:"base_url"`
	Latency time.Duration `json:"latency"`
	Total   int           `json:"total_reports"`
}

// Ping checks the backend is reachable and the token is accepted by
// fetching a single report.
func (c *Client) Ping(ctx context.Context) (*PingResult, error) {
	start := time.Now()
	page, err := c.ListLogs(ctx, 1, 0)
	if err != nil {
		return nil, err
	}
	return &PingResult{BaseURL: c.BaseURL(), Latency: time.Since(start), Total: page.Total}, nil
}
