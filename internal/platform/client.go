package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client is the typed TrueMatch API client. Every call goes through the
// pipeline, so authenticated calls pick up the current token and recover
// from an expired one transparently.
type Client struct {
	pipeline *Pipeline
}

// NewClient creates an API client on top of p.
func NewClient(p *Pipeline) *Client {
	return &Client{pipeline: p}
}

// Pipeline returns the underlying request pipeline.
func (c *Client) Pipeline() *Pipeline {
	return c.pipeline
}

// OnInvalidated forwards to the pipeline's session-invalidated signal.
func (c *Client) OnInvalidated(fn func(Event)) (cancel func()) {
	return c.pipeline.OnInvalidated(fn)
}

// call sends req and decodes a 2xx body into target. Non-2xx responses
// become *APIError.
func (c *Client) call(ctx context.Context, req Request, target any) error {
	resp, err := c.pipeline.Do(ctx, req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return newAPIError(resp)
	}
	if target == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for an access token. It does not touch the
// token store; persisting the token is the session manager's job.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var tr tokenResponse
	err := c.call(ctx, Request{
		Method:   http.MethodPost,
		Path:     LoginPath,
		Body:     LoginRequest{Email: email, Password: password},
		Exchange: true,
	}, &tr)
	if err != nil {
		return "", err
	}
	if tr.Token == "" {
		return "", fmt.Errorf("login response carried no token")
	}
	return tr.Token, nil
}

// Registration is the body of POST /auth/register.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, r Registration) error {
	return c.call(ctx, Request{
		Method:   http.MethodPost,
		Path:     RegisterPath,
		Body:     r,
		Exchange: true,
	}, nil)
}

// Refresh mints a new access token from the refresh cookie and saves it.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.pipeline.Refresh(ctx)
}

// Me fetches the profile of the user the current token belongs to.
func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	if err := c.call(ctx, Request{Method: http.MethodGet, Path: MePath}, &u); err != nil {
		return nil, err
	}
	if u == nil {
		u = User{}
	}
	return u, nil
}

// Logout asks the server to end the session and drop the refresh cookie.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, Request{Method: http.MethodPost, Path: LogoutPath, Body: struct{}{}}, nil)
}
