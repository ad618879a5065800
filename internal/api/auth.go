package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tgienger/depplan/internal/models"
)

// Credentials are the login form fields.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration are the sign-up form fields.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, creds, &resp); err != nil {
		return nil, fmt.Errorf("api.Login: %w", err)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("api.Login: response carried no token")
	}
	return &resp, nil
}

// Register creates an account. The returned string is the server's
// confirmation message; the account must be verified before login.
func (c *Client) Register(ctx context.Context, reg Registration) (string, error) {
	var msg string
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, reg, &msg); err != nil {
		return "", fmt.Errorf("api.Register: %w", err)
	}
	return msg, nil
}

// Me returns the profile of the token's owner.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &user); err != nil {
		return nil, fmt.Errorf("api.Me: %w", err)
	}
	return &user, nil
}

// VerifyEmail confirms an account with the token from the verification mail.
func (c *Client) VerifyEmail(ctx context.Context, token string) (string, error) {
	var msg string
	q := url.Values{"token": {token}}
	if err := c.do(ctx, http.MethodPost, "/auth/verify-email", q, nil, &msg); err != nil {
		return "", fmt.Errorf("api.VerifyEmail: %w", err)
	}
	return msg, nil
}

// ResendVerification asks the server to mail a new verification token.
func (c *Client) ResendVerification(ctx context.Context, email string) (string, error) {
	var msg string
	body := map[string]string{"email": email}
	if err := c.do(ctx, http.MethodPost, "/auth/resend-verification", nil, body, &msg); err != nil {
		return "", fmt.Errorf("api.ResendVerification: %w", err)
	}
	return msg, nil
}
