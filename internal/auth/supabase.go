package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// User is the identity attached to a request after token verification.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	User         User   `json:"user"`
}

// Verifier resolves a bearer token to a user. The production implementation
// talks to Supabase GoTrue; DevVerifier backs the no-login local mode.
type Verifier interface {
	Verify(ctx context.Context, accessToken string) (User, error)
}

type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

func NewClient(baseURL, anonKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (c *Client) SignUp(ctx context.Context, email, password string) (Session, error) {
	var out Session
	err := c.postJSON(ctx, "/auth/v1/signup", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var out Session
	err := c.postJSON(ctx, "/auth/v1/token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	return out, err
}

func (c *Client) Verify(ctx context.Context, accessToken string) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return User{}, fmt.Errorf("verify token status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	return user, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in any, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("auth status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// DevVerifier accepts the seeded local accounts' emails as bearer tokens.
// Strictly for running without an auth provider.
type DevVerifier struct {
	users map[string]User
}

func NewDevVerifier() *DevVerifier {
	users := map[string]User{}
	for _, u := range []User{
		{ID: "00000000-0000-0000-0000-000000000001", Email: "admin@dev.local"},
		{ID: "00000000-0000-0000-0000-000000000002", Email: "player1@dev.local"},
		{ID: "00000000-0000-0000-0000-000000000003", Email: "player2@dev.local"},
		{ID: "00000000-0000-0000-0000-000000000004", Email: "player3@dev.local"},
		{ID: "00000000-0000-0000-0000-000000000005", Email: "player4@dev.local"},
		{ID: "00000000-0000-0000-0000-000000000006", Email: "player5@dev.local"},
	} {
		users[u.Email] = u
	}
	return &DevVerifier{users: users}
}

func (v *DevVerifier) Verify(_ context.Context, accessToken string) (User, error) {
	u, ok := v.users[strings.ToLower(strings.TrimSpace(accessToken))]
	if !ok {
		return User{}, fmt.Errorf("unknown dev account %q", accessToken)
	}
	return u, nil
}
