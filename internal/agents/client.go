package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AgentSession is one remote agent session as reported by the hub.
type AgentSession struct {
	SessionRef   string `json:"session_ref"`
	RoleRef      string `json:"role_ref"`
	Title        string `json:"title,omitempty"`
	Active       bool   `json:"active"`
	LastActiveMs int64  `json:"last_active_ms,omitempty"`
}

// SessionLayer is the external hub that owns the long-running agent
// sessions. The dispatcher sends corrected commands through it; the
// feedback worker reads recent session output through it.
type SessionLayer interface {
	ListSessions(ctx context.Context) ([]AgentSession, error)
	SendText(ctx context.Context, sessionRef, roleRef, text string) error
	CaptureOutput(ctx context.Context, sessionRef, roleRef string) (string, error)
}

// HTTPClient talks to a hub over its JSON HTTP API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) ListSessions(ctx context.Context) ([]AgentSession, error) {
	var out struct {
		Sessions []AgentSession `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/sessions", nil, &out); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out.Sessions, nil
}

func (c *HTTPClient) SendText(ctx context.Context, sessionRef, roleRef, text string) error {
	body := map[string]string{"role_ref": roleRef, "text": text}
	path := "/api/sessions/" + url.PathEscape(sessionRef) + "/send"
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

func (c *HTTPClient) CaptureOutput(ctx context.Context, sessionRef, roleRef string) (string, error) {
	var out struct {
		Output string `json:"output"`
	}
	path := "/api/sessions/" + url.PathEscape(sessionRef) + "/output?role_ref=" + url.QueryEscape(roleRef)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", fmt.Errorf("capture output: %w", err)
	}
	return out.Output, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return fmt.Errorf("hub status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
