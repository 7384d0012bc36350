package heygen

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

// Client calls the HeyGen streaming-avatar HTTP API. It holds the server-side
// provider credential; nothing here is safe to expose to browsers directly.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Session is the normalized provisioning result: everything a client needs to
// address the session and join its real-time room.
type Session struct {
	SessionID       string `json:"sessionId"`
	MediaRoomURL    string `json:"mediaRoomUrl"`
	RoomAccessToken string `json:"roomAccessToken"`
}

// TaskResult is the synchronous outcome of one text task. Reply may be empty:
// the provider can accept a task without answering inline.
type TaskResult struct {
	Reply  string `json:"reply,omitempty"`
	TaskID string `json:"taskId,omitempty"`
}

// APIError is a non-success response from the provider, reduced to a single
// human-readable message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.heygen.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// NewSession provisions a streaming session and its room credentials.
func (c *Client) NewSession(ctx context.Context, avatarID, voiceID, quality string) (Session, error) {
	if strings.TrimSpace(avatarID) == "" {
		return Session{}, fmt.Errorf("avatar id is required")
	}
	if quality == "" {
		quality = "medium"
	}
	payload := map[string]any{
		"quality":   quality,
		"avatar_id": avatarID,
	}
	if voiceID != "" {
		payload["voice"] = map[string]any{"voice_id": voiceID}
	}

	obj, err := c.post(ctx, "/v1/streaming.new", payload)
	if err != nil {
		return Session{}, err
	}
	sess := Session{
		SessionID:       pick(obj, "session_id"),
		MediaRoomURL:    pick(obj, "url"),
		RoomAccessToken: pick(obj, "access_token"),
	}
	if sess.SessionID == "" || sess.MediaRoomURL == "" || sess.RoomAccessToken == "" {
		return Session{}, fmt.Errorf("incomplete session data from provider")
	}
	return sess, nil
}

// SendTask forwards one text instruction to an active session and waits for
// the synchronous result.
func (c *Client) SendTask(ctx context.Context, sessionID, text, taskType string) (TaskResult, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(text) == "" {
		return TaskResult{}, fmt.Errorf("session id and text are required")
	}
	if taskType == "" {
		taskType = "repeat"
	}

	obj, err := c.post(ctx, "/v1/streaming.task", map[string]any{
		"session_id": sessionID,
		"text":       text,
		"task_type":  taskType,
		"task_mode":  "sync",
	})
	if err != nil {
		return TaskResult{}, err
	}
	return TaskResult{
		Reply:  pick(obj, "reply"),
		TaskID: pick(obj, "task_id"),
	}, nil
}

// StartSession is the alternate provisioning path: a pre-issued session token
// plus a connection offer, returning the same room-credential shape.
func (c *Client) StartSession(ctx context.Context, sessionToken string) (Session, error) {
	if strings.TrimSpace(sessionToken) == "" {
		return Session{}, fmt.Errorf("session token is required")
	}

	obj, err := c.post(ctx, "/v1/streaming.start", map[string]any{
		"session_token": sessionToken,
		"sdp":           map[string]any{"type": "offer"},
	})
	if err != nil {
		return Session{}, err
	}
	sess := Session{
		SessionID:       pick(obj, "session_id"),
		MediaRoomURL:    pick(obj, "url"),
		RoomAccessToken: pick(obj, "access_token"),
	}
	if sess.SessionID == "" || sess.MediaRoomURL == "" || sess.RoomAccessToken == "" {
		return Session{}, fmt.Errorf("incomplete session data from provider")
	}
	return sess, nil
}

// CreateToken issues a session token for an avatar. The provider has shipped
// this field under several names, so all known locations are checked.
func (c *Client) CreateToken(ctx context.Context, avatarID string) (string, error) {
	if strings.TrimSpace(avatarID) == "" {
		return "", fmt.Errorf("avatar id is required")
	}

	obj, err := c.post(ctx, "/v1/streaming.create_token", map[string]any{
		"avatar_id": avatarID,
	})
	if err != nil {
		return "", err
	}
	for _, key := range []string{"session_token", "token", "access_token"} {
		if tok := pick(obj, key); tok != "" {
			return tok, nil
		}
	}
	return "", fmt.Errorf("no session token in provider response")
}

func (c *Client) post(ctx context.Context, path string, payload any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &APIError{Status: res.StatusCode, Message: errorMessage(res.StatusCode, raw)}
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return obj, nil
}

// errorMessage extracts a structured provider error message, falling back to
// the raw status and body when the body is not JSON.
func errorMessage(status int, body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		if msg := asString(obj["message"]); msg != "" {
			return msg
		}
		if msg := asString(obj["error"]); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("heygen api status %d: %s", status, strings.TrimSpace(string(body)))
}

// pick reads a string field from the provider's nested data wrapper, falling
// back to the top level of the response.
func pick(obj map[string]any, key string) string {
	if data, ok := obj["data"].(map[string]any); ok {
		if v := asString(data[key]); v != "" {
			return v
		}
	}
	return asString(obj[key])
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
