package avatar

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

// ProvisionResult is the relay's normalized provisioning response. All three
// fields are mandatory; a partial response is a failed provision.
type ProvisionResult struct {
	SessionID       string `json:"sessionId"`
	MediaRoomURL    string `json:"mediaRoomUrl"`
	RoomAccessToken string `json:"roomAccessToken"`
}

// TaskReply is the relay's normalized task response.
type TaskReply struct {
	Success bool   `json:"success"`
	Reply   string `json:"reply,omitempty"`
	TaskID  string `json:"taskId,omitempty"`
}

// RelayClient talks to the trusted relay that holds the provider credential.
type RelayClient interface {
	Provision(ctx context.Context, avatarID string) (ProvisionResult, error)
	SendTask(ctx context.Context, sessionID, text, taskType string) (TaskReply, error)
}

// HTTPRelay is the production RelayClient, authenticating with the bearer
// credential configured on the client.
type HTTPRelay struct {
	baseURL   string
	authToken string
	http      *http.Client
}

func NewHTTPRelay(baseURL, authToken string, timeout time.Duration) *HTTPRelay {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRelay{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		authToken: strings.TrimSpace(authToken),
		http:      &http.Client{Timeout: timeout},
	}
}

func (r *HTTPRelay) Provision(ctx context.Context, avatarID string) (ProvisionResult, error) {
	var out ProvisionResult
	err := r.post(ctx, "/v1/avatar/session/new", map[string]string{"avatarId": avatarID}, &out)
	if err != nil {
		return ProvisionResult{}, err
	}
	if out.SessionID == "" || out.MediaRoomURL == "" || out.RoomAccessToken == "" {
		return ProvisionResult{}, fmt.Errorf("invalid session data received")
	}
	return out, nil
}

func (r *HTTPRelay) SendTask(ctx context.Context, sessionID, text, taskType string) (TaskReply, error) {
	var out TaskReply
	err := r.post(ctx, "/v1/avatar/session/task", map[string]string{
		"sessionId": sessionID,
		"text":      text,
		"taskType":  taskType,
	}, &out)
	if err != nil {
		return TaskReply{}, err
	}
	return out, nil
}

func (r *HTTPRelay) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}

	res, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var shaped struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(raw, &shaped); err == nil && shaped.Error != "" {
			return fmt.Errorf("%s", shaped.Error)
		}
		return fmt.Errorf("relay status %d", res.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
