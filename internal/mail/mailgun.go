// Package mail sends transactional invitation email through Mailgun.
package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Invitation carries everything the invitation template needs.
type Invitation struct {
	To         string `json:"to"`
	Name       string `json:"name"`
	EventTitle string `json:"eventTitle"`
	EventDate  string `json:"eventDate"`
	EventTime  string `json:"eventTime"`
	InviteLink string `json:"inviteLink"`
}

// SendResult mirrors what the invitation UI shows the organizer.
type SendResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Config struct {
	APIKey  string
	Domain  string
	From    string
	BaseURL string
	Timeout time.Duration
}

// Sender posts messages to the Mailgun REST API.
type Sender struct {
	cfg  Config
	http *http.Client
}

func NewSender(cfg Config) *Sender {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.mailgun.net"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Sender{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether the sender has credentials. Missing configuration
// is an operator problem, not a provider fault, and callers surface it as such.
func (s *Sender) Configured() bool {
	return strings.TrimSpace(s.cfg.APIKey) != "" &&
		strings.TrimSpace(s.cfg.Domain) != "" &&
		strings.TrimSpace(s.cfg.From) != ""
}

// SendInvitation renders and sends one invitation email.
func (s *Sender) SendInvitation(ctx context.Context, inv Invitation) (SendResult, error) {
	if strings.TrimSpace(inv.To) == "" {
		return SendResult{}, fmt.Errorf("recipient address is required")
	}
	if !s.Configured() {
		return SendResult{}, fmt.Errorf("mailgun credentials not configured")
	}

	html, err := renderInvitation(inv)
	if err != nil {
		return SendResult{}, fmt.Errorf("render invitation: %w", err)
	}

	form := url.Values{}
	form.Set("from", s.cfg.From)
	form.Set("to", inv.To)
	form.Set("subject", "You're invited: "+inv.EventTitle)
	form.Set("html", html)

	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + "/v3/" + s.cfg.Domain + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SendResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", s.cfg.APIKey)

	res, err := s.http.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return SendResult{
			Success: false,
			Message: fmt.Sprintf("mailgun status %d: %s", res.StatusCode, mailgunMessage(body)),
		}, nil
	}

	msg := mailgunMessage(body)
	if msg == "" {
		msg = "Invitation sent"
	}
	return SendResult{Success: true, Message: msg}, nil
}

func mailgunMessage(body []byte) string {
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return strings.TrimSpace(string(body))
}
