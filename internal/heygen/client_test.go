package heygen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewSessionUnwrapsDataEnvelope(t *testing.T) {
	var gotKey string
	var gotReq map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"session_id":"s1","url":"wss://room.example","access_token":"tok"}}`))
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: ts.URL})
	sess, err := c.NewSession(context.Background(), "avatar-1", "voice-1", "medium")
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if gotKey != "k" {
		t.Fatalf("X-Api-Key = %q, want %q", gotKey, "k")
	}
	voice, _ := gotReq["voice"].(map[string]any)
	if gotReq["avatar_id"] != "avatar-1" || gotReq["quality"] != "medium" || voice["voice_id"] != "voice-1" {
		t.Fatalf("unexpected provision request: %+v", gotReq)
	}
	if sess.SessionID != "s1" || sess.MediaRoomURL != "wss://room.example" || sess.RoomAccessToken != "tok" {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestNewSessionRejectsIncompleteData(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"session_id":"s1","url":"wss://room.example"}}`))
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: ts.URL})
	if _, err := c.NewSession(context.Background(), "avatar-1", "", ""); err == nil {
		t.Fatalf("NewSession() should fail when access_token is missing")
	}
}

func TestPostParsesStructuredError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":400123,"message":"avatar not found"}`))
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: ts.URL})
	_, err := c.NewSession(context.Background(), "avatar-1", "", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "avatar not found" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestPostFallsBackToRawBodyError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: ts.URL})
	_, err := c.SendTask(context.Background(), "s1", "hello", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if !strings.Contains(apiErr.Message, "502") || !strings.Contains(apiErr.Message, "upstream exploded") {
		t.Fatalf("fallback message = %q, want status and raw body", apiErr.Message)
	}
}

func TestSendTaskDefaultsAndTopLevelReply(t *testing.T) {
	var gotReq map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{"reply":"2 PM","task_id":"t1"}`))
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: ts.URL})
	res, err := c.SendTask(context.Background(), "s1", "What time?", "")
	if err != nil {
		t.Fatalf("SendTask() error = %v", err)
	}
	if gotReq["task_type"] != "repeat" || gotReq["task_mode"] != "sync" {
		t.Fatalf("unexpected task request: %+v", gotReq)
	}
	if res.Reply != "2 PM" || res.TaskID != "t1" {
		t.Fatalf("unexpected task result: %+v", res)
	}
}

func TestSendTaskValidatesInputBeforeCall(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: ts.URL})
	if _, err := c.SendTask(context.Background(), "", "hello", ""); err == nil {
		t.Fatalf("SendTask() should reject missing session id")
	}
	if called {
		t.Fatalf("no outbound call should be made on invalid input")
	}
}

func TestCreateTokenChecksAllKnownLocations(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"nested session_token", `{"data":{"session_token":"tok"}}`},
		{"nested token", `{"data":{"token":"tok"}}`},
		{"top-level access_token", `{"access_token":"tok"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer ts.Close()

			c := NewClient(Config{APIKey: "k", BaseURL: ts.URL})
			tok, err := c.CreateToken(context.Background(), "avatar-1")
			if err != nil {
				t.Fatalf("CreateToken() error = %v", err)
			}
			if tok != "tok" {
				t.Fatalf("token = %q, want %q", tok, "tok")
			}
		})
	}
}

func TestStartSessionSendsConnectionOffer(t *testing.T) {
	var gotReq map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{"data":{"session_id":"s2","url":"wss://room.example","access_token":"tok2"}}`))
	}))
	defer ts.Close()

	c := NewClient(Config{BaseURL: ts.URL})
	sess, err := c.StartSession(context.Background(), "session-token")
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	sdp, _ := gotReq["sdp"].(map[string]any)
	if gotReq["session_token"] != "session-token" || sdp["type"] != "offer" {
		t.Fatalf("unexpected start request: %+v", gotReq)
	}
	if sess.SessionID != "s2" || sess.RoomAccessToken != "tok2" {
		t.Fatalf("unexpected session: %+v", sess)
	}
}
