package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zerohouse/eventhost/internal/config"
	"github.com/zerohouse/eventhost/internal/events"
	"github.com/zerohouse/eventhost/internal/heygen"
	"github.com/zerohouse/eventhost/internal/mail"
	"github.com/zerohouse/eventhost/internal/observability"
)

type fakeProvider struct {
	session    heygen.Session
	task       heygen.TaskResult
	token      string
	err        error
	calls      int
	lastTaskID string
	lastText   string
	lastType   string
}

func (f *fakeProvider) NewSession(_ context.Context, avatarID, voiceID, quality string) (heygen.Session, error) {
	f.calls++
	return f.session, f.err
}

func (f *fakeProvider) SendTask(_ context.Context, sessionID, text, taskType string) (heygen.TaskResult, error) {
	f.calls++
	f.lastTaskID = sessionID
	f.lastText = text
	f.lastType = taskType
	return f.task, f.err
}

func (f *fakeProvider) StartSession(_ context.Context, sessionToken string) (heygen.Session, error) {
	f.calls++
	return f.session, f.err
}

func (f *fakeProvider) CreateToken(_ context.Context, avatarID string) (string, error) {
	f.calls++
	return f.token, f.err
}

type fakeMailer struct {
	configured bool
	result     mail.SendResult
	err        error
	last       mail.Invitation
	sent       int
}

func (f *fakeMailer) Configured() bool { return f.configured }

func (f *fakeMailer) SendInvitation(_ context.Context, inv mail.Invitation) (mail.SendResult, error) {
	f.sent++
	f.last = inv
	return f.result, f.err
}

func testMetrics(t *testing.T, name string) *observability.Metrics {
	t.Helper()
	return observability.NewMetrics("test_httpapi_" + name + "_" + time.Now().Format("150405") + "_" + time.Now().Format("000000000"))
}

func newTestServer(t *testing.T, name string, cfg config.Config, provider AvatarProvider, mailer Mailer) *httptest.Server {
	t.Helper()
	store := events.NewInMemoryStore()
	srv := New(cfg, provider, store, mailer, testMetrics(t, name))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any, token string) *http.Response {
	t.Helper()
	raw, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	return res
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestCORSPreflight(t *testing.T) {
	cfg := config.Config{HeyGenAPIKey: "key"}
	ts := newTestServer(t, "cors", cfg, &fakeProvider{}, &fakeMailer{})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/v1/avatar/session/new", nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("preflight status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin = %q, want *", got)
	}
	if got := res.Header.Get("Access-Control-Allow-Headers"); !strings.Contains(got, "X-Client-Info") {
		t.Fatalf("allow-headers = %q, missing X-Client-Info", got)
	}
}

func TestAvatarEndpointsRejectNonPOST(t *testing.T) {
	cfg := config.Config{HeyGenAPIKey: "key"}
	ts := newTestServer(t, "method", cfg, &fakeProvider{}, &fakeMailer{})

	res, err := http.Get(ts.URL + "/v1/avatar/session/new")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d, want %d", res.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestBearerAuth(t *testing.T) {
	cfg := config.Config{HeyGenAPIKey: "key", RelayAuthToken: "relay-secret"}
	provider := &fakeProvider{session: heygen.Session{SessionID: "s1", MediaRoomURL: "wss://r", RoomAccessToken: "tok"}}
	ts := newTestServer(t, "auth", cfg, provider, &fakeMailer{})

	res := postJSON(t, ts.URL+"/v1/avatar/session/new", map[string]string{"avatarId": "a1"}, "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
	res.Body.Close()
	if provider.calls != 0 {
		t.Fatalf("provider called despite auth failure")
	}

	res = postJSON(t, ts.URL+"/v1/avatar/session/new", map[string]string{"avatarId": "a1"}, "relay-secret")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	body := decodeBody(t, res)
	if body["sessionId"] != "s1" || body["mediaRoomUrl"] != "wss://r" || body["roomAccessToken"] != "tok" {
		t.Fatalf("unexpected provision body: %+v", body)
	}
}

func TestProvisionValidatesBeforeProviderCall(t *testing.T) {
	cfg := config.Config{HeyGenAPIKey: "key"}
	provider := &fakeProvider{}
	ts := newTestServer(t, "validate", cfg, provider, &fakeMailer{})

	res := postJSON(t, ts.URL+"/v1/avatar/session/new", map[string]string{"avatarId": "   "}, "")
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
	if body["code"] != "invalid_request" {
		t.Fatalf("code = %v, want invalid_request", body["code"])
	}
	if provider.calls != 0 {
		t.Fatalf("provider called for invalid input")
	}
}

func TestProvisionMissingProviderKey(t *testing.T) {
	cfg := config.Config{}
	provider := &fakeProvider{}
	ts := newTestServer(t, "nokey", cfg, provider, &fakeMailer{})

	res := postJSON(t, ts.URL+"/v1/avatar/session/new", map[string]string{"avatarId": "a1"}, "")
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusInternalServerError)
	}
	if body["code"] != "config_missing" {
		t.Fatalf("code = %v, want config_missing", body["code"])
	}
	if !strings.Contains(body["error"].(string), "credential") {
		t.Fatalf("error = %v, want credential message", body["error"])
	}
	if provider.calls != 0 {
		t.Fatalf("provider called without credential")
	}
}

func TestProvisionThroughRealClient(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/streaming.new" {
			t.Errorf("upstream path = %q", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "provider-key" {
			t.Errorf("upstream api key = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"session_id":"sess-9","url":"wss://media.example","access_token":"room-token"}}`))
	}))
	defer upstream.Close()

	cfg := config.Config{
		HeyGenAPIKey:  "provider-key",
		HeyGenVoiceID: "voice-1",
		HeyGenQuality: "medium",
	}
	client := heygen.NewClient(heygen.Config{APIKey: cfg.HeyGenAPIKey, BaseURL: upstream.URL})
	ts := newTestServer(t, "real", cfg, client, &fakeMailer{})

	res := postJSON(t, ts.URL+"/v1/avatar/session/new", map[string]string{"avatarId": "a1"}, "")
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %+v", res.StatusCode, body)
	}
	if body["sessionId"] != "sess-9" || body["mediaRoomUrl"] != "wss://media.example" || body["roomAccessToken"] != "room-token" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestTaskDefaultsAndReply(t *testing.T) {
	cfg := config.Config{HeyGenAPIKey: "key"}
	provider := &fakeProvider{task: heygen.TaskResult{Reply: "See you there!", TaskID: "t-1"}}
	ts := newTestServer(t, "task", cfg, provider, &fakeMailer{})

	res := postJSON(t, ts.URL+"/v1/avatar/session/task", map[string]string{
		"sessionId": "sess-1",
		"text":      "When does it start?",
	}, "")
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %+v", res.StatusCode, body)
	}
	if body["success"] != true || body["reply"] != "See you there!" || body["taskId"] != "t-1" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if provider.lastType != "repeat" {
		t.Fatalf("task type = %q, want repeat default", provider.lastType)
	}
	if provider.lastText != "When does it start?" {
		t.Fatalf("text = %q", provider.lastText)
	}
}

func TestTaskProviderFailure(t *testing.T) {
	cfg := config.Config{HeyGenAPIKey: "key"}
	provider := &fakeProvider{err: &heygen.APIError{Status: 400, Message: "session not found"}}
	ts := newTestServer(t, "taskerr", cfg, provider, &fakeMailer{})

	res := postJSON(t, ts.URL+"/v1/avatar/session/task", map[string]string{
		"sessionId": "gone",
		"text":      "hello",
	}, "")
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusInternalServerError)
	}
	if body["code"] != "provider_error" || body["error"] != "session not found" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestDirectStart(t *testing.T) {
	cfg := config.Config{HeyGenAPIKey: "key"}
	provider := &fakeProvider{session: heygen.Session{SessionID: "s2", MediaRoomURL: "wss://m", RoomAccessToken: "rt"}}
	ts := newTestServer(t, "start", cfg, provider, &fakeMailer{})

	res := postJSON(t, ts.URL+"/v1/avatar/session/start", map[string]string{"sessionToken": "st-1"}, "")
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %+v", res.StatusCode, body)
	}
	if body["mediaRoomUrl"] != "wss://m" || body["sessionId"] != "s2" {
		t.Fatalf("unexpected body: %+v", body)
	}

	res = postJSON(t, ts.URL+"/v1/avatar/session/start", map[string]string{}, "")
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing token status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
	res.Body.Close()
}

func TestCreateToken(t *testing.T) {
	cfg := config.Config{HeyGenAPIKey: "key"}
	provider := &fakeProvider{token: "sess-token-1"}
	ts := newTestServer(t, "token", cfg, provider, &fakeMailer{})

	res := postJSON(t, ts.URL+"/v1/avatar/token", map[string]string{"avatarId": "a1"}, "")
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %+v", res.StatusCode, body)
	}
	if body["sessionToken"] != "sess-token-1" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestEventGetAndUpdate(t *testing.T) {
	cfg := config.Config{HeyGenAPIKey: "key"}
	ts := newTestServer(t, "events", cfg, &fakeProvider{}, &fakeMailer{})

	seeded := events.SeedEvent()

	res, err := http.Get(ts.URL + "/v1/events/" + seeded.ID)
	if err != nil {
		t.Fatalf("get event error = %v", err)
	}
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", res.StatusCode)
	}
	if body["title"] != seeded.Title {
		t.Fatalf("title = %v, want %q", body["title"], seeded.Title)
	}

	res = postJSON(t, ts.URL+"/v1/events/"+seeded.ID, map[string]string{"title": "Renamed Party"}, "")
	body = decodeBody(t, res)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, body %+v", res.StatusCode, body)
	}
	if body["title"] != "Renamed Party" {
		t.Fatalf("updated title = %v", body["title"])
	}
	if body["location"] != seeded.Location {
		t.Fatalf("location changed by partial update: %v", body["location"])
	}

	res, err = http.Get(ts.URL + "/v1/events/nope")
	if err != nil {
		t.Fatalf("get missing event error = %v", err)
	}
	body = decodeBody(t, res)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing event status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
	if body["code"] != "not_found" {
		t.Fatalf("code = %v, want not_found", body["code"])
	}
}

func TestSendInvitation(t *testing.T) {
	cfg := config.Config{HeyGenAPIKey: "key"}
	mailer := &fakeMailer{configured: true, result: mail.SendResult{Success: true, Message: "Invitation sent successfully!"}}
	ts := newTestServer(t, "invite", cfg, &fakeProvider{}, mailer)

	res := postJSON(t, ts.URL+"/v1/invitations/email", map[string]string{
		"to":         "guest@example.com",
		"name":       "Jamie",
		"eventTitle": "Launch Party",
	}, "")
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %+v", res.StatusCode, body)
	}
	if body["success"] != true {
		t.Fatalf("unexpected body: %+v", body)
	}
	if mailer.last.To != "guest@example.com" || mailer.last.Name != "Jamie" {
		t.Fatalf("invitation fields = %+v", mailer.last)
	}
}

func TestSendInvitationValidation(t *testing.T) {
	cfg := config.Config{HeyGenAPIKey: "key"}
	mailer := &fakeMailer{configured: true}
	ts := newTestServer(t, "invitebad", cfg, &fakeProvider{}, mailer)

	res := postJSON(t, ts.URL+"/v1/invitations/email", map[string]string{"to": ""}, "")
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty recipient status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
	res.Body.Close()

	res = postJSON(t, ts.URL+"/v1/invitations/email", map[string]string{"to": "not-an-address"}, "")
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed recipient status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
	res.Body.Close()
	if mailer.sent != 0 {
		t.Fatalf("mailer called for invalid input")
	}
}

func TestSendInvitationUnconfigured(t *testing.T) {
	cfg := config.Config{HeyGenAPIKey: "key"}
	ts := newTestServer(t, "invitecfg", cfg, &fakeProvider{}, &fakeMailer{configured: false})

	res := postJSON(t, ts.URL+"/v1/invitations/email", map[string]string{"to": "guest@example.com"}, "")
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusInternalServerError)
	}
	if body["code"] != "config_missing" {
		t.Fatalf("code = %v, want config_missing", body["code"])
	}
}

func TestHealth(t *testing.T) {
	cfg := config.Config{HeyGenAPIKey: "key"}
	ts := newTestServer(t, "health", cfg, &fakeProvider{}, &fakeMailer{configured: true})

	res, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz error = %v", err)
	}
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if body["status"] != "ok" || body["provider_configured"] != true || body["mail_configured"] != true {
		t.Fatalf("unexpected health body: %+v", body)
	}
}
