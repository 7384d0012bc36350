package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zerohouse/eventhost/internal/heygen"
)

// providerErrorCode buckets provider failures for the error counter. API
// rejections label by upstream status, everything else is a transport fault.
func providerErrorCode(err error) string {
	var apiErr *heygen.APIError
	if errors.As(err, &apiErr) {
		return strconv.Itoa(apiErr.Status)
	}
	return "transport"
}

type provisionRequest struct {
	AvatarID string `json:"avatarId"`
}

type provisionResponse struct {
	SessionID       string `json:"sessionId"`
	MediaRoomURL    string `json:"mediaRoomUrl"`
	RoomAccessToken string `json:"roomAccessToken"`
}

type taskRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	TaskType  string `json:"taskType"`
}

type taskResponse struct {
	Success bool   `json:"success"`
	Reply   string `json:"reply,omitempty"`
	TaskID  string `json:"taskId,omitempty"`
}

type directStartRequest struct {
	SessionToken string `json:"sessionToken"`
}

type directStartResponse struct {
	MediaRoomURL    string `json:"mediaRoomUrl"`
	RoomAccessToken string `json:"roomAccessToken"`
	SessionID       string `json:"sessionId"`
}

type createTokenRequest struct {
	AvatarID string `json:"avatarId"`
}

type createTokenResponse struct {
	SessionToken string `json:"sessionToken"`
}

// requireProviderKey distinguishes a relay misconfiguration from a provider
// fault: without the server-held credential no outbound call is attempted.
func (s *Server) requireProviderKey(w http.ResponseWriter, endpoint string) bool {
	if s.cfg.HeyGenAPIKey != "" {
		return true
	}
	s.metrics.RelayRequests.WithLabelValues(endpoint, "config_error").Inc()
	respondError(w, http.StatusInternalServerError, "config_missing", "provider credential not configured")
	return false
}

func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	const endpoint = "session_new"

	var req provisionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.metrics.RelayRequests.WithLabelValues(endpoint, "invalid").Inc()
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.AvatarID) == "" {
		s.metrics.RelayRequests.WithLabelValues(endpoint, "invalid").Inc()
		respondError(w, http.StatusBadRequest, "invalid_request", "avatar id is required")
		return
	}
	if !s.requireProviderKey(w, endpoint) {
		return
	}

	started := time.Now()
	sess, err := s.provider.NewSession(r.Context(), req.AvatarID, s.cfg.HeyGenVoiceID, s.cfg.HeyGenQuality)
	s.metrics.ObserveProviderLatency(time.Since(started))
	if err != nil {
		s.metrics.RelayRequests.WithLabelValues(endpoint, "provider_error").Inc()
		s.metrics.ProviderErrors.WithLabelValues(endpoint, providerErrorCode(err)).Inc()
		respondError(w, http.StatusInternalServerError, "provider_error", err.Error())
		return
	}

	s.metrics.RelayRequests.WithLabelValues(endpoint, "ok").Inc()
	s.metrics.SessionsProvisioned.Inc()
	respondJSON(w, http.StatusOK, provisionResponse{
		SessionID:       sess.SessionID,
		MediaRoomURL:    sess.MediaRoomURL,
		RoomAccessToken: sess.RoomAccessToken,
	})
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	const endpoint = "session_task"

	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.metrics.RelayRequests.WithLabelValues(endpoint, "invalid").Inc()
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Text) == "" {
		s.metrics.RelayRequests.WithLabelValues(endpoint, "invalid").Inc()
		respondError(w, http.StatusBadRequest, "invalid_request", "session id and text are required")
		return
	}
	if !s.requireProviderKey(w, endpoint) {
		return
	}
	taskType := req.TaskType
	if taskType == "" {
		taskType = "repeat"
	}

	started := time.Now()
	res, err := s.provider.SendTask(r.Context(), req.SessionID, req.Text, taskType)
	s.metrics.ObserveProviderLatency(time.Since(started))
	if err != nil {
		s.metrics.RelayRequests.WithLabelValues(endpoint, "provider_error").Inc()
		s.metrics.ProviderErrors.WithLabelValues(endpoint, providerErrorCode(err)).Inc()
		respondError(w, http.StatusInternalServerError, "provider_error", err.Error())
		return
	}

	s.metrics.RelayRequests.WithLabelValues(endpoint, "ok").Inc()
	respondJSON(w, http.StatusOK, taskResponse{
		Success: true,
		Reply:   res.Reply,
		TaskID:  res.TaskID,
	})
}

func (s *Server) handleDirectStart(w http.ResponseWriter, r *http.Request) {
	const endpoint = "session_start"

	var req directStartRequest
	if err := decodeJSON(r, &req); err != nil {
		s.metrics.RelayRequests.WithLabelValues(endpoint, "invalid").Inc()
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.SessionToken) == "" {
		s.metrics.RelayRequests.WithLabelValues(endpoint, "invalid").Inc()
		respondError(w, http.StatusBadRequest, "invalid_request", "session token is required")
		return
	}
	if !s.requireProviderKey(w, endpoint) {
		return
	}

	started := time.Now()
	sess, err := s.provider.StartSession(r.Context(), req.SessionToken)
	s.metrics.ObserveProviderLatency(time.Since(started))
	if err != nil {
		s.metrics.RelayRequests.WithLabelValues(endpoint, "provider_error").Inc()
		s.metrics.ProviderErrors.WithLabelValues(endpoint, providerErrorCode(err)).Inc()
		respondError(w, http.StatusInternalServerError, "provider_error", err.Error())
		return
	}

	s.metrics.RelayRequests.WithLabelValues(endpoint, "ok").Inc()
	respondJSON(w, http.StatusOK, directStartResponse{
		MediaRoomURL:    sess.MediaRoomURL,
		RoomAccessToken: sess.RoomAccessToken,
		SessionID:       sess.SessionID,
	})
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	const endpoint = "create_token"

	var req createTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		s.metrics.RelayRequests.WithLabelValues(endpoint, "invalid").Inc()
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.AvatarID) == "" {
		s.metrics.RelayRequests.WithLabelValues(endpoint, "invalid").Inc()
		respondError(w, http.StatusBadRequest, "invalid_request", "avatar id is required")
		return
	}
	if !s.requireProviderKey(w, endpoint) {
		return
	}

	started := time.Now()
	token, err := s.provider.CreateToken(r.Context(), req.AvatarID)
	s.metrics.ObserveProviderLatency(time.Since(started))
	if err != nil {
		s.metrics.RelayRequests.WithLabelValues(endpoint, "provider_error").Inc()
		s.metrics.ProviderErrors.WithLabelValues(endpoint, providerErrorCode(err)).Inc()
		respondError(w, http.StatusInternalServerError, "provider_error", err.Error())
		return
	}

	s.metrics.RelayRequests.WithLabelValues(endpoint, "ok").Inc()
	respondJSON(w, http.StatusOK, createTokenResponse{SessionToken: token})
}
