package httpapi

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zerohouse/eventhost/internal/events"
	sendmail "github.com/zerohouse/eventhost/internal/mail"
)

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ev, err := s.events.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "event not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, ev)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch events.Patch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ev, err := s.events.Update(r.Context(), id, patch)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "event not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, ev)
}

type invitationRequest struct {
	To         string `json:"to"`
	Name       string `json:"name"`
	EventTitle string `json:"eventTitle"`
	EventDate  string `json:"eventDate"`
	EventTime  string `json:"eventTime"`
	InviteLink string `json:"inviteLink"`
}

func (s *Server) handleSendInvitation(w http.ResponseWriter, r *http.Request) {
	const endpoint = "invitation_email"

	var req invitationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.metrics.RelayRequests.WithLabelValues(endpoint, "invalid").Inc()
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	to := strings.TrimSpace(req.To)
	if to == "" {
		s.metrics.RelayRequests.WithLabelValues(endpoint, "invalid").Inc()
		respondError(w, http.StatusBadRequest, "invalid_request", "recipient address is required")
		return
	}
	if _, err := mail.ParseAddress(to); err != nil {
		s.metrics.RelayRequests.WithLabelValues(endpoint, "invalid").Inc()
		respondError(w, http.StatusBadRequest, "invalid_request", "recipient address is not valid")
		return
	}
	if s.mailer == nil || !s.mailer.Configured() {
		s.metrics.RelayRequests.WithLabelValues(endpoint, "config_error").Inc()
		respondError(w, http.StatusInternalServerError, "config_missing", "mail credential not configured")
		return
	}

	res, err := s.mailer.SendInvitation(r.Context(), sendmail.Invitation{
		To:         to,
		Name:       strings.TrimSpace(req.Name),
		EventTitle: req.EventTitle,
		EventDate:  req.EventDate,
		EventTime:  req.EventTime,
		InviteLink: req.InviteLink,
	})
	if err != nil {
		s.metrics.RelayRequests.WithLabelValues(endpoint, "error").Inc()
		s.metrics.EmailSends.WithLabelValues("error").Inc()
		respondError(w, http.StatusInternalServerError, "mail_error", err.Error())
		return
	}

	if res.Success {
		s.metrics.EmailSends.WithLabelValues("sent").Inc()
		s.metrics.RelayRequests.WithLabelValues(endpoint, "ok").Inc()
	} else {
		s.metrics.EmailSends.WithLabelValues("rejected").Inc()
		s.metrics.RelayRequests.WithLabelValues(endpoint, "upstream_error").Inc()
	}
	respondJSON(w, http.StatusOK, res)
}
