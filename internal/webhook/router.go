package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ovationhq/ovation-core/internal/stream"
	"github.com/ovationhq/ovation-core/internal/trigger"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/healthz", s.handleHealth)

	r.Route("/webhook", func(r chi.Router) {
		r.Post("/state_changed", s.entry(trigger.EventTypeStateChanged))
		r.Post("/notif_action", s.entry(trigger.EventTypeNotifAction))
		r.Post("/hub_startup", s.entry(trigger.EventTypeHubStarted))
		r.Post("/hub_shutdown", s.entry(trigger.EventTypeHubShutdown))

		// Generic fallback; the payload must carry its own event_type.
		r.Post("/event_fired", s.entry(""))
	})

	return r
}

// entry builds the handler for one webhook endpoint. A non-empty eventType is
// stamped onto the payload, so dedicated endpoints accept envelopes that omit
// it; the generic endpoint passes the payload through as-is.
func (s *Server) entry(eventType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeFailure(w, http.StatusBadRequest)
			return
		}

		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			s.logger.Warn("rejecting unparseable webhook payload", "path", r.URL.Path, "error", err)
			writeFailure(w, http.StatusBadRequest)
			return
		}

		if eventType != "" {
			payload["event_type"] = eventType
			body, err = json.Marshal(payload)
			if err != nil {
				writeFailure(w, http.StatusBadRequest)
				return
			}
		}

		if err := s.ingestor.Ingest(r.Context(), body); err != nil {
			if errors.Is(err, stream.ErrMalformedEvent) {
				s.logger.Warn("rejecting malformed webhook event", "path", r.URL.Path, "error", err)
				writeFailure(w, http.StatusBadRequest)
				return
			}
			// Processing failures are logged but still acknowledged; the hub
			// does not retry.
			s.logger.Error("webhook event processing failed", "path", r.URL.Path, "error", err)
		}

		writeSuccess(w)
	}
}

// handleHealth reports the health of the server's collaborators.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}
	healthy := true

	check := func(name string, hc HealthChecker) {
		if hc == nil {
			return
		}
		if err := hc.HealthCheck(r.Context()); err != nil {
			components[name] = err.Error()
			healthy = false
			return
		}
		components[name] = "ok"
	}
	check("store", s.store)
	check("hub", s.hub)

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":     overall,
		"components": components,
	})
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

func writeFailure(w http.ResponseWriter, status int) {
	writeJSON(w, status, map[string]any{"status": "failure"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
