package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"saldo/internal/auth"
	"saldo/internal/core"
	applog "saldo/internal/log"
)

const readyTimeout = 5 * time.Second

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks templates and the entry store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.ledger.Ping(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleTotal(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	total, err := s.ledger.Total(r.Context(), auth.Scope(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, "Error fetching total")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"total": jsonAmount(total)})
}

// handleSubmitEntry stores one entry. API clients get the new total as JSON;
// HTMX clients get an empty body and triggers telling the page to refetch.
func (s *Server) handleSubmitEntry(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	req, err := ParseSubmitRequest(r)
	if err != nil {
		writeMessage(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	scope := auth.Scope(r.Context())
	res, err := s.ledger.Submit(r.Context(), scope, req)
	if err != nil {
		writeServiceError(w, r, err, "Error saving entry")
		return
	}

	if isHTMX(r) {
		NewHTMXResponse().
			TriggerEntryRecorded(res.Total).
			TriggerFormReset().
			TriggerSuccessNotification(fmt.Sprintf("Entry saved: %s %s", formatSigned(res.Entry.Signed()), res.Entry.Comment)).
			Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   jsonAmount(res.Total),
		"message": "Entry saved successfully",
		"entry":   res.Entry,
	})
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ledger, err := s.ledger.Query(r.Context(), auth.Scope(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, "Error fetching entries")
		return
	}
	entries := ledger.Entries
	if entries == nil {
		entries = []core.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   jsonAmount(ledger.Total),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	h, err := s.ledger.History(r.Context(), auth.Scope(r.Context()), ParseDays(r.URL.Query()))
	if err != nil {
		writeServiceError(w, r, err, "Error fetching history")
		return
	}
	writeJSON(w, http.StatusOK, newHistoryJSON(h))
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	suggestions, err := s.ledger.Suggest(r.Context(), auth.Scope(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, err, "Error fetching suggestions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

// handleLogin renders the sign-in page on GET and starts a session on POST.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil || s.authn == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.renderLogin(w, r, http.StatusOK, "")
		return
	case http.MethodPost:
	default:
		MethodNotAllowedError("GET, POST").Write(w)
		return
	}

	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth)

	creds, isJSON, err := ParseCredentials(r)
	if err != nil {
		writeMessage(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := s.authn.Authenticate(r.Context(), creds.Username, creds.Password)
	if err != nil {
		logger.WarnContext(r.Context(), "Login failed",
			applog.FieldOperation, applog.OpLogin,
			applog.FieldClientIP, s.detector.ExtractClientIP(r))
		if isJSON {
			MessageResponse(http.StatusUnauthorized, "Invalid username or password").Write(w)
			return
		}
		s.renderLogin(w, r, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, expires, err := s.sessions.Generate(id)
	if err != nil {
		writeServiceError(w, r, err, "Error starting session")
		return
	}
	s.sessions.SetCookie(w, token, expires)
	logger.InfoContext(r.Context(), "Login succeeded",
		applog.FieldOperation, applog.OpLogin,
		applog.FieldScope, id.Subject)

	if isJSON {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token":     token,
			"expiresAt": expires.UTC().Format(time.RFC3339),
			"name":      id.Name,
		})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.sessions != nil {
		s.sessions.ClearCookie(w)
	}
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
