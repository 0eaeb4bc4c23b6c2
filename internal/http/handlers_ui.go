package http

import (
	"bytes"
	"net/http"

	"saldo/internal/auth"
	applog "saldo/internal/log"
)

// render executes a template into a buffer first so a failure can still
// produce a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err,
			"template", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	name := "Guest"
	if id, ok := auth.IdentityFrom(r.Context()); ok && id.Name != "" {
		name = id.Name
	}

	s.render(w, r, http.StatusOK, "index.html", struct {
		Name        string
		AuthEnabled bool
		PageDays    int
	}{
		Name:        name,
		AuthEnabled: s.sessions != nil,
		PageDays:    s.ledger.PageDays(),
	})
}

// handleHistoryPartial renders the running total and the revealed day
// buckets. The page refetches it on load, on entry:recorded and when the
// reveal-more control asks for more days.
func (s *Server) handleHistoryPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	h, err := s.ledger.History(r.Context(), auth.Scope(r.Context()), ParseDays(r.URL.Query()))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "History partial error", applog.FieldError, err)
		// Keep the previous fragment on screen.
		ErrorResponse(http.StatusInternalServerError, "Could not load the ledger").Write(w)
		return
	}

	s.render(w, r, http.StatusOK, "history.html", newHistoryView(h, s.ledger.Location(), s.ledger.PageDays()))
}

// handleSuggestionsPartial renders <option> elements for the comment datalist.
func (s *Server) handleSuggestionsPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	prefix := r.URL.Query().Get("q")
	if prefix == "" {
		prefix = r.URL.Query().Get("comment")
	}
	suggestions, err := s.ledger.Suggest(r.Context(), auth.Scope(r.Context()), prefix)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Suggestions partial error", applog.FieldError, err)
		suggestions = nil
	}

	s.render(w, r, http.StatusOK, "suggestions.html", suggestions)
}

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.render(w, r, status, "login.html", struct{ Error string }{Error: message})
}
