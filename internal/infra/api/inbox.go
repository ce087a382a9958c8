package api

import (
	"net/http"
	"strconv"
	"strings"

	"typing-premium-payments/internal/domain"
	"typing-premium-payments/internal/infra/logging"

	"github.com/go-chi/chi/v5"
)

func (s *Server) listInbox(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	log := logging.With(r.Context(), s.log)

	unread := false
	if v := r.URL.Query().Get("unread"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, log, "list_inbox", &domain.ValidationError{Field: "unread", Reason: "must be a boolean"})
			return
		}
		unread = b
	}
	_, limit, err := pageParams(r)
	if err != nil {
		writeError(w, log, "list_inbox", err)
		return
	}

	notes, err := s.inbox.ListInbox(r.Context(), caller.UserID, unread, limit)
	if err != nil {
		writeError(w, log, "list_inbox", err)
		return
	}
	items := make([]notificationResponse, 0, len(notes))
	for _, n := range notes {
		items = append(items, toNotificationResponse(n))
	}
	writeJSON(w, http.StatusOK, listResponse[notificationResponse]{Items: items})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if err := s.inbox.MarkRead(r.Context(), id, caller.UserID); err != nil {
		writeError(w, logging.With(r.Context(), s.log), "mark_read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
