package httpapi

import (
	"net/http"
	"strconv"

	"github.com/hungson175/teamvoice/internal/feedback"
)

// handleTriggerFeedback acks submission, not completion: the caller
// gets 202 as soon as the signal is accepted (or recognized as a
// duplicate), while synthesis runs behind the queue.
func (s *Server) handleTriggerFeedback(w http.ResponseWriter, r *http.Request) {
	var sig feedback.Signal
	if err := decodeJSON(r, &sig); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := sig.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_signal", err.Error())
		return
	}

	result, err := s.feedback.Trigger(r.Context(), sig)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_signal", err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"result":  string(result),
		"task_id": sig.TaskID(),
	})
}

func (s *Server) handleListFeedbackTasks(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	tasks, err := s.feedback.RecentTasks(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal_unavailable", err.Error())
		return
	}
	if tasks == nil {
		tasks = []feedback.Task{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}
