package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cardbox/cardbox/internal/logbuf"
)

// logsHandler exposes the diagnostic log buffer: query, export, clear.
type logsHandler struct {
	log *logbuf.Log
}

func registerLogRoutes(r chi.Router, log *logbuf.Log) {
	h := &logsHandler{log: log}
	r.Get("/logs", h.Query)
	r.Get("/logs/export", h.Export)
	r.Delete("/logs", h.Clear)
}

// Query returns buffered entries filtered by level, context, and limit.
// GET /api/v1/logs
func (h *logsHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f logbuf.Filter
	if v := q.Get("level"); v != "" {
		level, ok := logbuf.ParseLevel(v)
		if !ok {
			badRequest(w, "unknown log level "+strconv.Quote(v))
			return
		}
		f.Level = &level
	}
	f.Context = q.Get("context")
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(w, "invalid limit")
			return
		}
		f.Limit = n
	}
	writeJSON(w, http.StatusOK, h.log.Query(f))
}

// Export returns the whole buffer as a JSON document.
// GET /api/v1/logs/export
func (h *logsHandler) Export(w http.ResponseWriter, r *http.Request) {
	out, err := h.log.Export()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// Clear drops all buffered entries.
// DELETE /api/v1/logs
func (h *logsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.log.Clear()
	w.WriteHeader(http.StatusNoContent)
}
