package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cardbox/cardbox/internal/storage"
)

// writeJSON writes v with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a failed envelope onto an HTTP status. The envelope is the
// real contract; the status is a convenience for HTTP-native clients.
func statusFor(errMsg string) int {
	switch {
	case strings.Contains(errMsg, storage.ErrTitleRequired.Error()):
		return http.StatusBadRequest
	case strings.Contains(errMsg, storage.ErrNotFound.Error()):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeResult writes a data-carrying envelope, okStatus on success.
func writeResult[T any](w http.ResponseWriter, okStatus int, res storage.Result[T]) {
	if res.Success {
		writeJSON(w, okStatus, res)
		return
	}
	writeJSON(w, statusFor(res.Error), res)
}

// writeStatus writes a void envelope.
func writeStatus(w http.ResponseWriter, res storage.Status) {
	if res.Success {
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, statusFor(res.Error), res)
}

// badRequest reports a malformed request in envelope form.
func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, storage.Status{Error: msg})
}
