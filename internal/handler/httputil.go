package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matthewbaird/bridgepanel/internal/panel"
	"github.com/matthewbaird/bridgepanel/internal/store"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("writeJSON encode error", zap.Error(err))
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// deviceID extracts the device id path parameter.
func deviceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "device id is required")
		return "", false
	}
	if !panel.ValidEntityID(id) {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "device id may only contain letters, digits and underscores")
		return "", false
	}
	return id, true
}

// parseLimit reads the limit query parameter, capped at 500.
func parseLimit(r *http.Request) int {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}
	return limit
}

// storeErrorToHTTP maps store errors to HTTP responses.
func storeErrorToHTTP(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	zap.L().Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}
