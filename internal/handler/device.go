package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/bridgepanel/internal/store"
	"github.com/matthewbaird/bridgepanel/internal/types"
)

// DeviceHandler exposes device descriptors, state variables and the panel
// event log as JSON.
type DeviceHandler struct {
	store     store.Store
	namespace string
}

// NewDeviceHandler creates a DeviceHandler. Variables written without an
// explicit service_id land in namespace.
func NewDeviceHandler(s store.Store, namespace string) *DeviceHandler {
	return &DeviceHandler{store: s, namespace: namespace}
}

// GET /v1/devices/{id}
func (h *DeviceHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	e, err := h.store.Entity(r.Context(), id)
	if err != nil {
		storeErrorToHTTP(w, err)
		return
	}
	vars, err := h.store.Variables(r.Context(), id)
	if err != nil {
		storeErrorToHTTP(w, err)
		return
	}
	if vars == nil {
		vars = []types.Variable{}
	}
	writeJSON(w, http.StatusOK, struct {
		Device    types.Entity     `json:"device"`
		Variables []types.Variable `json:"variables"`
	}{e, vars})
}

// PUT /v1/devices/{id}
func (h *DeviceHandler) PutDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	var e types.Entity
	if err := decodeJSON(r, &e); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if e.ID != "" && e.ID != id {
		writeError(w, http.StatusBadRequest, "ID_MISMATCH", "body id does not match path id")
		return
	}
	e.ID = id
	if err := h.store.PutEntity(r.Context(), e); err != nil {
		storeErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type setVariableRequest struct {
	ServiceID string  `json:"service_id"`
	Value     *string `json:"value"`
}

// PUT /v1/devices/{id}/variables/{key}
func (h *DeviceHandler) PutVariable(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	var req setVariableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "MISSING_VALUE", "value is required")
		return
	}
	ns := req.ServiceID
	if ns == "" {
		ns = h.namespace
	}
	if err := h.store.SetValue(r.Context(), id, ns, key, *req.Value); err != nil {
		storeErrorToHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /v1/devices/{id}/events?limit=N
func (h *DeviceHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	entries, err := h.store.EventsByEntity(r.Context(), id, parseLimit(r))
	if err != nil {
		storeErrorToHTTP(w, err)
		return
	}
	if entries == nil {
		entries = []types.EventEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": entries})
}
