package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/marcus/lift/internal/models"
	"github.com/marcus/lift/internal/serverdb"
)

// listEntitiesResponse is the body of GET /v1/entities/{type}.
type listEntitiesResponse struct {
	IDs []string `json:"ids"`
}

// entityParams validates the {type} (and optionally {id}) path values.
func entityParams(w http.ResponseWriter, r *http.Request, needID bool) (models.EntityType, string, bool) {
	entityType, ok := models.NormalizeEntityType(r.PathValue("type"))
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "unknown entity type")
		return "", "", false
	}
	id := r.PathValue("id")
	if needID && id == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "missing entity id")
		return "", "", false
	}
	return entityType, id, true
}

// handleListEntities returns the ids of all stored entities of one type.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entityType, _, ok := entityParams(w, r, false)
	if !ok {
		return
	}

	ids, err := s.store.ListEntityIDs(string(entityType))
	if err != nil {
		logFor(r.Context()).Error("list entities", "type", entityType, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list entities")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, listEntitiesResponse{IDs: ids})
}

// handleGetEntity returns one entity payload as opaque bytes.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	entityType, id, ok := entityParams(w, r, true)
	if !ok {
		return
	}

	payload, err := s.store.GetEntity(string(entityType), id)
	if errors.Is(err, serverdb.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "entity not found")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("get entity", "type", entityType, "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to load entity")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// handlePutEntity stores one entity payload, creating or replacing it.
func (s *Server) handlePutEntity(w http.ResponseWriter, r *http.Request) {
	entityType, id, ok := entityParams(w, r, true)
	if !ok {
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "failed to read body")
		return
	}
	if len(payload) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "empty payload")
		return
	}

	deviceID := r.Header.Get("X-Device-ID")
	if err := s.store.UpsertEntity(string(entityType), id, payload, deviceID); err != nil {
		logFor(r.Context()).Error("upsert entity", "type", entityType, "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to store entity")
		return
	}
	if err := s.store.TouchDevice(deviceID); err != nil {
		logFor(r.Context()).Warn("touch device", "err", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

// handleDeleteEntity removes one entity. Deleting a missing entity returns
// 404; clients treat that as success so retried deletes stay idempotent.
func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	entityType, id, ok := entityParams(w, r, true)
	if !ok {
		return
	}

	deleted, err := s.store.DeleteEntity(string(entityType), id)
	if err != nil {
		logFor(r.Context()).Error("delete entity", "type", entityType, "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to delete entity")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "entity not found")
		return
	}

	if err := s.store.TouchDevice(r.Header.Get("X-Device-ID")); err != nil {
		logFor(r.Context()).Warn("touch device", "err", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
