package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"treescope/pkg/scan"
	"treescope/pkg/storage"
)

func (s *Server) handleScanData(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChunkBody)

	var chunk scan.Chunk
	if err := json.NewDecoder(r.Body).Decode(&chunk); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	if err := s.Engine.SubmitChunk(chunk); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"scope":     chunk.Scope,
		"target_id": chunk.TargetID,
	})
}

func (s *Server) handleScanComplete(w http.ResponseWriter, r *http.Request) {
	var req storage.FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	manifest, err := s.Engine.FinalizeScan(r.Context(), req)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"manifest": manifest,
	})
}

func (s *Server) handleScanCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetID *uint64 `json:"target_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TargetID == nil {
		writeError(w, http.StatusBadRequest, "missing required field: target_id")
		return
	}

	if !s.Engine.CancelScan(*req.TargetID) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no active scan found for target %d", *req.TargetID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": fmt.Sprintf("cancelled scan for target %d", *req.TargetID),
	})
}

func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"scans": s.Engine.ActiveScans(),
	})
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.Engine.Manifests()
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"games": games,
	})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	targetID, ok := pathTargetID(w, r)
	if !ok {
		return
	}

	manifest, err := s.Engine.Manifest(targetID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no scan data found for target %d", targetID))
			return
		}
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"manifest": manifest,
	})
}

func (s *Server) handleGetGameScope(w http.ResponseWriter, r *http.Request) {
	targetID, ok := pathTargetID(w, r)
	if !ok {
		return
	}
	scope := r.PathValue("scope")

	q := storage.Query{
		PathPrefix:    r.URL.Query().Get("path"),
		Class:         r.URL.Query().Get("class"),
		Search:        r.URL.Query().Get("search"),
		IncludeSource: r.URL.Query().Get("include_source") == "true",
	}
	if raw := r.URL.Query().Get("max_depth"); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil || depth < 0 {
			writeError(w, http.StatusBadRequest, "max_depth must be a non-negative integer")
			return
		}
		q.MaxDepth = depth
		q.HasMaxDepth = true
	}

	data, err := s.Engine.Scope(targetID, scope, q)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no %s data found for target %d", scope, targetID))
			return
		}
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"target_id": targetID,
		"scope":     scope,
		"data":      json.RawMessage(data),
	})
}

func (s *Server) handleGameHistory(w http.ResponseWriter, r *http.Request) {
	targetID, ok := pathTargetID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := s.Engine.History(r.Context(), targetID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"target_id": targetID,
		"runs":      runs,
	})
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	targetID, ok := pathTargetID(w, r)
	if !ok {
		return
	}

	if !s.Engine.Exists(targetID) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no scan data found for target %d", targetID))
		return
	}
	if err := s.Engine.DeleteTarget(targetID); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": fmt.Sprintf("deleted scan data for target %d", targetID),
	})
}

func pathTargetID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "target id must be a number")
		return 0, false
	}
	return id, true
}

// writeStorageError maps the storage error taxonomy onto HTTP statuses.
func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case storage.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case storage.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
