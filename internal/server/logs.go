package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"treescope/internal/utils"
	"treescope/pkg/logbuf"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"server":       "treescope",
		"log_count":    s.Logs.Len(),
		"active_scans": len(s.Engine.ActiveScans()),
	})
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	q := logbuf.Query{
		Level:     params.Get("level"),
		Source:    params.Get("source"),
		Search:    params.Get("search"),
		Ascending: params.Get("order") == "asc",
	}
	if tag := params.Get("tag"); tag != "" {
		for _, t := range strings.Split(tag, ",") {
			q.Tags = append(q.Tags, strings.TrimSpace(t))
		}
	}
	q.PID, _ = strconv.ParseUint(params.Get("pid"), 10, 64)
	q.Limit, _ = strconv.Atoi(params.Get("limit"))
	q.Offset, _ = strconv.Atoi(params.Get("offset"))
	q.Page, _ = strconv.Atoi(params.Get("page"))
	if after := params.Get("after"); after != "" {
		q.After, _ = time.Parse(time.RFC3339, after)
	}
	if before := params.Get("before"); before != "" {
		q.Before, _ = time.Parse(time.RFC3339, before)
	}

	writeJSON(w, http.StatusOK, s.Logs.Query(q))
}

func (s *Server) handlePostLog(w http.ResponseWriter, r *http.Request) {
	var entry logbuf.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(entry.Message) == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}
	if entry.Level == "" {
		entry.Level = "info"
	}

	stored := s.Logs.Add(entry)
	utils.Log.WithField("source", stored.Source).Debug(stored.Message)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"id": stored.ID,
	})
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"cleared": s.Logs.Clear(),
	})
}
