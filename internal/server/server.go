// Package server exposes the scan engine over HTTP. Mutating routes are
// gated by a shared secret header; reads are open, matching the trust model
// of a locally-bound tool.
package server

import (
	"encoding/json"
	"net/http"

	"treescope/internal/utils"
	"treescope/pkg/logbuf"
	"treescope/pkg/scan"
)

// SecretHeader is the shared-secret header checked on mutating routes.
const SecretHeader = "X-Treescope-Secret"

// maxChunkBody caps scan chunk bodies. Scan chunks can be large.
const maxChunkBody = 16 << 20

type Server struct {
	Engine *scan.Engine
	Logs   *logbuf.Buffer
	Secret string
}

func New(engine *scan.Engine, logs *logbuf.Buffer, secret string) *Server {
	return &Server{
		Engine: engine,
		Logs:   logs,
		Secret: secret,
	}
}

// Handler builds the route table. Split from Start so tests can drive it
// through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /logs", s.handleGetLogs)
	mux.HandleFunc("POST /logs", s.requireSecret(s.handlePostLog))
	mux.HandleFunc("DELETE /logs", s.requireSecret(s.handleClearLogs))

	mux.HandleFunc("POST /scan/data", s.requireSecret(s.handleScanData))
	mux.HandleFunc("POST /scan/complete", s.requireSecret(s.handleScanComplete))
	mux.HandleFunc("POST /scan/cancel", s.requireSecret(s.handleScanCancel))
	mux.HandleFunc("GET /scan/status", s.handleScanStatus)

	mux.HandleFunc("GET /games", s.handleListGames)
	mux.HandleFunc("GET /games/{id}", s.handleGetGame)
	mux.HandleFunc("GET /games/{id}/history", s.handleGameHistory)
	mux.HandleFunc("GET /games/{id}/{scope}", s.handleGetGameScope)
	mux.HandleFunc("DELETE /games/{id}", s.requireSecret(s.handleDeleteGame))

	return mux
}

func (s *Server) Start(addr string) error {
	utils.Log.Info("Starting server on ", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// requireSecret rejects requests whose secret header does not match. The
// gate is disabled when no secret is configured.
func (s *Server) requireSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Secret != "" && r.Header.Get(SecretHeader) != s.Secret {
			writeError(w, http.StatusUnauthorized, "invalid or missing "+SecretHeader+" header")
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Log.Warn("Failed to encode response: ", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"ok":     false,
		"error":  msg,
		"status": status,
	})
}
