// Package scan coordinates chunk ingestion, scan sessions, finalization, and
// retrieval. It is the single surface the serving layer and CLI talk to.
package scan

import (
	"context"
	"encoding/json"

	"treescope/internal/utils"
	"treescope/pkg/history"
	"treescope/pkg/storage"
)

// Chunk is one unit of scan data submitted by the agent, tagged with the
// scope it belongs to.
type Chunk struct {
	TargetID uint64          `json:"target_id"`
	Scope    string          `json:"scope"`
	Data     json.RawMessage `json:"data"`
}

// Engine owns the chunk store, the session tracker, and the optional scan
// history ledger.
type Engine struct {
	store    *storage.Store
	sessions *SessionTracker
	ledger   *history.DB
}

// New builds an Engine over a store. ledger may be nil to disable the scan
// history feature.
func New(store *storage.Store, ledger *history.DB) *Engine {
	return &Engine{
		store:    store,
		sessions: NewSessionTracker(),
		ledger:   ledger,
	}
}

// SubmitChunk persists one chunk according to its scope's merge semantics
// and, on success, upserts the target's scan session.
func (e *Engine) SubmitChunk(chunk Chunk) error {
	if err := e.store.WriteChunk(chunk.TargetID, chunk.Scope, chunk.Data); err != nil {
		return err
	}
	e.sessions.BeginOrTouch(chunk.TargetID, chunk.Scope)
	return nil
}

// FinalizeScan writes the manifest for a completed scan and records the run
// in the history ledger. The active session is removed whether or not
// persistence succeeded.
func (e *Engine) FinalizeScan(ctx context.Context, req storage.FinalizeRequest) (*storage.GameManifest, error) {
	defer e.sessions.Cancel(req.TargetID)

	m, err := e.store.BuildManifest(req)
	if err != nil {
		return nil, err
	}

	if e.ledger != nil {
		changed, herr := e.ledger.Record(ctx, m)
		if herr != nil {
			// The manifest is already durable; a ledger failure is not worth
			// failing the scan over.
			utils.Log.Warn("Failed to record scan in history ledger: ", herr)
		} else if changed {
			utils.Log.WithField("target", m.TargetID).Info("Tree hash changed since previous scan")
		}
	}

	utils.Log.WithField("target", m.TargetID).Infof(
		"Scan complete for %q: %d instances, %d scripts, %d remotes",
		m.Name, m.InstanceCount, m.ScriptCount, m.RemoteCount)
	return m, nil
}

// CancelScan drops the target's active session, reporting whether one
// existed. Writes already persisted are kept.
func (e *Engine) CancelScan(targetID uint64) bool {
	return e.sessions.Cancel(targetID)
}

// ActiveScans snapshots the sessions currently being ingested.
func (e *Engine) ActiveScans() []Session {
	return e.sessions.Active()
}

// Manifest returns the finalized manifest for a target.
func (e *Engine) Manifest(targetID uint64) (*storage.GameManifest, error) {
	return e.store.Manifest(targetID)
}

// Scope retrieves one scope for a target with facet filters applied.
func (e *Engine) Scope(targetID uint64, scope string, q storage.Query) (json.RawMessage, error) {
	return e.store.Scope(targetID, scope, q)
}

// Manifests lists every stored manifest, newest scan first.
func (e *Engine) Manifests() ([]storage.GameManifest, error) {
	return e.store.Manifests()
}

// Exists reports whether a target has finalized scan data.
func (e *Engine) Exists(targetID uint64) bool {
	return e.store.Exists(targetID)
}

// DeleteTarget removes all stored data for a target.
func (e *Engine) DeleteTarget(targetID uint64) error {
	return e.store.Delete(targetID)
}

// History lists recorded scan runs for a target, newest first. Returns an
// empty list when the ledger is disabled.
func (e *Engine) History(ctx context.Context, targetID uint64, limit int) ([]history.Run, error) {
	if e.ledger == nil {
		return []history.Run{}, nil
	}
	return e.ledger.Runs(ctx, targetID, limit)
}
