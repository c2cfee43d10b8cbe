package scan

import (
	"sync"
	"time"
)

// Session is the ephemeral status record for an in-progress scan. Sessions
// live only in memory and are lost on restart.
type Session struct {
	TargetID  uint64    `json:"target_id"`
	Status    string    `json:"status"`
	Progress  string    `json:"progress"`
	StartedAt time.Time `json:"started_at"`
}

// SessionTracker tracks active scans keyed by target. Reads take a shared
// lock so status listing never blocks behind chunk ingestion.
type SessionTracker struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
}

func NewSessionTracker() *SessionTracker {
	return &SessionTracker{sessions: make(map[uint64]*Session)}
}

// BeginOrTouch upserts the session for a target and records the scope
// currently being received. Idempotent.
func (t *SessionTracker) BeginOrTouch(targetID uint64, scope string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[targetID]
	if !ok {
		s = &Session{
			TargetID:  targetID,
			Status:    "scanning",
			StartedAt: time.Now().UTC(),
		}
		t.sessions[targetID] = s
	}
	s.Progress = "receiving " + scope
}

// Active returns a snapshot copy of all tracked sessions, in no particular
// order.
func (t *SessionTracker) Active() []Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, *s)
	}
	return out
}

// Cancel drops the session for a target, reporting whether one existed.
// Persisted scope files are untouched.
func (t *SessionTracker) Cancel(targetID uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sessions[targetID]
	delete(t.sessions, targetID)
	return ok
}
