package storage

import (
	"time"

	"treescope/pkg/outline"
)

// Scope names accepted from the scanning agent. Each maps to one fixed file
// under the target's directory.
const (
	ScopeTree       = "tree"
	ScopeScripts    = "scripts"
	ScopeRemotes    = "remotes"
	ScopeProperties = "properties"
	ScopeServices   = "services"
)

// GameManifest is the finalized summary of one completed scan. One manifest
// per target; a re-scan overwrites it.
type GameManifest struct {
	TargetID     uint64    `json:"target_id"`
	GameID       uint64    `json:"game_id"`
	Version      uint64    `json:"version"`
	Name         string    `json:"name"`
	CreatorID    uint64    `json:"creator_id"`
	CreatorType  string    `json:"creator_type"`
	JobID        string    `json:"job_id"`
	TreeHash     string    `json:"tree_hash"`
	ScannedAt    time.Time `json:"scanned_at"`
	ScanDuration float64   `json:"scan_duration_secs"`
	Scopes       []string  `json:"scopes"`

	InstanceCount     uint64 `json:"instance_count"`
	ScriptCount       uint64 `json:"script_count"`
	RemoteCount       uint64 `json:"remote_count"`
	SupportsDecompile bool   `json:"supports_decompile"`
}

// FinalizeRequest carries the caller-supplied metadata for a completed scan.
// TreeHash and ScannedAt are always computed server-side.
type FinalizeRequest struct {
	TargetID     uint64   `json:"target_id"`
	GameID       uint64   `json:"game_id"`
	Version      uint64   `json:"version"`
	Name         string   `json:"name"`
	CreatorID    uint64   `json:"creator_id"`
	CreatorType  string   `json:"creator_type"`
	JobID        string   `json:"job_id"`
	ScanDuration float64  `json:"scan_duration_secs"`
	Scopes       []string `json:"scopes"`

	InstanceCount     uint64 `json:"instance_count"`
	ScriptCount       uint64 `json:"script_count"`
	RemoteCount       uint64 `json:"remote_count"`
	SupportsDecompile bool   `json:"supports_decompile"`
}

// InstanceNode is one node of the scanned object tree. Children are owned by
// their parent; paths are dotted and unique within a scan.
type InstanceNode struct {
	Name      string         `json:"name"`
	ClassName string         `json:"class_name"`
	Path      string         `json:"path"`
	Children  []InstanceNode `json:"children,omitempty"`
}

// ScriptEntry is the outline-level record kept for every submitted script.
// Outline is nil when the script had no source text.
type ScriptEntry struct {
	Path       string           `json:"path"`
	ClassName  string           `json:"class_name"`
	Enabled    *bool            `json:"enabled,omitempty"`
	Outline    *outline.Outline `json:"outline,omitempty"`
	Decompiled bool             `json:"decompiled"`
	LineCount  int              `json:"line_count"`
	Size       int              `json:"size"`
}

// ScriptFull pairs a script path with its full source. Kept in a separate
// file so outline-only queries stay cheap.
type ScriptFull struct {
	Path   string `json:"path"`
	Source string `json:"source"`
}

// Query holds the optional, AND-combined facet filters for scope retrieval.
type Query struct {
	PathPrefix    string
	Class         string
	Search        string
	IncludeSource bool
	MaxDepth      int
	HasMaxDepth   bool
}
