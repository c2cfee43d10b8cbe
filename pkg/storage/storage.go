// Package storage persists scan data as per-target scope files under a
// single storage directory and answers faceted queries over them.
//
// Layout: <dir>/targets/<target_id>/ holding one fixed filename per scope,
// a manifest, and a separate full-source file for scripts. There is no file
// locking: concurrent appends to the same (target, scope) pair can race and
// one side's data may be lost.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"treescope/internal/utils"
)

const (
	treeFile        = "tree.json"
	scriptsFile     = "scripts.json"
	scriptsFullFile = "scripts_full.json"
	remotesFile     = "remotes.json"
	propertiesFile  = "properties.json"
	servicesFile    = "services.json"
	manifestFile    = "manifest.json"
)

// Store reads and writes scan data rooted at a storage directory.
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the storage root.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) targetDir(targetID uint64) string {
	return filepath.Join(s.dir, "targets", strconv.FormatUint(targetID, 10))
}

// fileForScope maps a scope name to its backing filename. The full-source
// file backs the scripts scope only when the caller asked for source text.
func fileForScope(scope string, includeSource bool) (string, error) {
	switch scope {
	case ScopeTree:
		return treeFile, nil
	case ScopeScripts:
		if includeSource {
			return scriptsFullFile, nil
		}
		return scriptsFile, nil
	case ScopeRemotes:
		return remotesFile, nil
	case ScopeProperties:
		return propertiesFile, nil
	case ScopeServices:
		return servicesFile, nil
	default:
		return "", newError(KindValidation, "resolve scope", scope,
			fmt.Errorf("unknown scope %q, valid: tree, scripts, remotes, properties, services", scope))
	}
}

// writeFile pretty-prints data and writes it, creating the target directory
// on first use.
func (s *Store) writeFile(targetID uint64, filename string, data []byte) error {
	dir := s.targetDir(targetID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return newError(KindIO, "create target dir", dir, err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, pretty.Pretty(data), 0o644); err != nil {
		return newError(KindIO, "write", path, err)
	}
	return nil
}

// WriteChunk persists one submitted chunk according to its scope's merge
// semantics: services replaces the whole file, scripts does the outline/full
// dual write, and everything else appends.
func (s *Store) WriteChunk(targetID uint64, scope string, payload json.RawMessage) error {
	switch scope {
	case ScopeTree:
		return s.AppendScope(targetID, treeFile, payload)
	case ScopeScripts:
		return s.WriteScripts(targetID, payload)
	case ScopeRemotes:
		return s.AppendScope(targetID, remotesFile, payload)
	case ScopeProperties:
		return s.AppendScope(targetID, propertiesFile, payload)
	case ScopeServices:
		return s.SaveScope(targetID, servicesFile, payload)
	default:
		return newError(KindValidation, "write chunk", scope,
			fmt.Errorf("unknown scope %q, valid: tree, scripts, remotes, properties, services", scope))
	}
}

// SaveScope replaces the scope file with the given payload. Used for the
// services scope, which the agent always sends whole.
func (s *Store) SaveScope(targetID uint64, filename string, payload json.RawMessage) error {
	if !gjson.ValidBytes(payload) {
		return newError(KindSerialize, "save", filename, errors.New("payload is not valid JSON"))
	}
	return s.writeFile(targetID, filename, payload)
}

// AppendScope merges the payload into the stored array for the scope. An
// array payload is concatenated element-wise; anything else is pushed as a
// single element. A malformed existing file is logged and treated as empty
// so a scan can always make progress.
func (s *Store) AppendScope(targetID uint64, filename string, payload json.RawMessage) error {
	path := filepath.Join(s.targetDir(targetID), filename)

	var existing []json.RawMessage
	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First chunk for this scope.
	case err != nil:
		return newError(KindIO, "read", path, err)
	default:
		if uerr := json.Unmarshal(content, &existing); uerr != nil {
			utils.Log.WithField("file", path).Warn("Discarding unparsable scope file: ", uerr)
			existing = nil
		}
	}

	parsed := gjson.ParseBytes(payload)
	if parsed.IsArray() {
		for _, item := range parsed.Array() {
			existing = append(existing, json.RawMessage(item.Raw))
		}
	} else {
		existing = append(existing, payload)
	}

	if existing == nil {
		existing = []json.RawMessage{}
	}
	merged, err := json.Marshal(existing)
	if err != nil {
		return newError(KindSerialize, "append", path, err)
	}
	return s.writeFile(targetID, filename, merged)
}

// LoadScope reads a stored scope file verbatim.
func (s *Store) LoadScope(targetID uint64, filename string) (json.RawMessage, error) {
	path := filepath.Join(s.targetDir(targetID), filename)
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, newError(KindNotFound, "load", path, err)
	}
	if err != nil {
		return nil, newError(KindIO, "load", path, err)
	}
	return content, nil
}

// ClearScope removes a single scope's stored data, succeeding if it never
// existed. Lets a re-scan of one scope start clean without deleting the
// whole target.
func (s *Store) ClearScope(targetID uint64, scope string) error {
	filename, err := fileForScope(scope, false)
	if err != nil {
		return err
	}
	path := filepath.Join(s.targetDir(targetID), filename)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return newError(KindIO, "clear", path, err)
	}
	return nil
}

// Exists reports whether the target has a finalized manifest.
func (s *Store) Exists(targetID uint64) bool {
	_, err := os.Stat(filepath.Join(s.targetDir(targetID), manifestFile))
	return err == nil
}

// Delete removes the target's whole storage subtree. Deleting an absent
// target is a no-op.
func (s *Store) Delete(targetID uint64) error {
	dir := s.targetDir(targetID)
	if err := os.RemoveAll(dir); err != nil {
		return newError(KindIO, "delete", dir, err)
	}
	return nil
}
