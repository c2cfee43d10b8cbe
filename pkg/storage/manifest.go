package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"treescope/internal/utils"
	"treescope/pkg/treehash"
)

// BuildManifest finalizes a scan: it hashes whatever tree data accumulated
// for the target (absence counts as an empty tree), stamps the completion
// time, and persists the manifest, replacing any previous one.
func (s *Store) BuildManifest(req FinalizeRequest) (*GameManifest, error) {
	treeData, err := s.LoadScope(req.TargetID, treeFile)
	if err != nil {
		if !IsNotFound(err) {
			return nil, err
		}
		treeData = json.RawMessage(`[]`)
	}

	m := &GameManifest{
		TargetID:          req.TargetID,
		GameID:            req.GameID,
		Version:           req.Version,
		Name:              req.Name,
		CreatorID:         req.CreatorID,
		CreatorType:       req.CreatorType,
		JobID:             req.JobID,
		TreeHash:          treehash.Hash(treeData),
		ScannedAt:         time.Now().UTC(),
		ScanDuration:      req.ScanDuration,
		Scopes:            req.Scopes,
		InstanceCount:     req.InstanceCount,
		ScriptCount:       req.ScriptCount,
		RemoteCount:       req.RemoteCount,
		SupportsDecompile: req.SupportsDecompile,
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, newError(KindSerialize, "build manifest", "", err)
	}
	if err := s.writeFile(req.TargetID, manifestFile, data); err != nil {
		return nil, err
	}
	return m, nil
}

// Manifest loads the persisted manifest for one target.
func (s *Store) Manifest(targetID uint64) (*GameManifest, error) {
	data, err := s.LoadScope(targetID, manifestFile)
	if err != nil {
		return nil, err
	}
	var m GameManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, newError(KindParse, "parse manifest", filepath.Join(s.targetDir(targetID), manifestFile), err)
	}
	return &m, nil
}

// Manifests enumerates every stored manifest, newest scan first. Target
// directories without a readable manifest are skipped, not fatal.
func (s *Store) Manifests() ([]GameManifest, error) {
	targetsDir := filepath.Join(s.dir, "targets")
	entries, err := os.ReadDir(targetsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []GameManifest{}, nil
		}
		return nil, newError(KindIO, "list targets", targetsDir, err)
	}

	manifests := []GameManifest{}
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(targetsDir, entry.Name(), manifestFile))
		if err != nil {
			continue
		}
		var m GameManifest
		if err := json.Unmarshal(data, &m); err != nil {
			utils.Log.WithField("target", entry.Name()).Warn("Skipping unreadable manifest: ", err)
			continue
		}
		manifests = append(manifests, m)
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].ScannedAt.After(manifests[j].ScannedAt)
	})
	return manifests, nil
}
