package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func seedTree(t *testing.T, s *Store, targetID uint64) {
	t.Helper()
	tree := json.RawMessage(`[
		{"name": "Lobby", "class_name": "Model", "path": "Workspace.Lobby", "children": [
			{"name": "Door", "class_name": "Part", "path": "Workspace.Lobby.Door", "children": [
				{"name": "Hinge", "class_name": "Part", "path": "Workspace.Lobby.Door.Hinge"}
			]}
		]},
		{"name": "SpawnZone", "class_name": "SpawnLocation", "path": "Workspace.SpawnZone"}
	]`)
	require.NoError(t, s.AppendScope(targetID, treeFile, tree))
}

func TestScopeTreePathPrefixCaseInsensitive(t *testing.T) {
	s := New(t.TempDir())
	seedTree(t, s, 1)

	data, err := s.Scope(1, ScopeTree, Query{PathPrefix: "workspace.lobby"})
	require.NoError(t, err)
	names := gjson.GetBytes(data, "#.name")
	assert.Equal(t, `["Lobby"]`, names.Raw)
}

func TestScopeTreeClassFilter(t *testing.T) {
	s := New(t.TempDir())
	seedTree(t, s, 1)

	data, err := s.Scope(1, ScopeTree, Query{Class: "spawnlocation"})
	require.NoError(t, err)
	names := gjson.GetBytes(data, "#.name")
	assert.Equal(t, `["SpawnZone"]`, names.Raw)
}

func TestScopeTreeSearchMatchesNameOrPath(t *testing.T) {
	s := New(t.TempDir())
	seedTree(t, s, 1)

	data, err := s.Scope(1, ScopeTree, Query{Search: "spawn"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), gjson.GetBytes(data, "#").Int())
}

func TestScopeTreeMaxDepth(t *testing.T) {
	s := New(t.TempDir())
	seedTree(t, s, 1)

	// Depth 0: top-level nodes only, all children pruned.
	data, err := s.Scope(1, ScopeTree, Query{HasMaxDepth: true, MaxDepth: 0})
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(data, "0.children").Exists())

	// Depth 1: one level kept, grandchildren pruned.
	data, err = s.Scope(1, ScopeTree, Query{HasMaxDepth: true, MaxDepth: 1})
	require.NoError(t, err)
	assert.Equal(t, "Door", gjson.GetBytes(data, "0.children.0.name").String())
	assert.False(t, gjson.GetBytes(data, "0.children.0.children").Exists())
}

func TestScopeScriptsSearchIncludesOutline(t *testing.T) {
	s := New(t.TempDir())
	source := "local Shop = game:GetService(\"ReplicatedStorage\"):WaitForChild(\"ShopRemotes\")\n"
	require.NoError(t, s.WriteScripts(1, json.RawMessage(`[
		{"path": "ServerScriptService.Shop", "class_name": "Script", "source": `+mustQuote(source)+`},
		{"path": "ServerScriptService.Other", "class_name": "Script", "source": "local n = 1\n"}
	]`)))

	// "shopremotes" appears only inside the first script's outline.
	data, err := s.Scope(1, ScopeScripts, Query{Search: "shopremotes"})
	require.NoError(t, err)
	paths := gjson.GetBytes(data, "#.path")
	assert.Equal(t, `["ServerScriptService.Shop"]`, paths.Raw)
}

func TestScopeScriptsIncludeSource(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.WriteScripts(1, json.RawMessage(`[
		{"path": "A", "class_name": "Script", "source": "local a = 1\n"},
		{"path": "B", "class_name": "Script", "source": ""}
	]`)))

	data, err := s.Scope(1, ScopeScripts, Query{IncludeSource: true})
	require.NoError(t, err)
	parsed := gjson.ParseBytes(data).Array()
	require.Len(t, parsed, 1)
	assert.Equal(t, "local a = 1\n", parsed[0].Get("source").String())

	// With a filter, full-source entries are filtered by path.
	data, err = s.Scope(1, ScopeScripts, Query{IncludeSource: true, PathPrefix: "zzz"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), gjson.GetBytes(data, "#").Int())
}

func TestScopeEntriesNameFallback(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.SaveScope(1, servicesFile, json.RawMessage(`[
		{"name": "ReplicatedStorage", "class_name": "ReplicatedStorage", "child_count": 4},
		{"name": "Workspace", "class_name": "Workspace", "child_count": 10}
	]`)))

	data, err := s.Scope(1, ScopeServices, Query{PathPrefix: "replicated"})
	require.NoError(t, err)
	names := gjson.GetBytes(data, "#.name")
	assert.Equal(t, `["ReplicatedStorage"]`, names.Raw)
}

func TestScopeUnknownScopeIsValidationError(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Scope(1, "blobs", Query{})
	assert.True(t, IsValidation(err))
}

func TestScopeMissingFileIsNotFound(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Scope(1, ScopeTree, Query{})
	assert.True(t, IsNotFound(err))
}

func TestMergeSourceIntoScripts(t *testing.T) {
	entries := json.RawMessage(`[{"path": "A", "class_name": "Script"}, {"path": "B", "class_name": "Script"}]`)
	fulls := json.RawMessage(`[{"path": "A", "source": "print(1)"}]`)

	merged, err := MergeSourceIntoScripts(entries, fulls)
	require.NoError(t, err)
	assert.Equal(t, "print(1)", gjson.GetBytes(merged, `#(path=="A").source`).String())
	assert.False(t, gjson.GetBytes(merged, `#(path=="B").source`).Exists())
}

func mustQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
