package storage

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Scope loads one scope for a target and applies the query's facet filters.
// The scripts scope serves outline entries unless the caller explicitly asked
// for original source text.
func (s *Store) Scope(targetID uint64, scope string, q Query) (json.RawMessage, error) {
	filename, err := fileForScope(scope, scope == ScopeScripts && q.IncludeSource)
	if err != nil {
		return nil, err
	}
	data, err := s.LoadScope(targetID, filename)
	if err != nil {
		return nil, err
	}

	switch {
	case scope == ScopeTree:
		return filterTree(data, q), nil
	case scope == ScopeScripts && q.IncludeSource:
		// Full sources are filtered only when the caller narrowed the query;
		// a bare include_source request returns the file as-is.
		if q.PathPrefix == "" && q.Class == "" && q.Search == "" {
			return data, nil
		}
		return filterScripts(data, q), nil
	case scope == ScopeScripts:
		return filterScripts(data, q), nil
	default:
		return filterEntries(data, q), nil
	}
}

// filterTree filters top-level tree nodes and prunes children past the
// requested depth (root nodes are depth 0). Non-array data passes through.
func filterTree(data json.RawMessage, q Query) json.RawMessage {
	var nodes []InstanceNode
	if err := json.Unmarshal(data, &nodes); err != nil {
		return data
	}

	filtered := []InstanceNode{}
	for _, node := range nodes {
		if q.PathPrefix != "" && !hasPrefixFold(node.Path, q.PathPrefix) {
			continue
		}
		if q.Class != "" && !strings.EqualFold(node.ClassName, q.Class) {
			continue
		}
		if q.Search != "" && !containsFold(node.Name, q.Search) && !containsFold(node.Path, q.Search) {
			continue
		}
		if q.HasMaxDepth {
			node = trimDepth(node, 0, q.MaxDepth)
		}
		filtered = append(filtered, node)
	}

	out, err := json.Marshal(filtered)
	if err != nil {
		return data
	}
	return out
}

func trimDepth(node InstanceNode, current, max int) InstanceNode {
	if current >= max {
		node.Children = nil
		return node
	}
	for i := range node.Children {
		node.Children[i] = trimDepth(node.Children[i], current+1, max)
	}
	return node
}

// filterScripts applies the facet filters to script entries. The search
// facet also matches against the serialized outline so callers can find
// scripts by the names they reference, not just by path.
func filterScripts(data json.RawMessage, q Query) json.RawMessage {
	return filterArray(data, func(entry gjson.Result) bool {
		if q.PathPrefix != "" && !hasPrefixFold(entry.Get("path").String(), q.PathPrefix) {
			return false
		}
		if q.Class != "" && !strings.EqualFold(entry.Get("class_name").String(), q.Class) {
			return false
		}
		if q.Search != "" {
			if containsFold(entry.Get("path").String(), q.Search) {
				return true
			}
			ol := entry.Get("outline")
			return ol.Exists() && containsFold(ol.Raw, q.Search)
		}
		return true
	})
}

// filterEntries is the generic filter for remotes, properties, and services.
// Scope kinds without a path fall back to matching on name.
func filterEntries(data json.RawMessage, q Query) json.RawMessage {
	return filterArray(data, func(entry gjson.Result) bool {
		path := entry.Get("path").String()
		name := entry.Get("name").String()
		if q.PathPrefix != "" && !hasPrefixFold(path, q.PathPrefix) && !hasPrefixFold(name, q.PathPrefix) {
			return false
		}
		if q.Class != "" && !strings.EqualFold(entry.Get("class_name").String(), q.Class) {
			return false
		}
		if q.Search != "" && !containsFold(path, q.Search) && !containsFold(name, q.Search) {
			return false
		}
		return true
	})
}

// filterArray rebuilds a JSON array keeping elements the predicate accepts.
// Non-array data passes through untouched.
func filterArray(data json.RawMessage, keep func(gjson.Result) bool) json.RawMessage {
	parsed := gjson.ParseBytes(data)
	if !parsed.IsArray() {
		return data
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for _, item := range parsed.Array() {
		if !keep(item) {
			continue
		}
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		buf.WriteString(item.Raw)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

// MergeSourceIntoScripts attaches full source text to outline entries that
// have a matching path in the full-source records.
func MergeSourceIntoScripts(entries, fulls json.RawMessage) (json.RawMessage, error) {
	var scripts []map[string]any
	if err := json.Unmarshal(entries, &scripts); err != nil {
		return nil, newError(KindParse, "merge sources", "", err)
	}
	var sources []ScriptFull
	if err := json.Unmarshal(fulls, &sources); err != nil {
		return nil, newError(KindParse, "merge sources", "", err)
	}

	byPath := make(map[string]string, len(sources))
	for _, f := range sources {
		byPath[f.Path] = f.Source
	}
	for _, script := range scripts {
		path, _ := script["path"].(string)
		if path == "" {
			continue
		}
		if src, ok := byPath[path]; ok {
			script["source"] = src
		}
	}

	out, err := json.Marshal(scripts)
	if err != nil {
		return nil, newError(KindSerialize, "merge sources", "", err)
	}
	return out, nil
}

func hasPrefixFold(s, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix))
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
