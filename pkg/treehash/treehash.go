// Package treehash fingerprints a scanned instance tree.
//
// The hash must be stable across scans of a structurally identical tree even
// when the agent submits services and chunks in a different order, so every
// node is flattened to a "class:name:path" record and the records are sorted
// before hashing.
package treehash

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/tidwall/gjson"
)

// Hash computes the content hash of a tree given as raw JSON. Arrays are
// flattened, and an object contributes a record only when its "path" field is
// non-empty. Children are always visited.
func Hash(tree []byte) string {
	entries := collectEntries(gjson.ParseBytes(tree), nil)
	sort.Strings(entries)

	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func collectEntries(node gjson.Result, out []string) []string {
	switch {
	case node.IsArray():
		node.ForEach(func(_, item gjson.Result) bool {
			out = collectEntries(item, out)
			return true
		})
	case node.IsObject():
		if path := node.Get("path").String(); path != "" {
			out = append(out, node.Get("class_name").String()+":"+node.Get("name").String()+":"+path)
		}
		if children := node.Get("children"); children.Exists() {
			out = collectEntries(children, out)
		}
	}
	return out
}
