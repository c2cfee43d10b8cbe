package storage

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"

	"treescope/pkg/outline"
)

// WriteScripts splits a scripts chunk into outline entries (scripts.json)
// and full sources (scripts_full.json). Every record gets a ScriptEntry; the
// outline and the full-source copy exist only for records whose source text
// was non-empty.
func (s *Store) WriteScripts(targetID uint64, payload json.RawMessage) error {
	parsed := gjson.ParseBytes(payload)
	if !parsed.IsArray() {
		return newError(KindValidation, "write scripts", "", errors.New("scripts payload must be an array"))
	}

	entries := []ScriptEntry{}
	fulls := []ScriptFull{}

	for _, script := range parsed.Array() {
		source := script.Get("source").String()

		entry := ScriptEntry{
			Path:       script.Get("path").String(),
			ClassName:  script.Get("class_name").String(),
			Decompiled: script.Get("decompiled").Bool(),
			LineCount:  outline.CountLines(source),
			Size:       len(source),
		}
		if enabled := script.Get("enabled"); enabled.Exists() {
			v := enabled.Bool()
			entry.Enabled = &v
		}
		if source != "" {
			o := outline.Extract(source)
			entry.Outline = &o
			fulls = append(fulls, ScriptFull{Path: entry.Path, Source: source})
		}
		entries = append(entries, entry)
	}

	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return newError(KindSerialize, "write scripts", "", err)
	}
	fullsJSON, err := json.Marshal(fulls)
	if err != nil {
		return newError(KindSerialize, "write scripts", "", err)
	}

	if err := s.AppendScope(targetID, scriptsFile, entriesJSON); err != nil {
		return err
	}
	return s.AppendScope(targetID, scriptsFullFile, fullsJSON)
}
