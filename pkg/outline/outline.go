// Package outline derives a lightweight static-analysis summary from script
// source text. Extraction is regex-driven and best-effort: malformed or
// partial source simply yields fewer matches, never an error.
package outline

import (
	"regexp"
	"strings"
)

// Outline is the per-script summary stored alongside each script entry.
type Outline struct {
	Functions       []string `json:"functions"`
	Requires        []string `json:"requires"`
	Services        []string `json:"services"`
	RemoteAccesses  []string `json:"remote_accesses"`
	InstanceRefs    []string `json:"instance_refs"`
	StringConstants []string `json:"string_constants"`
	TopLevelVars    []string `json:"top_level_vars"`
	LineCount       int      `json:"line_count"`
}

const (
	// Remote-access lines longer than this are recorded as the bare method name.
	maxRemoteLineLen = 120

	maxStringConstants = 50
	maxTopLevelVars    = 20
)

var (
	reFunction    = regexp.MustCompile(`(?m)(?:local\s+)?function\s+([\w.:]+)\s*\(([^)]*)\)`)
	reRequire     = regexp.MustCompile(`require\(([^)]+)\)`)
	reService     = regexp.MustCompile(`game:GetService\(\s*["']([^"']+)["']\s*\)`)
	reRemote      = regexp.MustCompile(`[:.](FireServer|InvokeServer|OnClientEvent|OnServerEvent|FireClient|OnClientInvoke)\s*\(`)
	reInstanceRef = regexp.MustCompile(`(?:FindFirstChild|WaitForChild|FindFirstChildOfClass|FindFirstChildWhichIsA)\(\s*["']([^"']+)["']`)
	reString      = regexp.MustCompile(`["']([^"']{2,60})["']`)
	reLocalVar    = regexp.MustCompile(`(?m)^local\s+(\w+)\s*=`)
)

// stringNoise holds quoted literals too common to be worth keeping: UI class
// names, geometry type names, and HTTP/MIME boilerplate.
var stringNoise = map[string]bool{
	"Frame": true, "TextLabel": true, "TextButton": true, "ImageLabel": true,
	"ImageButton": true, "ScreenGui": true, "ScrollingFrame": true,
	"UIListLayout": true, "UICorner": true, "UIPadding": true, "UIStroke": true,
	"UIGridLayout": true, "UIAspectRatioConstraint": true,
	"Color3": true, "Vector3": true, "CFrame": true, "UDim2": true, "UDim": true,
	"rbxassetid://": true, "Content-Type": true, "application/json": true,
}

// Extract scans source text into an Outline. It is deterministic and makes a
// single pass per pattern category.
func Extract(source string) Outline {
	o := Outline{
		Functions:       []string{},
		Requires:        []string{},
		Services:        []string{},
		RemoteAccesses:  []string{},
		InstanceRefs:    []string{},
		StringConstants: []string{},
		TopLevelVars:    []string{},
		LineCount:       CountLines(source),
	}

	// Duplicate function signatures are kept: occurrence order matters more
	// than uniqueness for navigating a script.
	for _, m := range reFunction.FindAllStringSubmatch(source, -1) {
		o.Functions = append(o.Functions, m[1]+"("+strings.TrimSpace(m[2])+")")
	}

	for _, m := range reRequire.FindAllStringSubmatch(source, -1) {
		o.Requires = appendUnique(o.Requires, strings.TrimSpace(m[1]))
	}

	for _, m := range reService.FindAllStringSubmatch(source, -1) {
		o.Services = appendUnique(o.Services, m[1])
	}

	for _, idx := range reRemote.FindAllStringSubmatchIndex(source, -1) {
		method := source[idx[2]:idx[3]]
		line := strings.TrimSpace(lineAt(source, idx[0]))
		if len(line) <= maxRemoteLineLen {
			o.RemoteAccesses = appendUnique(o.RemoteAccesses, line)
		} else {
			o.RemoteAccesses = appendUnique(o.RemoteAccesses, method)
		}
	}

	for _, m := range reInstanceRef.FindAllStringSubmatch(source, -1) {
		o.InstanceRefs = appendUnique(o.InstanceRefs, m[1])
	}

	captured := make(map[string]bool, len(o.Services))
	for _, s := range o.Services {
		captured[s] = true
	}
	for _, m := range reString.FindAllStringSubmatch(source, -1) {
		if len(o.StringConstants) >= maxStringConstants {
			break
		}
		val := m[1]
		if stringNoise[val] || captured[val] {
			continue
		}
		o.StringConstants = appendUnique(o.StringConstants, val)
	}

	for _, m := range reLocalVar.FindAllStringSubmatch(source, -1) {
		if len(o.TopLevelVars) >= maxTopLevelVars {
			break
		}
		name := m[1]
		if len(name) <= 1 || name == "v" || name == "i" || name == "k" {
			continue
		}
		o.TopLevelVars = appendUnique(o.TopLevelVars, name)
	}

	return o
}

// CountLines reports the number of lines in source, with no phantom line for
// a trailing newline and zero for empty input.
func CountLines(source string) int {
	if source == "" {
		return 0
	}
	n := strings.Count(source, "\n")
	if !strings.HasSuffix(source, "\n") {
		n++
	}
	return n
}

// lineAt returns the full line of source containing byte offset off.
func lineAt(source string, off int) string {
	start := strings.LastIndexByte(source[:off], '\n') + 1
	end := strings.IndexByte(source[off:], '\n')
	if end < 0 {
		return source[start:]
	}
	return source[start : off+end]
}

func appendUnique(list []string, val string) []string {
	for _, existing := range list {
		if existing == val {
			return list
		}
	}
	return append(list, val)
}
