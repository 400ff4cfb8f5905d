package logs

import (
	"encoding/json"
	"strings"

	"ribosim/internal/logging"
)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Filter selects structured log lines. Zero fields match everything.
type Filter struct {
	SessionID string
	Component string
	EventType string
	MinLevel  string
	Search    string
}

// Empty reports whether the filter passes every line unchanged.
func (f Filter) Empty() bool {
	return strings.TrimSpace(f.SessionID) == "" &&
		strings.TrimSpace(f.Component) == "" &&
		strings.TrimSpace(f.EventType) == "" &&
		strings.TrimSpace(f.MinLevel) == "" &&
		strings.TrimSpace(f.Search) == ""
}

// Match reports whether line passes. Lines that are not JSON objects only
// pass an empty filter or a matching Search.
func (f Filter) Match(line string) bool {
	if f.Empty() {
		return true
	}
	if search := strings.TrimSpace(f.Search); search != "" && !strings.Contains(strings.ToLower(line), strings.ToLower(search)) {
		return false
	}
	if f.structuredEmpty() {
		return true
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return false
	}
	if !fieldEquals(record, logging.FieldSessionID, f.SessionID) ||
		!fieldEquals(record, logging.FieldComponent, f.Component) ||
		!fieldEquals(record, logging.FieldEventType, f.EventType) {
		return false
	}
	if floor := strings.ToLower(strings.TrimSpace(f.MinLevel)); floor != "" {
		level, _ := record["level"].(string)
		if levelRank[strings.ToLower(level)] < levelRank[floor] {
			return false
		}
	}
	return true
}

func (f Filter) structuredEmpty() bool {
	rest := f
	rest.Search = ""
	return rest.Empty()
}

// Apply returns the lines that match.
func (f Filter) Apply(lines []string) []string {
	if f.Empty() {
		return lines
	}
	out := lines[:0:0]
	for _, line := range lines {
		if f.Match(line) {
			out = append(out, line)
		}
	}
	return out
}

func fieldEquals(record map[string]any, key, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return true
	}
	got, _ := record[key].(string)
	return strings.EqualFold(got, want)
}
