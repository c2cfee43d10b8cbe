// Package logbuf is the fixed-capacity in-memory log buffer behind the /logs
// endpoints. Oldest entries are evicted first; filtering and pagination
// happen over a locked snapshot.
package logbuf

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one received log line.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
	PID       uint64    `json:"pid,omitempty"`
	Username  string    `json:"username,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
}

// Query filters and paginates buffered entries. Zero values mean "no
// filter"; Tags matches any-of.
type Query struct {
	Level     string
	Source    string
	Search    string
	Tags      []string
	PID       uint64
	After     time.Time
	Before    time.Time
	Ascending bool
	Limit     int
	Offset    int
	Page      int
}

// Page is the pagination envelope returned to callers.
type Page struct {
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	PerPage    int     `json:"per_page"`
	TotalPages int     `json:"total_pages"`
	HasMore    bool    `json:"has_more"`
	Logs       []Entry `json:"logs"`
}

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// Buffer is a bounded log store safe for concurrent use.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	cap     int
}

func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Buffer{
		entries: make([]Entry, 0, capacity),
		cap:     capacity,
	}
}

// Add stamps the entry with an ID and timestamp (when unset) and stores it,
// evicting the oldest entry at capacity. The stored entry is returned.
func (b *Buffer) Add(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) >= b.cap {
		copy(b.entries, b.entries[1:])
		b.entries = b.entries[:len(b.entries)-1]
	}
	b.entries = append(b.entries, e)
	return e
}

// Len reports the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Clear drops all entries and returns how many were removed.
func (b *Buffer) Clear() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.entries)
	b.entries = b.entries[:0]
	return n
}

// Query applies the filters and returns one page of matching entries,
// newest first unless Ascending is set.
func (b *Buffer) Query(q Query) Page {
	b.mu.RLock()
	matched := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		if matches(e, q) {
			matched = append(matched, e)
		}
	}
	b.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if q.Ascending {
			return matched[i].Timestamp.Before(matched[j].Timestamp)
		}
		return matched[j].Timestamp.Before(matched[i].Timestamp)
	})

	total := len(matched)
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := q.Offset
	if q.Page > 0 {
		offset = (q.Page - 1) * limit
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return Page{
		Total:      total,
		Page:       offset/limit + 1,
		PerPage:    limit,
		TotalPages: (total + limit - 1) / limit,
		HasMore:    end < total,
		Logs:       matched[offset:end],
	}
}

func matches(e Entry, q Query) bool {
	if q.Level != "" && !strings.EqualFold(e.Level, q.Level) {
		return false
	}
	if q.Source != "" && !strings.Contains(strings.ToLower(e.Source), strings.ToLower(q.Source)) {
		return false
	}
	if q.Search != "" && !strings.Contains(strings.ToLower(e.Message), strings.ToLower(q.Search)) {
		return false
	}
	if q.PID != 0 && e.PID != q.PID {
		return false
	}
	if !q.After.IsZero() && e.Timestamp.Before(q.After) {
		return false
	}
	if !q.Before.IsZero() && e.Timestamp.After(q.Before) {
		return false
	}
	if len(q.Tags) > 0 && !hasAnyTag(e.Tags, q.Tags) {
		return false
	}
	return true
}

func hasAnyTag(entryTags, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range entryTags {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}
