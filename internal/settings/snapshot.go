package settings

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"
)

// snapshot is an immutable view of the runtime_settings table.
type snapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

var current atomic.Pointer[snapshot]

// Store replaces the active snapshot. Keys are trimmed and values are copied.
func Store(updatedAt time.Time, values map[string]json.RawMessage) {
	next := &snapshot{updatedAt: updatedAt.UTC(), values: make(map[string]json.RawMessage, len(values))}
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		next.values[key] = cloneRaw(v)
	}
	current.Store(next)
}

// Reset drops every override.
func Reset() {
	current.Store(nil)
}

// UpdatedAt returns the newest row timestamp seen by the last refresh.
func UpdatedAt() time.Time {
	if s := current.Load(); s != nil {
		return s.updatedAt
	}
	return time.Time{}
}

// Value returns a copy of the raw value stored under key.
func Value(key string) (json.RawMessage, bool) {
	s := current.Load()
	if s == nil {
		return nil, false
	}
	v, ok := s.values[strings.TrimSpace(key)]
	if !ok {
		return nil, false
	}
	return cloneRaw(v), true
}

func cloneRaw(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}
