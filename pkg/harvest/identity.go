package harvest

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"unicode/utf16"
)

// IdentityKey derives the deduplication key of a record: its "id" when
// present and non-null, else its "slug", else the length of its serialized
// form. The length fallback is weak (distinct records of equal length
// collide, and may collide with numeric ids) and is kept only because the
// API is expected to always send an id.
func IdentityKey(record json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(record, &fields); err == nil {
		for _, name := range []string{"id", "slug"} {
			if raw, ok := fields[name]; ok && !isNull(raw) {
				if key, ok := numberKey(raw); ok {
					return key
				}
				return compact(raw)
			}
		}
	}
	return strconv.Itoa(serializedLength(record))
}

// serializedLength counts UTF-16 code units of the compact encoding, the
// way a JavaScript string length would.
func serializedLength(record json.RawMessage) int {
	n := 0
	for _, r := range compact(record) {
		if units := utf16.RuneLen(r); units > 0 {
			n += units
		} else {
			n++
		}
	}
	return n
}

// numberKey renders a numeric id by value, so 1, 1.0 and 1e0 share a key.
// Like a JavaScript number, values beyond 2^53 lose precision.
func numberKey(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || (trimmed[0] != '-' && (trimmed[0] < '0' || trimmed[0] > '9')) {
		return "", false
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", false
	}
	f, err := n.Float64()
	if err != nil {
		return "", false
	}
	if f == 0 {
		return "0", true
	}
	if math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return strconv.FormatFloat(f, 'g', -1, 64), true
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(bytes.TrimSpace(raw))
	}
	return buf.String()
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// IdentitySet tracks the keys already merged in a job
type IdentitySet struct {
	keys map[string]struct{}
}

// NewIdentitySet creates an empty set
func NewIdentitySet() *IdentitySet {
	return &IdentitySet{keys: make(map[string]struct{})}
}

// Add inserts key and reports whether it was new
func (s *IdentitySet) Add(key string) bool {
	if _, seen := s.keys[key]; seen {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Has reports whether key was seen
func (s *IdentitySet) Has(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of distinct keys
func (s *IdentitySet) Len() int {
	return len(s.keys)
}
