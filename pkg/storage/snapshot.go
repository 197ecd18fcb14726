package storage

import (
	"encoding/json"
	"time"
)

// TimestampFormat matches JavaScript's Date.toISOString output.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Snapshot is the final output of a completed paginated harvest.
type Snapshot struct {
	ScrapedAt     time.Time
	Total         int
	ExpectedTotal *int
	// RecordsField names the array in the output, e.g. "users".
	RecordsField string
	Records      []json.RawMessage
	Cookies      map[string]string
}

// MarshalJSON writes {scraped_at, total, expected_total, <field>, cookies}.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	records := s.Records
	if records == nil {
		records = []json.RawMessage{}
	}
	cookies := s.Cookies
	if cookies == nil {
		cookies = map[string]string{}
	}
	return Object{
		{"scraped_at", s.ScrapedAt.UTC().Format(TimestampFormat)},
		{"total", s.Total},
		{"expected_total", s.ExpectedTotal},
		{s.RecordsField, records},
		{"cookies", cookies},
	}.MarshalJSON()
}

// EntriesSnapshot is the output of a one-shot document fetch.
type EntriesSnapshot struct {
	ScrapedAt time.Time
	Entries   []json.RawMessage
}

// MarshalJSON writes {scraped_at, total, entries}.
func (s *EntriesSnapshot) MarshalJSON() ([]byte, error) {
	entries := s.Entries
	if entries == nil {
		entries = []json.RawMessage{}
	}
	return Object{
		{"scraped_at", s.ScrapedAt.UTC().Format(TimestampFormat)},
		{"total", len(entries)},
		{"entries", entries},
	}.MarshalJSON()
}
