package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	errs "somharvest/pkg/errors"
	"somharvest/pkg/logger"
	"somharvest/pkg/storage"
)

// Checkpoint is the resumable state of one paginated job
type Checkpoint struct {
	// Page is the next page to fetch (>= 1)
	Page int
	// RecordsField names the records array on disk, e.g. "users"
	RecordsField string
	Records      []json.RawMessage
	TotalPages   *int
	TotalCount   *int
	Cookies      map[string]string
	UpdatedAt    time.Time
}

// MarshalJSON writes {page, <field>, totalPages, totalCount, cookies, updatedAt}.
func (c *Checkpoint) MarshalJSON() ([]byte, error) {
	records := c.Records
	if records == nil {
		records = []json.RawMessage{}
	}
	cookies := c.Cookies
	if cookies == nil {
		cookies = map[string]string{}
	}
	return storage.Object{
		{Key: "page", Value: c.Page},
		{Key: c.RecordsField, Value: records},
		{Key: "totalPages", Value: c.TotalPages},
		{Key: "totalCount", Value: c.TotalCount},
		{Key: "cookies", Value: cookies},
		{Key: "updatedAt", Value: c.UpdatedAt.UTC().Format(storage.TimestampFormat)},
	}.MarshalJSON()
}

// Decode parses a checkpoint file whose records live under recordsField.
// Missing records, totals or cookies are tolerated; a body that is not a
// JSON object or lacks a usable page cursor is not.
func Decode(data []byte, recordsField string) (*Checkpoint, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("checkpoint is not an object")
	}

	cp := &Checkpoint{RecordsField: recordsField, Cookies: map[string]string{}}

	raw, ok := doc["page"]
	if !ok {
		return nil, fmt.Errorf("missing page")
	}
	page, err := wholeNumber(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid page: %w", err)
	}
	if page < 1 {
		return nil, fmt.Errorf("invalid page %d", page)
	}
	cp.Page = page

	if raw, ok := doc[recordsField]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &cp.Records); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", recordsField, err)
		}
	}
	if cp.Records == nil {
		cp.Records = []json.RawMessage{}
	}

	cp.TotalPages = optionalCount(doc["totalPages"])
	cp.TotalCount = optionalCount(doc["totalCount"])

	if raw, ok := doc["cookies"]; ok {
		var values map[string]json.RawMessage
		if err := json.Unmarshal(raw, &values); err == nil {
			for name, v := range values {
				var s string
				if json.Unmarshal(v, &s) == nil {
					cp.Cookies[name] = s
				}
			}
		}
	}

	if raw, ok := doc["updatedAt"]; ok {
		var ts string
		if json.Unmarshal(raw, &ts) == nil {
			if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				cp.UpdatedAt = t
			}
		}
	}

	return cp, nil
}

// Manager handles checkpoint operations for a single job
type Manager struct {
	checkpointPath string
	recordsField   string
	logger         logger.Logger
}

// NewManager creates a new checkpoint manager
func NewManager(path, recordsField string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		checkpointPath: path,
		recordsField:   recordsField,
		logger:         log,
	}
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Load loads an existing checkpoint. It returns nil, nil when there is
// none and a checkpoint_corrupt error when the file cannot be trusted.
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	checkpoint, err := Decode(data, m.recordsField)
	if err != nil {
		return nil, errs.CheckpointCorrupt(m.checkpointPath, err)
	}

	m.logger.DebugWithFields("Checkpoint loaded", map[string]interface{}{
		"path":    m.checkpointPath,
		"page":    checkpoint.Page,
		"records": len(checkpoint.Records),
	})

	return checkpoint, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()
	checkpoint.RecordsField = m.recordsField

	data, err := storage.MarshalIndent(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := storage.WriteFileAtomic(m.checkpointPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"page":    checkpoint.Page,
		"records": len(checkpoint.Records),
	})

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint deleted", map[string]interface{}{
		"path": m.checkpointPath,
	})
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// Quarantine moves an untrusted checkpoint to <path>.corrupt so a fresh run
// does not overwrite it. It returns the new location.
func (m *Manager) Quarantine() (string, error) {
	if !m.Exists() {
		return "", nil
	}

	target := m.checkpointPath + ".corrupt"
	if err := os.Rename(m.checkpointPath, target); err != nil {
		return "", fmt.Errorf("failed to move corrupt checkpoint: %w", err)
	}

	m.logger.WarnWithFields("Corrupt checkpoint moved aside", map[string]interface{}{
		"path":     m.checkpointPath,
		"moved_to": target,
	})
	return target, nil
}

// Info summarises a checkpoint for status output
type Info struct {
	Path        string
	Page        int
	Records     int
	TotalPages  *int
	TotalCount  *int
	CookieNames []string
	UpdatedAt   time.Time
	Age         time.Duration
}

// Info returns a summary of the checkpoint, nil when none exists.
func (m *Manager) Info() (*Info, error) {
	checkpoint, err := m.Load()
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, nil
	}

	names := make([]string, 0, len(checkpoint.Cookies))
	for name := range checkpoint.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	updated := checkpoint.UpdatedAt
	if updated.IsZero() {
		if st, err := os.Stat(m.checkpointPath); err == nil {
			updated = st.ModTime()
		}
	}

	return &Info{
		Path:        m.checkpointPath,
		Page:        checkpoint.Page,
		Records:     len(checkpoint.Records),
		TotalPages:  checkpoint.TotalPages,
		TotalCount:  checkpoint.TotalCount,
		CookieNames: names,
		UpdatedAt:   updated,
		Age:         time.Since(updated),
	}, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// optionalCount reads an int|null total; zero and malformed values are unknown.
func optionalCount(raw json.RawMessage) *int {
	if len(raw) == 0 || isNull(raw) {
		return nil
	}
	n, err := wholeNumber(raw)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// wholeNumber decodes a JSON number that has no fractional part, so 2 and
// 2.0 both yield 2.
func wholeNumber(raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%s is not a whole number", bytes.TrimSpace(raw))
	}
	return int(f), nil
}
