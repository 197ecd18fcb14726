package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "somharvest/pkg/errors"
	"somharvest/pkg/logger"
)

func newTestManager(t *testing.T, field string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), field+"_resume.json")
	return NewManager(path, field, logger.NewNopLogger())
}

func intPtr(v int) *int { return &v }

func TestLoadMissingCheckpoint(t *testing.T) {
	mgr := newTestManager(t, "users")

	cp, err := mgr.Load()
	require.NoError(t, err)
	assert.Nil(t, cp)
	assert.False(t, mgr.Exists())
}

func TestSaveAndLoad(t *testing.T) {
	mgr := newTestManager(t, "projects")

	original := &Checkpoint{
		Page:       3,
		Records:    []json.RawMessage{json.RawMessage(`{"id":1,"title":"a"}`), json.RawMessage(`{"id":2}`)},
		TotalPages: intPtr(10),
		TotalCount: intPtr(95),
		Cookies:    map[string]string{"_session": "abc", "theme": ""},
	}
	require.NoError(t, mgr.Save(original))
	assert.True(t, mgr.Exists())

	loaded, err := mgr.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, 3, loaded.Page)
	assert.Equal(t, "projects", loaded.RecordsField)
	require.Len(t, loaded.Records, 2)
	assert.JSONEq(t, `{"id":1,"title":"a"}`, string(loaded.Records[0]))
	assert.Equal(t, intPtr(10), loaded.TotalPages)
	assert.Equal(t, intPtr(95), loaded.TotalCount)
	assert.Equal(t, original.Cookies, loaded.Cookies)
	assert.WithinDuration(t, original.UpdatedAt, loaded.UpdatedAt, time.Millisecond)
}

func TestSaveLayout(t *testing.T) {
	mgr := newTestManager(t, "users")
	require.NoError(t, mgr.Save(&Checkpoint{Page: 2, Records: []json.RawMessage{json.RawMessage(`{"id":1}`)}}))

	data, err := os.ReadFile(mgr.Path())
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.EqualValues(t, 2, doc["page"])
	assert.Nil(t, doc["totalPages"])
	assert.Nil(t, doc["totalCount"])
	assert.Contains(t, doc, "users")
	assert.Contains(t, doc, "cookies")

	text := string(data)
	assert.Less(t, strings.Index(text, `"page"`), strings.Index(text, `"users"`))
	assert.Less(t, strings.Index(text, `"users"`), strings.Index(text, `"totalPages"`))
	assert.Less(t, strings.Index(text, `"totalCount"`), strings.Index(text, `"cookies"`))

	info, err := os.Stat(mgr.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSaveOverwrites(t *testing.T) {
	mgr := newTestManager(t, "users")
	require.NoError(t, mgr.Save(&Checkpoint{Page: 2}))
	require.NoError(t, mgr.Save(&Checkpoint{Page: 3}))

	loaded, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Page)

	entries, err := os.ReadDir(filepath.Dir(mgr.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated", `{"page": 4, "users": [{"id":1},`},
		{"not an object", `[1,2,3]`},
		{"null", `null`},
		{"missing page", `{"users": []}`},
		{"zero page", `{"page": 0, "users": []}`},
		{"string page", `{"page": "two"}`},
		{"fractional page", `{"page": 2.5}`},
		{"records not an array", `{"page": 2, "users": {"id": 1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := newTestManager(t, "users")
			require.NoError(t, os.WriteFile(mgr.Path(), []byte(tt.content), 0644))

			cp, err := mgr.Load()
			assert.Nil(t, cp)
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.ErrorTypeCheckpointCorrupt))
		})
	}
}

func TestLoadToleratesLooseFields(t *testing.T) {
	mgr := newTestManager(t, "projects")
	content := `{"page": 5, "totalPages": 0, "totalCount": null, "cookies": {"a": "1", "b": 2}}`
	require.NoError(t, os.WriteFile(mgr.Path(), []byte(content), 0644))

	cp, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cp.Page)
	assert.Empty(t, cp.Records)
	assert.Nil(t, cp.TotalPages)
	assert.Nil(t, cp.TotalCount)
	assert.Equal(t, map[string]string{"a": "1"}, cp.Cookies)
}

func TestLoadAcceptsWholeFloatPage(t *testing.T) {
	mgr := newTestManager(t, "users")
	content := `{"page": 2.0, "users": [{"id": 1}], "totalPages": 4.0, "totalCount": 1e2}`
	require.NoError(t, os.WriteFile(mgr.Path(), []byte(content), 0644))

	cp, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cp.Page)
	assert.Len(t, cp.Records, 1)
	assert.Equal(t, intPtr(4), cp.TotalPages)
	assert.Equal(t, intPtr(100), cp.TotalCount)
	assert.True(t, mgr.Exists(), "a whole-number page must not be moved aside")
}

func TestDeleteAndQuarantine(t *testing.T) {
	mgr := newTestManager(t, "users")

	require.NoError(t, mgr.Delete(), "deleting a missing checkpoint is not an error")

	require.NoError(t, os.WriteFile(mgr.Path(), []byte("garbage"), 0644))
	moved, err := mgr.Quarantine()
	require.NoError(t, err)
	assert.Equal(t, mgr.Path()+".corrupt", moved)
	assert.False(t, mgr.Exists())
	assert.FileExists(t, moved)

	moved, err = mgr.Quarantine()
	require.NoError(t, err)
	assert.Empty(t, moved)

	require.NoError(t, mgr.Save(&Checkpoint{Page: 2}))
	require.NoError(t, mgr.Delete())
	assert.False(t, mgr.Exists())
}

func TestInfo(t *testing.T) {
	mgr := newTestManager(t, "users")

	info, err := mgr.Info()
	require.NoError(t, err)
	assert.Nil(t, info)

	require.NoError(t, mgr.Save(&Checkpoint{
		Page:       4,
		Records:    []json.RawMessage{json.RawMessage(`{"id":1}`), json.RawMessage(`{"id":2}`)},
		TotalPages: intPtr(9),
		Cookies:    map[string]string{"z": "1", "a": "2"},
	}))

	info, err = mgr.Info()
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 4, info.Page)
	assert.Equal(t, 2, info.Records)
	assert.Equal(t, intPtr(9), info.TotalPages)
	assert.Nil(t, info.TotalCount)
	assert.Equal(t, []string{"a", "z"}, info.CookieNames)
	assert.False(t, info.UpdatedAt.IsZero())
}
