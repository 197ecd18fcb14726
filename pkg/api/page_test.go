package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "somharvest/pkg/errors"
)

func TestDecodePage(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		fields    []string
		wantItems int
		wantPages *int
		wantCount *int
	}{
		{
			name:      "records and pagination",
			body:      `{"pagination":{"pages":4,"count":37},"users":[{"id":1}]}`,
			fields:    []string{"users"},
			wantItems: 1,
			wantPages: intPtr(4),
			wantCount: intPtr(37),
		},
		{
			name:      "fallback field",
			body:      `{"items":[{"id":1},{"id":2}]}`,
			fields:    []string{"projects", "items"},
			wantItems: 2,
		},
		{
			name:      "null primary field falls through",
			body:      `{"projects":null,"items":[{"id":9}]}`,
			fields:    []string{"projects", "items"},
			wantItems: 1,
		},
		{
			name:      "missing field is an empty page",
			body:      `{"message":"nothing here"}`,
			fields:    []string{"users"},
			wantItems: 0,
		},
		{
			name:      "zero pagination is unknown",
			body:      `{"pagination":{"pages":0,"count":null},"users":[]}`,
			fields:    []string{"users"},
			wantItems: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := DecodePage([]byte(tt.body), tt.fields)
			require.NoError(t, err)
			assert.Len(t, page.Items, tt.wantItems)

			if tt.wantPages == nil && tt.wantCount == nil {
				if page.Pagination != nil {
					assert.Nil(t, page.Pagination.Pages)
					assert.Nil(t, page.Pagination.Count)
				}
				return
			}
			require.NotNil(t, page.Pagination)
			assert.Equal(t, tt.wantPages, page.Pagination.Pages)
			assert.Equal(t, tt.wantCount, page.Pagination.Count)
		})
	}
}

func TestDecodePageRejectsMalformedBodies(t *testing.T) {
	for _, body := range []string{`not json`, `{"users":{"id":1}}`, `[1,2,3]`} {
		_, err := DecodePage([]byte(body), []string{"users"})
		require.Error(t, err, body)
		assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err), body)
	}
}

func TestDecodePageKeepsRawRecords(t *testing.T) {
	page, err := DecodePage([]byte(`{"users":[{"id":1,"name":"Orpheus","tags":["a"]}]}`), []string{"users"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"Orpheus","tags":["a"]}`, string(page.Items[0]))
}

func TestDecodeEntries(t *testing.T) {
	items, err := DecodeEntries([]byte(` [{"slack_id":"U1"},{"slack_id":"U2"}]`), []string{"items"})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = DecodeEntries([]byte(`{"items":[{"slack_id":"U1"}]}`), []string{"items"})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = DecodeEntries([]byte(`[{"broken"`), []string{"items"})
	assert.Error(t, err)
}

func intPtr(v int) *int { return &v }
