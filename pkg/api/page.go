package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	errs "somharvest/pkg/errors"
)

// Pagination is the optional metadata block some pages carry.
// A zero or missing value is reported as nil.
type Pagination struct {
	Pages *int
	Count *int
}

// PageResult is one decoded page: its records in arrival order plus
// pagination metadata when the page reported it.
type PageResult struct {
	Items      []json.RawMessage
	Pagination *Pagination
}

type rawPagination struct {
	Pages *int `json:"pages"`
	Count *int `json:"count"`
}

// DecodePage parses a page body. Records are read from the first of fields
// present with a non-null value; when none is present the page is empty.
// Malformed bodies are reported as network errors so they are retried.
func DecodePage(body []byte, fields []string) (*PageResult, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errs.Network(fmt.Errorf("decode page: %w", err))
	}

	result := &PageResult{}

	if raw, ok := doc["pagination"]; ok && !isNull(raw) {
		var p rawPagination
		if err := json.Unmarshal(raw, &p); err == nil {
			result.Pagination = &Pagination{
				Pages: positive(p.Pages),
				Count: positive(p.Count),
			}
		}
	}

	for _, field := range fields {
		raw, ok := doc[field]
		if !ok || isNull(raw) {
			continue
		}
		if err := json.Unmarshal(raw, &result.Items); err != nil {
			return nil, errs.Network(fmt.Errorf("decode %q: %w", field, err))
		}
		break
	}

	return result, nil
}

// DecodeEntries parses a document that is either a bare JSON array or an
// object holding the array under one of fields.
func DecodeEntries(body []byte, fields []string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, errs.Network(fmt.Errorf("decode entries: %w", err))
		}
		return items, nil
	}
	page, err := DecodePage(body, fields)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// positive mirrors the upstream "value || null" reading: zero means unknown.
func positive(v *int) *int {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}
