package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownEnvelope = errors.New("backend: unrecognised list envelope")

// Page is one window of a list plus the server's total count.
type Page[T any] struct {
	Items []T
	Total int
}

// DecodeList normalises the list shapes the backend is known to return, tried
// in this order:
//
//	{ "totalCount": n, "items": { "$values": [...] } }   (or items as a plain array)
//	{ "$values": [...] }
//	{ "value": [...], "@odata.count": n }
//	[ ... ]
func DecodeList(raw json.RawMessage) ([]json.RawMessage, int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, 0, nil
	}

	if raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, 0, fmt.Errorf("backend: decode list: %w", err)
		}
		return items, len(items), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, 0, fmt.Errorf("backend: decode list: %w", err)
	}

	if itemsRaw, ok := lookup(obj, "items"); ok {
		items, err := arrayOrValues(itemsRaw)
		if err != nil {
			return nil, 0, err
		}
		return items, countOr(obj, len(items), "totalCount"), nil
	}
	if valuesRaw, ok := lookup(obj, "$values"); ok {
		items, err := arrayOrValues(valuesRaw)
		if err != nil {
			return nil, 0, err
		}
		return items, countOr(obj, len(items), "totalCount"), nil
	}
	if valueRaw, ok := lookup(obj, "value"); ok {
		items, err := arrayOrValues(valueRaw)
		if err != nil {
			return nil, 0, err
		}
		return items, countOr(obj, len(items), "@odata.count", "totalCount"), nil
	}
	return nil, 0, ErrUnknownEnvelope
}

// DecodePage decodes any supported envelope into typed rows.
func DecodePage[T any](raw json.RawMessage) (Page[T], error) {
	items, total, err := DecodeList(raw)
	if err != nil {
		return Page[T]{}, err
	}
	out := make([]T, 0, len(items))
	for i, it := range items {
		var v T
		if err := json.Unmarshal(it, &v); err != nil {
			return Page[T]{}, fmt.Errorf("backend: decode list item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return Page[T]{Items: out, Total: total}, nil
}

func arrayOrValues(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("backend: decode list: %w", err)
		}
		inner, ok := lookup(obj, "$values")
		if !ok {
			return nil, ErrUnknownEnvelope
		}
		raw = inner
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("backend: decode list: %w", err)
	}
	return items, nil
}

func lookup(obj map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	if v, ok := obj[key]; ok {
		return v, true
	}
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func countOr(obj map[string]json.RawMessage, def int, keys ...string) int {
	for _, k := range keys {
		raw, ok := lookup(obj, k)
		if !ok {
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
