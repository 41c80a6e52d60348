package inventory

import (
	"bytes"
	"encoding/json"
)

// NormalizeItems accepts {"Items": [...]}, {"items": [...]} or a bare array,
// checked in that order with case sensitive keys. Any other JSON value
// yields ErrMalformedResponse, as does an array whose elements are not
// items. An empty body is an empty list.
func NormalizeItems(raw []byte) ([]Item, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return []Item{}, nil
	}

	switch trimmed[0] {
	case '[':
		return decodeItems(trimmed)
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, err
		}
		for _, key := range []string{"Items", "items"} {
			if value, ok := wrapper[key]; ok && isArray(value) {
				return decodeItems(value)
			}
		}
	}

	return nil, ErrMalformedResponse
}

func decodeItems(raw []byte) ([]Item, error) {
	items := []Item{}
	if err := json.Unmarshal(raw, &items); err != nil {
		malformed := ErrMalformedResponse.Clone()
		malformed.Source = err
		return nil, malformed
	}
	return items, nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
