package remote

import (
	json "github.com/goccy/go-json"
)

// clone deep-copies a field map through its JSON form. Native values such as
// time.Time come back as the strings a remote store would hand out.
func clone(data map[string]any) (map[string]any, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return decodeData(b)
}

func decodeData(b []byte) (map[string]any, error) {
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func signature(docs []Document) (string, error) {
	type entry struct {
		ID   string         `json:"id"`
		Data map[string]any `json:"data"`
	}
	entries := make([]entry, len(docs))
	for i, d := range docs {
		entries[i] = entry{ID: d.ID, Data: d.Data}
	}
	// map keys are encoded in sorted order, so equal documents give equal
	// signatures
	b, err := json.Marshal(entries)
	return string(b), err
}
