package datex

import (
	"bytes"
	"time"

	json "github.com/goccy/go-json"
)

// Instant is a date-bearing field after boundary normalization. A valid
// Instant carries the canonical time; an invalid one keeps the raw text it
// was decoded from so it survives a cache round trip unchanged.
//
// On the wire an Instant accepts a remote timestamp object, an ISO string or
// null. It encodes as an RFC 3339 string carrying the offset of the zone it
// was normalized in, so its calendar date survives a round trip (or as the
// raw text when invalid, or null when empty).
type Instant struct {
	t   time.Time
	raw string
}

// At wraps an already canonical time, keeping its location.
func At(t time.Time) Instant {
	if t.IsZero() {
		return Instant{}
	}
	return Instant{t: t.Round(0)}
}

// From normalizes v into an Instant. Values that cannot be normalized produce
// an invalid Instant rather than an error.
func From(v any) Instant {
	t, err := Normalize(v)
	if err != nil {
		if s, ok := v.(string); ok {
			return Instant{raw: s}
		}
		return Instant{}
	}
	return At(t)
}

// Time returns the canonical time or ErrInvalidDate.
func (i Instant) Time() (time.Time, error) {
	if i.t.IsZero() {
		return time.Time{}, ErrInvalidDate
	}
	return i.t, nil
}

// Valid reports whether the instant holds a usable time.
func (i Instant) Valid() bool { return !i.t.IsZero() }

// IsZero reports whether nothing was set at all.
func (i Instant) IsZero() bool { return i.t.IsZero() && i.raw == "" }

// Raw returns the original text of an invalid instant.
func (i Instant) Raw() string { return i.raw }

func (i Instant) String() string {
	if i.Valid() {
		return i.t.Format(time.RFC3339Nano)
	}
	return i.raw
}

// MarshalJSON implements json.Marshaler.
func (i Instant) MarshalJSON() ([]byte, error) {
	if i.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(i.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *Instant) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*i = Instant{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = From(s)
	case '{':
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*i = From(m)
	default:
		// numbers and other shapes are not a known date representation
		*i = Instant{raw: string(data)}
	}
	return nil
}
