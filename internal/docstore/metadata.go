package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
)

// Reserved metadata keys.
const (
	KeySource    = "source"
	KeyTimestamp = "timestamp"
	KeyPersona   = "persona"
)

// Metadata is the typed view of a document's metadata map.
// It serializes as a single flat JSON object.
type Metadata struct {
	// Source is the originating file (knowledge_base) or turn id (chat_history).
	Source string

	// Timestamp is the raw timestamp value as stored. It may be unset or
	// hold a value that does not parse as a number.
	Timestamp Timestamp

	// Persona optionally scopes chat_history retrieval.
	Persona string

	// Extra holds every other key.
	Extra map[string]any
}

// Timestamp holds a metadata timestamp exactly as it was stored.
type Timestamp struct {
	raw any
}

// NewTimestamp returns a numeric timestamp.
func NewTimestamp(v float64) Timestamp {
	return Timestamp{raw: json.Number(strconv.FormatFloat(v, 'f', -1, 64))}
}

// RawTimestamp wraps an arbitrary decoded JSON value. Nil yields an unset
// timestamp.
func RawTimestamp(v any) Timestamp {
	return Timestamp{raw: v}
}

// IsSet reports whether a timestamp value is present.
func (t Timestamp) IsSet() bool { return t.raw != nil }

// Raw returns the stored value, or nil.
func (t Timestamp) Raw() any { return t.raw }

// Float parses the timestamp. Numbers and numeric strings are accepted;
// NaN and infinities are rejected.
func (t Timestamp) Float() (float64, bool) {
	var f float64
	switch v := t.raw.(type) {
	case json.Number:
		parsed, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// MarshalJSON implements json.Marshaler.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+3)
	maps.Copy(out, m.Extra)
	if m.Source != "" {
		out[KeySource] = m.Source
	}
	if m.Timestamp.IsSet() {
		out[KeyTimestamp] = m.Timestamp.raw
	}
	if m.Persona != "" {
		out[KeyPersona] = m.Persona
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Numbers are kept as
// json.Number so timestamps survive a round trip unchanged.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("docstore: decode metadata: %w", err)
	}

	*m = Metadata{}
	if v, ok := raw[KeySource]; ok {
		m.Source = stringify(v)
		delete(raw, KeySource)
	}
	if v, ok := raw[KeyTimestamp]; ok {
		m.Timestamp = Timestamp{raw: v}
		delete(raw, KeyTimestamp)
	}
	if v, ok := raw[KeyPersona]; ok {
		m.Persona = stringify(v)
		delete(raw, KeyPersona)
	}
	if len(raw) > 0 {
		m.Extra = raw
	}
	return nil
}

// Value returns the metadata value for key as a string, and whether it
// is present. Reserved keys map to their typed fields.
func (m Metadata) Value(key string) (string, bool) {
	switch key {
	case KeySource:
		return m.Source, m.Source != ""
	case KeyPersona:
		return m.Persona, m.Persona != ""
	case KeyTimestamp:
		if !m.Timestamp.IsSet() {
			return "", false
		}
		return stringify(m.Timestamp.raw), true
	}
	v, ok := m.Extra[key]
	if !ok {
		return "", false
	}
	return stringify(v), true
}

// Matches reports whether every key of w equals the metadata value.
func (m Metadata) Matches(w Where) bool {
	for k, want := range w {
		got, ok := m.Value(k)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return fmt.Sprint(s)
	}
}
