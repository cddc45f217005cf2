package docstore

import (
	"encoding/json"
	"testing"
)

func TestMetadata_JSONKeepsTimestampVerbatim(t *testing.T) {
	t.Parallel()

	in := []byte(`{"source":"turn-1","timestamp":1700000000123,"persona":"Elara","model":"m1"}`)

	var m Metadata
	if err := json.Unmarshal(in, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m.Source != "turn-1" || m.Persona != "Elara" {
		t.Errorf("Source/Persona = %q/%q", m.Source, m.Persona)
	}
	if _, ok := m.Extra[KeySource]; ok {
		t.Error("reserved keys must not leak into Extra")
	}
	if got, ok := m.Value("model"); !ok || got != "m1" {
		t.Errorf("Value(model) = %q, %v", got, ok)
	}

	f, ok := m.Timestamp.Float()
	if !ok || f != 1700000000123 {
		t.Errorf("Timestamp.Float() = %v, %v", f, ok)
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back map[string]json.RawMessage
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal back: %v", err)
	}
	if string(back[KeyTimestamp]) != "1700000000123" {
		t.Errorf("timestamp serialized as %s, want 1700000000123", back[KeyTimestamp])
	}
}

func TestMetadata_MarshalOmitsUnsetReserved(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(Metadata{Source: "a.md"})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"source":"a.md"}` {
		t.Errorf("got %s", out)
	}
}

func TestTimestamp_Float(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		ts     Timestamp
		want   float64
		wantOK bool
	}{
		{name: "unset", ts: Timestamp{}, wantOK: false},
		{name: "number", ts: NewTimestamp(42.5), want: 42.5, wantOK: true},
		{name: "int", ts: RawTimestamp(7), want: 7, wantOK: true},
		{name: "numeric_string", ts: RawTimestamp("12"), want: 12, wantOK: true},
		{name: "word_string", ts: RawTimestamp("soon"), wantOK: false},
		{name: "bool", ts: RawTimestamp(true), wantOK: false},
		{name: "inf_string", ts: RawTimestamp("Inf"), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := tt.ts.Float()
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("Float() = %v, %v; want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMetadata_Matches(t *testing.T) {
	t.Parallel()

	m := Metadata{Source: "notes.md", Persona: "Aria", Timestamp: NewTimestamp(10)}

	tests := []struct {
		name  string
		where Where
		want  bool
	}{
		{name: "empty_filter", where: nil, want: true},
		{name: "source_match", where: Where{KeySource: "notes.md"}, want: true},
		{name: "source_mismatch", where: Where{KeySource: "other.md"}, want: false},
		{name: "all_keys", where: Where{KeySource: "notes.md", KeyPersona: "Aria"}, want: true},
		{name: "timestamp_as_string", where: Where{KeyTimestamp: "10"}, want: true},
		{name: "missing_key", where: Where{"role": "user"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := m.Matches(tt.where); got != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.where, got, tt.want)
			}
		})
	}
}
