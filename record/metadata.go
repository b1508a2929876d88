package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Metadata is an ordered mapping of string keys to scalar values. Keys keep
// their insertion order through serialization and storage round-trips, which
// makes record equality reproducible in tests and tooling.
//
// Supported value kinds are string, bool, int64 and float64. Set normalizes
// the common Go integer and float widths onto those kinds.
type Metadata struct {
	keys   []string
	values map[string]any
}

// NewMetadata builds a Metadata from alternating key/value pairs, preserving
// the given order. It panics on a non-string key or an odd number of
// arguments; it is intended for literal construction in callers and tests.
func NewMetadata(pairs ...any) *Metadata {
	if len(pairs)%2 != 0 {
		panic("record: NewMetadata requires key/value pairs")
	}
	m := &Metadata{}
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("record: NewMetadata key %d is %T, want string", i/2, pairs[i]))
		}
		m.Set(key, pairs[i+1])
	}
	return m
}

// Set assigns value to key, normalizing it to a supported scalar kind.
// Setting an existing key updates the value in place without changing the
// key's position. Unsupported kinds are stored via their string form.
func (m *Metadata) Set(key string, value any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = normalizeScalar(value)
}

// Get returns the value stored under key and whether it was present.
func (m *Metadata) Get(key string) (any, bool) {
	if m == nil || m.values == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order. The returned slice is a copy.
func (m *Metadata) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Len returns the number of keys.
func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Clone returns a deep copy. Cloning nil yields nil.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	out := &Metadata{
		keys:   append([]string(nil), m.keys...),
		values: make(map[string]any, len(m.values)),
	}
	for k, v := range m.values {
		out.values[k] = v
	}
	return out
}

// Equal reports whether both metadata hold the same keys in the same order
// with equal values. Nil and empty metadata compare equal.
func (m *Metadata) Equal(other *Metadata) bool {
	if m.Len() != other.Len() {
		return false
	}
	if m == nil || other == nil {
		return true
	}
	for i, k := range m.keys {
		if other.keys[i] != k {
			return false
		}
		if m.values[k] != other.values[k] {
			return false
		}
	}
	return true
}

// MarshalJSON serializes the metadata as a JSON object with keys in
// insertion order.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	if m == nil || len(m.keys) == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores a metadata object, keeping the key order of the
// JSON document. Numbers become int64 when integral, float64 otherwise.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.values = nil

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil { // JSON null, treated as empty
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record: metadata must be a JSON object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("record: metadata key is %T, want string", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		value, err := scalarFromToken(valTok)
		if err != nil {
			return err
		}
		m.Set(key, value)
	}
	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

func scalarFromToken(tok json.Token) (any, error) {
	switch v := tok.(type) {
	case nil, string, bool:
		return v, nil
	case json.Number:
		if i, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("record: invalid metadata number %q", v.String())
		}
		return f, nil
	default:
		return nil, fmt.Errorf("record: metadata value %v is not a scalar", tok)
	}
}

func normalizeScalar(value any) any {
	switch v := value.(type) {
	case nil, string, bool, int64, float64:
		return v
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case float32:
		return float64(v)
	default:
		return fmt.Sprint(v)
	}
}
