package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// object is a JSON object whose keys keep their on-disk order and whose
// values stay as raw, untouched JSON.
type object = orderedmap.OrderedMap[string, json.RawMessage]

// Document is the in-memory form of state.json.
type Document struct {
	fields *object
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{fields: orderedmap.New[string, json.RawMessage]()}
}

// Parse decodes a state document. The input must be a single valid JSON
// object; anything else is rejected rather than defaulted.
func Parse(data []byte) (*Document, error) {
	obj, err := parseObject(data)
	if err != nil {
		return nil, err
	}
	return &Document{fields: obj}, nil
}

// Clone returns an independent copy. Raw values are shared read-only.
func (d *Document) Clone() *Document {
	out := NewDocument()
	for pair := d.fields.Oldest(); pair != nil; pair = pair.Next() {
		out.fields.Set(pair.Key, pair.Value)
	}
	return out
}

// Keys returns the top-level keys in document order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, d.fields.Len())
	for pair := d.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Raw returns the raw JSON stored under a top-level key.
func (d *Document) Raw(key string) (json.RawMessage, bool) {
	return d.fields.Get(key)
}

// CurrentPhase returns current_phase when it is present and numeric.
func (d *Document) CurrentPhase() (float64, bool) {
	raw, ok := d.fields.Get(KeyCurrentPhase)
	if !ok {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil || isNull(raw) {
		return 0, false
	}
	return v, true
}

// CurrentSession returns current_session when it holds a string.
// A null or missing session reports false.
func (d *Document) CurrentSession() (string, bool) {
	raw, ok := d.fields.Get(KeyCurrentSession)
	if !ok || isNull(raw) {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

// CompletedSessions returns the string entries of completed_sessions in order.
func (d *Document) CompletedSessions() []string {
	var out []string
	for _, item := range d.completedItems() {
		var s string
		if err := json.Unmarshal(item, &s); err == nil && !isNull(item) {
			out = append(out, s)
		}
	}
	return out
}

// PhaseStatus returns the status recorded for a phase id.
func (d *Document) PhaseStatus(phase string) (Status, bool) {
	phases := d.phases()
	raw, ok := phases.Get(phase)
	if !ok || !isObject(raw) {
		return "", false
	}
	record, err := parseObject(raw)
	if err != nil {
		return "", false
	}
	statusRaw, ok := record.Get(KeyStatus)
	if !ok {
		return "", false
	}
	var s Status
	if err := json.Unmarshal(statusRaw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Marshal renders the document with 2-space indentation and a trailing
// newline, keeping key order stable across rewrites.
func (d *Document) Marshal() ([]byte, error) {
	compact, err := marshalObject(d.fields)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, fmt.Errorf("indenting state: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// set stores v (encoded as JSON) under a top-level key, keeping the key's
// position when it already exists.
func (d *Document) set(key string, v any) error {
	raw, err := encode(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	d.fields.Set(key, raw)
	return nil
}

// completedItems returns completed_sessions as raw items. A missing or
// non-array value yields nil.
func (d *Document) completedItems() []json.RawMessage {
	raw, ok := d.fields.Get(KeyCompletedSessions)
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

// phases returns the phases object, or an empty one when it is missing or
// not an object.
func (d *Document) phases() *object {
	raw, ok := d.fields.Get(KeyPhases)
	if !ok || !isObject(raw) {
		return orderedmap.New[string, json.RawMessage]()
	}
	obj, err := parseObject(raw)
	if err != nil {
		return orderedmap.New[string, json.RawMessage]()
	}
	return obj
}

// --- JSON helpers ---

var errNotObject = errors.New("state document must be a JSON object")

func parseObject(data []byte) (*object, error) {
	if !json.Valid(data) {
		return nil, errors.New("invalid JSON")
	}
	if !isObject(data) {
		return nil, errNotObject
	}
	obj := orderedmap.New[string, json.RawMessage]()
	if err := obj.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("decoding object: %w", err)
	}
	return obj, nil
}

// marshalObject writes a compact JSON object in insertion order. Raw values
// are copied as-is; keys are encoded without HTML escaping.
func marshalObject(obj *object) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		if !first {
			buf.WriteByte(',')
		}
		first = false

		key, err := encode(pair.Key)
		if err != nil {
			return nil, fmt.Errorf("encoding key %q: %w", pair.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(pair.Value) == 0 {
			buf.WriteString("null")
			continue
		}
		buf.Write(pair.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encode marshals v without escaping <, > and &.
func encode(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func isObject(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
