// Package evidence defines the measured-value records attached to findings
// and the caller-supplied inputs (upstream reports, claim attestations)
// the rule evaluator consumes.
//
// Determinism: records preserve insertion order, values are a closed union,
// and serialization never depends on map iteration order.
package evidence

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValueKind discriminates the closed union of evidence value types.
type ValueKind string

const (
	KindBool       ValueKind = "bool"
	KindInt        ValueKind = "int"
	KindFloat      ValueKind = "float"
	KindString     ValueKind = "string"
	KindStringList ValueKind = "string_list"
)

// Value is a single measured evidence value. Exactly one payload field is
// meaningful, selected by Kind.
type Value struct {
	Kind    ValueKind
	Bool    bool
	Int     int64
	Float   float64
	Str     string
	StrList []string
}

func BoolValue(b bool) Value         { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value         { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value     { return Value{Kind: KindFloat, Float: f} }
func StringValue(s string) Value     { return Value{Kind: KindString, Str: s} }
func StringsValue(ss []string) Value { return Value{Kind: KindStringList, StrList: ss} }

// MarshalJSON emits the underlying scalar or list, not the union wrapper.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindBool:
		return json.Marshal(v.Bool)
	case KindInt:
		return json.Marshal(v.Int)
	case KindFloat:
		return json.Marshal(v.Float)
	case KindString:
		return json.Marshal(v.Str)
	case KindStringList:
		if v.StrList == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.StrList)
	default:
		return nil, fmt.Errorf("evidence: unknown value kind %q", v.Kind)
	}
}

// Equal reports value equality across the union.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindString:
		return v.Str == o.Str
	case KindStringList:
		if len(v.StrList) != len(o.StrList) {
			return false
		}
		for i := range v.StrList {
			if v.StrList[i] != o.StrList[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Record is one evidence record: an ordered mapping of named measured
// values plus the correlation annotations added when records are merged
// across pipeline stages.
type Record struct {
	names  []string
	values map[string]Value

	// Role is set to "summary" on the synthetic record the correlation
	// engine attaches to a canonical finding.
	Role string
	// OriginStage is the stage the merged-in evidence came from.
	OriginStage string
}

// NewRecord creates an empty evidence record.
func NewRecord() *Record {
	return &Record{values: make(map[string]Value)}
}

// Set records a named value, preserving first-insertion order.
func (r *Record) Set(name string, v Value) *Record {
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = v
	return r
}

// Get returns the value for name.
func (r *Record) Get(name string) (Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Names returns the value names in insertion order.
func (r *Record) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of values in the record.
func (r *Record) Len() int { return len(r.names) }

// MarshalJSON writes the values object in insertion order, followed by the
// correlation annotations when present.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"values":{`)
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := r.values[name].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("evidence: marshal %q: %w", name, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	if r.Role != "" {
		buf.WriteString(`,"correlation_role":`)
		rb, _ := json.Marshal(r.Role)
		buf.Write(rb)
	}
	if r.OriginStage != "" {
		buf.WriteString(`,"correlated_origin_stage":`)
		sb, _ := json.Marshal(r.OriginStage)
		buf.Write(sb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores a record from its wire form. Insertion order is
// recovered from the raw object token stream.
func (r *Record) UnmarshalJSON(data []byte) error {
	var wire struct {
		Values      json.RawMessage `json:"values"`
		Role        string          `json:"correlation_role"`
		OriginStage string          `json:"correlated_origin_stage"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.names = nil
	r.values = make(map[string]Value)
	r.Role = wire.Role
	r.OriginStage = wire.OriginStage
	if len(wire.Values) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(wire.Values))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("evidence: record values must be an object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name := keyTok.(string)
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		v, err := valueFromAny(raw)
		if err != nil {
			return fmt.Errorf("evidence: value %q: %w", name, err)
		}
		r.Set(name, v)
	}
	return nil
}

func valueFromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return IntValue(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return FloatValue(f), nil
	case []any:
		ss := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return Value{}, fmt.Errorf("list values must be strings, got %T", e)
			}
			ss = append(ss, s)
		}
		return StringsValue(ss), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}
