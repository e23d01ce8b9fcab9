package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ============================================================================
// Attribute Values
// ============================================================================

// ValueKind tags the dynamic type held by a Value
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "string"
	}
}

// Value is a tagged attribute value: a string, a number or a boolean
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

// String wraps a string attribute value
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps a numeric attribute value
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool wraps a boolean attribute value
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports which variant the value holds
func (v Value) Kind() ValueKind { return v.kind }

// AsString returns the string variant
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsNumber returns the numeric variant
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsBool returns the boolean variant
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// String renders the value for prompts and logs
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.str
	}
}

// MarshalJSON encodes the value as its native JSON type
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.str)
	}
}

// UnmarshalJSON accepts JSON strings, numbers and booleans
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case string:
		*v = String(t)
	case float64:
		*v = Number(t)
	case bool:
		*v = Bool(t)
	default:
		return fmt.Errorf("attribute value must be a string, number or bool: %s", data)
	}
	return nil
}

// ============================================================================
// Attributes
// ============================================================================

// Attribute is a single named value on a node
type Attribute struct {
	Key   string
	Value Value
}

// Attr builds an Attribute
func Attr(key string, value Value) Attribute {
	return Attribute{Key: key, Value: value}
}

// Attributes is an insertion-ordered mapping from attribute name to value.
// Keys are unique; setting an existing key replaces its value in place.
type Attributes []Attribute

// NewAttributes builds an ordered attribute set, later duplicates replace earlier ones
func NewAttributes(pairs ...Attribute) Attributes {
	attrs := make(Attributes, 0, len(pairs))
	for _, p := range pairs {
		attrs.Set(p.Key, p.Value)
	}
	return attrs
}

// Get returns the value stored under key
func (a Attributes) Get(key string) (Value, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return Value{}, false
}

// Set stores value under key, keeping the key's original position if present
func (a *Attributes) Set(key string, value Value) {
	for i := range *a {
		if (*a)[i].Key == key {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Attribute{Key: key, Value: value})
}

// Merge returns a copy of a with every attribute of other applied on top
func (a Attributes) Merge(other Attributes) Attributes {
	merged := a.Clone()
	for _, attr := range other {
		merged.Set(attr.Key, attr.Value)
	}
	return merged
}

// Clone returns an independent copy
func (a Attributes) Clone() Attributes {
	if a == nil {
		return Attributes{}
	}
	out := make(Attributes, len(a))
	copy(out, a)
	return out
}

// MarshalJSON encodes the attributes as a JSON object preserving insertion order
func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, attr := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(attr.Key)
		if err != nil {
			return nil, err
		}
		val, err := attr.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the key order of the document
func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("attributes: expected JSON object")
	}
	attrs := Attributes{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var v Value
		if err := dec.Decode(&v); err != nil {
			return err
		}
		attrs.Set(key, v)
	}
	*a = attrs
	return nil
}

// ============================================================================
// Graph Types
// ============================================================================

// Node is a typed entity in the context graph. Type is open-ended (User, Role,
// Goal, Screen, Course, Message, Response, ...); it is empty only for
// placeholder nodes created implicitly by an edge.
type Node struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Attributes Attributes `json:"attributes"`
}

func (n Node) clone() Node {
	n.Attributes = n.Attributes.Clone()
	return n
}

// Edge is a directed, relation-labeled link. Seq is the global insertion
// index, so parallel edges between the same pair stay distinguishable.
type Edge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
	Seq      int    `json:"seq"`
}

// Neighborhood is the induced subgraph around a node
type Neighborhood struct {
	Nodes map[string]Node `json:"nodes"`
	Edges []Edge          `json:"edges"`
}

// IsEmpty reports whether the neighborhood holds no nodes
func (n Neighborhood) IsEmpty() bool {
	return len(n.Nodes) == 0
}

func emptyNeighborhood() Neighborhood {
	return Neighborhood{Nodes: map[string]Node{}, Edges: []Edge{}}
}

// Snapshot is the full node table and edge table, in insertion order
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}
