package mapbatch

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// YAMLStore is an in-memory CheckpointStore that can dump and reload its
// entries as YAML, giving checkpoint round-trip tests a human-readable
// golden format instead of an opaque byte blob, per SPEC_FULL's domain
// stack notes.
type YAMLStore struct {
	entries map[string]storeEntry
}

// NewYAMLStore returns an empty store.
func NewYAMLStore() *YAMLStore {
	return &YAMLStore{entries: map[string]storeEntry{}}
}

type storeEntry struct {
	Type   string      `yaml:"type"`
	Scalar int64       `yaml:"scalar,omitempty"`
	Str    string      `yaml:"str,omitempty"`
	Val    *yamlTensor `yaml:"val,omitempty"`
}

type yamlTensor struct {
	Kind     Kind      `yaml:"kind"`
	Shape    []int64   `yaml:"shape"`
	Ints     []int64   `yaml:"ints,omitempty"`
	Floats32 []float32 `yaml:"floats32,omitempty"`
	Floats64 []float64 `yaml:"floats64,omitempty"`
	Strings  []string  `yaml:"strings,omitempty"`
	Bools    []bool    `yaml:"bools,omitempty"`
}

func valueToYAML(v Value) *yamlTensor {
	t := &yamlTensor{Kind: v.Kind, Shape: []int64(v.Shape.clone())}
	switch d := v.Data.(type) {
	case []int64:
		t.Ints = append([]int64(nil), d...)
	case []float32:
		t.Floats32 = append([]float32(nil), d...)
	case []float64:
		t.Floats64 = append([]float64(nil), d...)
	case []string:
		t.Strings = append([]string(nil), d...)
	case []bool:
		t.Bools = append([]bool(nil), d...)
	}
	return t
}

func yamlToValue(t *yamlTensor) Value {
	v := Value{Kind: t.Kind, Shape: Shape(t.Shape)}
	switch t.Kind {
	case KindInt64:
		v.Data = t.Ints
	case KindFloat32:
		v.Data = t.Floats32
	case KindFloat64:
		v.Data = t.Floats64
	case KindString:
		v.Data = t.Strings
	case KindBool:
		v.Data = t.Bools
	}
	return v
}

func (s *YAMLStore) WriteScalar(key string, v int64) error {
	s.entries[key] = storeEntry{Type: "scalar", Scalar: v}
	return nil
}

func (s *YAMLStore) WriteFlag(key string) error {
	s.entries[key] = storeEntry{Type: "flag"}
	return nil
}

func (s *YAMLStore) WriteValue(key string, v Value) error {
	s.entries[key] = storeEntry{Type: "value", Val: valueToYAML(v)}
	return nil
}

func (s *YAMLStore) WriteString(key string, v string) error {
	s.entries[key] = storeEntry{Type: "string", Str: v}
	return nil
}

func (s *YAMLStore) ReadScalar(key string) (int64, error) {
	e, ok := s.entries[key]
	if !ok {
		return 0, fmt.Errorf("mapbatch: checkpoint key %q not found", key)
	}
	return e.Scalar, nil
}

func (s *YAMLStore) ReadValue(key string) (Value, error) {
	e, ok := s.entries[key]
	if !ok || e.Val == nil {
		return Value{}, fmt.Errorf("mapbatch: checkpoint key %q not found", key)
	}
	return yamlToValue(e.Val), nil
}

func (s *YAMLStore) ReadString(key string) (string, error) {
	e, ok := s.entries[key]
	if !ok {
		return "", fmt.Errorf("mapbatch: checkpoint key %q not found", key)
	}
	return e.Str, nil
}

func (s *YAMLStore) Contains(key string) bool {
	_, ok := s.entries[key]
	return ok
}

// Dump renders the store as YAML, sorted by key so output is stable across
// runs — useful for golden-file diffs in tests.
func (s *YAMLStore) Dump() ([]byte, error) {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make([]struct {
		Key   string     `yaml:"key"`
		Entry storeEntry `yaml:"entry"`
	}, len(keys))
	for i, k := range keys {
		ordered[i].Key = k
		ordered[i].Entry = s.entries[k]
	}
	return yaml.Marshal(ordered)
}

// LoadYAMLStore reconstructs a store previously produced by Dump.
func LoadYAMLStore(data []byte) (*YAMLStore, error) {
	var ordered []struct {
		Key   string     `yaml:"key"`
		Entry storeEntry `yaml:"entry"`
	}
	if err := yaml.Unmarshal(data, &ordered); err != nil {
		return nil, err
	}
	s := NewYAMLStore()
	for _, e := range ordered {
		s.entries[e.Key] = e.Entry
	}
	return s, nil
}
