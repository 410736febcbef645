// Package yamlsec is a small key/section tree over YAML mapping nodes.
//
// A Section keeps key order as written in the file, so files edited by hand
// keep their layout when they are loaded and written back.
package yamlsec

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Section is one mapping level of a YAML document.
type Section struct {
	node *yaml.Node
}

// MissingError reports a key that is not present in a section.
type MissingError struct {
	Key string
}

func (e *MissingError) Error() string { return fmt.Sprintf("key %q not present", e.Key) }

// TypeError reports a key whose value cannot be read as the requested type.
type TypeError struct {
	Key   string
	Value string
	Want  string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("key %q: %q is not a %s", e.Key, e.Value, e.Want)
}

// DuplicateKeyError reports a key written twice in the same mapping.
type DuplicateKeyError struct {
	Key  string
	Line int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("line %d: key %q defined more than once", e.Line, e.Key)
}

// New returns an empty section.
func New() *Section {
	return &Section{node: &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}}
}

// Parse reads a document whose root is a mapping. An empty document is an
// empty section. A key repeated within one mapping, at any depth, is an
// error.
func Parse(b []byte) (*Section, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return New(), nil
	}
	root := doc.Content[0]
	if isNull(root) {
		return New(), nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("document root is not a mapping")
	}
	if err := checkDuplicates(root); err != nil {
		return nil, err
	}
	return &Section{node: root}, nil
}

func checkDuplicates(n *yaml.Node) error {
	if n.Kind == yaml.MappingNode {
		seen := make(map[string]bool, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if k.Kind == yaml.ScalarNode {
				if seen[k.Value] {
					return &DuplicateKeyError{Key: k.Value, Line: k.Line}
				}
				seen[k.Value] = true
			}
		}
	}
	for _, c := range n.Content {
		if err := checkDuplicates(c); err != nil {
			return err
		}
	}
	return nil
}

// Load parses the file at path.
func Load(path string) (*Section, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// Marshal encodes the section as a YAML document.
func (s *Section) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{s.node}}
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the section to path through a temp file and rename, and
// returns the bytes written.
func (s *Section) Save(path string) ([]byte, error) {
	b, err := s.Marshal()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	return b, nil
}

// Keys returns the top-level keys of the section in file order.
func (s *Section) Keys() []string {
	out := make([]string, 0, len(s.node.Content)/2)
	for i := 0; i+1 < len(s.node.Content); i += 2 {
		out = append(out, s.node.Content[i].Value)
	}
	return out
}

// Contains reports whether key is present with a non-null value.
func (s *Section) Contains(key string) bool {
	v := s.value(key)
	return v != nil && !isNull(v)
}

// Section returns the nested mapping under key. ok is false when the key is
// absent or null; err is set when the value is present but not a mapping.
func (s *Section) Section(key string) (sub *Section, ok bool, err error) {
	v := s.value(key)
	if v == nil || isNull(v) {
		return nil, false, nil
	}
	if v.Kind != yaml.MappingNode {
		return nil, false, &TypeError{Key: key, Value: describe(v), Want: "section"}
	}
	return &Section{node: v}, true, nil
}

// CreateSection replaces key with an empty nested section and returns it.
func (s *Section) CreateSection(key string) *Section {
	sub := New()
	s.put(key, sub.node)
	return sub
}

// String returns the raw scalar text under key.
func (s *Section) String(key string) (string, error) {
	v, err := s.scalar(key, "string")
	if err != nil {
		return "", err
	}
	return v.Value, nil
}

// Int decodes the scalar under key as an int.
func (s *Section) Int(key string) (int, error) {
	var out int
	return out, s.decode(key, "int", &out)
}

// Int32 decodes the scalar under key as an int32.
func (s *Section) Int32(key string) (int32, error) {
	var out int32
	return out, s.decode(key, "int32", &out)
}

// Float decodes the scalar under key as a float64.
func (s *Section) Float(key string) (float64, error) {
	var out float64
	return out, s.decode(key, "float", &out)
}

// Float32 parses the scalar under key with 32-bit rounding, so a value
// written from a float32 reads back unchanged.
func (s *Section) Float32(key string) (float32, error) {
	v, err := s.scalar(key, "float")
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v.Value, 32)
	if err != nil {
		return 0, &TypeError{Key: key, Value: v.Value, Want: "float"}
	}
	return float32(f), nil
}

// Bool decodes the scalar under key as a bool.
func (s *Section) Bool(key string) (bool, error) {
	var out bool
	return out, s.decode(key, "bool", &out)
}

// Set encodes value under key, replacing any previous value. A nil value
// removes the key.
func (s *Section) Set(key string, value any) error {
	if value == nil {
		s.Delete(key)
		return nil
	}
	var n yaml.Node
	if err := n.Encode(value); err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}
	s.put(key, &n)
	return nil
}

// SetString stores value as a string scalar even when it looks like a number
// or bool.
func (s *Section) SetString(key, value string) {
	s.put(key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
}

// Delete removes key.
func (s *Section) Delete(key string) {
	c := s.node.Content
	for i := 0; i+1 < len(c); i += 2 {
		if c[i].Value == key {
			s.node.Content = append(c[:i:i], c[i+2:]...)
			return
		}
	}
}

// ToValue decodes the whole section into plain Go values (maps, slices,
// scalars), for schema validation.
func (s *Section) ToValue() (map[string]any, error) {
	out := map[string]any{}
	if err := s.node.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Section) value(key string) *yaml.Node {
	c := s.node.Content
	for i := 0; i+1 < len(c); i += 2 {
		if c[i].Value == key {
			return c[i+1]
		}
	}
	return nil
}

func (s *Section) put(key string, v *yaml.Node) {
	c := s.node.Content
	for i := 0; i+1 < len(c); i += 2 {
		if c[i].Value == key {
			c[i+1] = v
			return
		}
	}
	k := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	s.node.Content = append(s.node.Content, k, v)
}

func (s *Section) scalar(key, want string) (*yaml.Node, error) {
	v := s.value(key)
	if v == nil || isNull(v) {
		return nil, &MissingError{Key: key}
	}
	if v.Kind != yaml.ScalarNode {
		return nil, &TypeError{Key: key, Value: describe(v), Want: want}
	}
	return v, nil
}

func (s *Section) decode(key, want string, out any) error {
	v, err := s.scalar(key, want)
	if err != nil {
		return err
	}
	if err := v.Decode(out); err != nil {
		return &TypeError{Key: key, Value: v.Value, Want: want}
	}
	return nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func describe(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "<section>"
	case yaml.SequenceNode:
		return "<list>"
	default:
		return n.Value
	}
}
