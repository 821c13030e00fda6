package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldSelector names where a semantic field lives inside a raw record.
// It is either a single key or an ordered list of fallback keys; the zero
// value selects nothing.
type FieldSelector struct {
	field     string
	fallbacks []string
}

// Single selects exactly one raw key.
func Single(name string) FieldSelector {
	return FieldSelector{field: name}
}

// Fallbacks selects the first present key among names, in order.
func Fallbacks(names ...string) FieldSelector {
	return FieldSelector{fallbacks: append([]string(nil), names...)}
}

// IsFallback reports whether the selector is the fallback-list form.
func (s *FieldSelector) IsFallback() bool {
	return s != nil && len(s.fallbacks) > 0
}

// Candidates returns the keys to try, in resolution order.
func (s *FieldSelector) Candidates() []string {
	if s == nil {
		return nil
	}
	if s.field != "" {
		return []string{s.field}
	}
	return s.fallbacks
}

func (s *FieldSelector) String() string {
	return strings.Join(s.Candidates(), "|")
}

// Validate checks that exactly one form is set and no key is blank.
func (s *FieldSelector) Validate() error {
	if s == nil {
		return errors.New("selector is missing")
	}
	if s.field != "" && len(s.fallbacks) > 0 {
		return errors.New("selector must provide either 'field' or 'fields', not both")
	}
	if s.field == "" && len(s.fallbacks) == 0 {
		return errors.New("selector must define either 'field' or 'fields'")
	}
	for i, name := range s.fallbacks {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("selector fields[%d] is empty", i)
		}
	}
	return nil
}

type selectorDoc struct {
	Field  string   `json:"field,omitempty" yaml:"field,omitempty"`
	Fields []string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

func (s *FieldSelector) fromDoc(doc selectorDoc) error {
	*s = FieldSelector{field: doc.Field, fallbacks: doc.Fields}
	return s.Validate()
}

// UnmarshalYAML accepts {field: x}, {fields: [x, y]} or a bare scalar.
func (s *FieldSelector) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*s = Single(strings.TrimSpace(value.Value))
		return s.Validate()
	}
	var doc selectorDoc
	if err := value.Decode(&doc); err != nil {
		return err
	}
	return s.fromDoc(doc)
}

func (s FieldSelector) MarshalYAML() (interface{}, error) {
	return selectorDoc{Field: s.field, Fields: s.fallbacks}, nil
}

func (s FieldSelector) MarshalJSON() ([]byte, error) {
	return json.Marshal(selectorDoc{Field: s.field, Fields: s.fallbacks})
}

func (s *FieldSelector) UnmarshalJSON(data []byte) error {
	var doc selectorDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	return s.fromDoc(doc)
}
