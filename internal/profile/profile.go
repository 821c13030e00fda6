package profile

import (
	"errors"
	"fmt"
	"strings"
)

// Field entry types with special rendering in the details pane.
const (
	EntryTypeSQL                     = "sql"
	EntryTypeStructuredLoggingFields = "StructuredLoggingFields"
	EntryTypeRemainingFields         = "RemainingFields"
)

// LogProfile describes how to read canonical fields out of raw records.
// Profiles are immutable once loaded; a reload swaps in a new value.
type LogProfile struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Version    int        `json:"version" yaml:"version"`
	CoreFields CoreFields `json:"coreFields" yaml:"coreFields"`
	TieBreaker TieBreaker `json:"tieBreaker" yaml:"tieBreaker"`
	LogTable   LogTable   `json:"logTable" yaml:"logTable"`
	LogDetails LogDetails `json:"logDetails" yaml:"logDetails"`
}

// CoreFields maps semantic names onto raw record keys.
type CoreFields struct {
	Time        FieldSelector  `json:"time" yaml:"time"`
	Message     FieldSelector  `json:"message" yaml:"message"`
	StreamID    *FieldSelector `json:"streamId,omitempty" yaml:"streamId,omitempty"`
	Stream      *FieldSelector `json:"stream,omitempty" yaml:"stream,omitempty"`
	Severity    *FieldSelector `json:"severity,omitempty" yaml:"severity,omitempty"`
	ServiceName *FieldSelector `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	TraceID     *FieldSelector `json:"traceId,omitempty" yaml:"traceId,omitempty"`
	SpanID      *FieldSelector `json:"spanId,omitempty" yaml:"spanId,omitempty"`
}

// TieBreaker lists the raw keys hashed together to order rows that share a timestamp.
type TieBreaker struct {
	Fields []string `json:"fields" yaml:"fields"`
}

type LogTable struct {
	Columns []FieldEntry `json:"columns" yaml:"columns"`
}

type LogDetails struct {
	FieldSets []FieldSet `json:"fieldSets" yaml:"fieldSets"`
}

type FieldSet struct {
	ID     string       `json:"id,omitempty" yaml:"id,omitempty"`
	Name   string       `json:"name" yaml:"name"`
	Fields []FieldEntry `json:"fields" yaml:"fields"`
}

// FieldEntry is a presentation entry: a column or a details row.
type FieldEntry struct {
	ID     string   `json:"id,omitempty" yaml:"id,omitempty"`
	Title  string   `json:"title,omitempty" yaml:"title,omitempty"`
	Field  string   `json:"field,omitempty" yaml:"field,omitempty"`
	Fields []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	Type   string   `json:"type,omitempty" yaml:"type,omitempty"`
	Hidden bool     `json:"hidden,omitempty" yaml:"hidden,omitempty"`
}

// Ref identifies a profile revision.
type Ref struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

func (p *LogProfile) Ref() Ref {
	return Ref{ID: p.ID, Version: p.Version}
}

// Selector returns the entry's field selector, or nil for special entries.
func (e FieldEntry) Selector() *FieldSelector {
	switch {
	case e.Field != "":
		sel := Single(e.Field)
		return &sel
	case len(e.Fields) > 0:
		sel := Fallbacks(e.Fields...)
		return &sel
	default:
		return nil
	}
}

func (e FieldEntry) validate() error {
	special := e.Type == EntryTypeStructuredLoggingFields || e.Type == EntryTypeRemainingFields
	switch e.Type {
	case "", EntryTypeSQL, EntryTypeStructuredLoggingFields, EntryTypeRemainingFields:
	default:
		return fmt.Errorf("unknown entry type %q", e.Type)
	}

	hasField := e.Field != ""
	hasFields := len(e.Fields) > 0
	if hasField && hasFields {
		return errors.New("field entries must provide either 'field' or 'fields', not both")
	}
	if special {
		if hasField || hasFields {
			return errors.New("special field entries cannot define 'field' or 'fields'")
		}
		return nil
	}
	if !hasField && !hasFields {
		return errors.New("field entries must define either 'field' or 'fields'")
	}
	return e.Selector().Validate()
}

// Validate checks the structural rules every loaded profile must satisfy.
func (p *LogProfile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	if p.Version <= 0 {
		return fmt.Errorf("version must be a positive integer, got %d", p.Version)
	}

	if err := p.CoreFields.Time.Validate(); err != nil {
		return fmt.Errorf("coreFields.time: %w", err)
	}
	if err := p.CoreFields.Message.Validate(); err != nil {
		return fmt.Errorf("coreFields.message: %w", err)
	}
	optional := map[string]*FieldSelector{
		"streamId":    p.CoreFields.StreamID,
		"stream":      p.CoreFields.Stream,
		"severity":    p.CoreFields.Severity,
		"serviceName": p.CoreFields.ServiceName,
		"traceId":     p.CoreFields.TraceID,
		"spanId":      p.CoreFields.SpanID,
	}
	for name, sel := range optional {
		if sel == nil {
			continue
		}
		if err := sel.Validate(); err != nil {
			return fmt.Errorf("coreFields.%s: %w", name, err)
		}
	}

	if len(p.TieBreaker.Fields) == 0 {
		return errors.New("tieBreaker.fields must not be empty")
	}
	for i, f := range p.TieBreaker.Fields {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("tieBreaker.fields[%d] is empty", i)
		}
	}

	if len(p.LogTable.Columns) == 0 {
		return errors.New("logTable.columns must not be empty")
	}
	for i, col := range p.LogTable.Columns {
		if err := col.validate(); err != nil {
			return fmt.Errorf("logTable.columns[%d]: %w", i, err)
		}
	}

	if len(p.LogDetails.FieldSets) == 0 {
		return errors.New("logDetails.fieldSets must not be empty")
	}
	for i, set := range p.LogDetails.FieldSets {
		if strings.TrimSpace(set.Name) == "" {
			return fmt.Errorf("logDetails.fieldSets[%d].name is required", i)
		}
		if len(set.Fields) == 0 {
			return fmt.Errorf("logDetails.fieldSets[%d].fields must not be empty", i)
		}
		for j, entry := range set.Fields {
			if err := entry.validate(); err != nil {
				return fmt.Errorf("logDetails.fieldSets[%d].fields[%d]: %w", i, j, err)
			}
		}
	}
	return nil
}
