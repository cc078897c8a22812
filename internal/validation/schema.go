// Package validation implements a declarative, per-field rule engine for
// request bodies. Schemas are registered once at startup and applied per
// request, producing an ordered error list and a sanitized copy of the
// accepted fields.
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Type selects the coercion branch applied to a field value.
type Type string

const (
	TypeString  Type = "string"
	TypeEmail   Type = "email"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeDate    Type = "date"
	TypeArray   Type = "array"
)

// Rule is the declarative constraint set for one field. Type determines
// which of the remaining constraints are meaningful; they are applied
// conjunctively and each violation produces its own error.
type Rule struct {
	Required  bool
	Type      Type
	MinLength *int
	MaxLength *int
	Min       *float64
	Max       *float64
	Pattern   *regexp.Regexp
	Enum      []string
}

// Field pairs a name with its rule. Schemas keep fields in a slice so
// declaration order drives error ordering.
type Field struct {
	Name string
	Rule Rule
}

// Schema is a named, ordered set of field rules for one request shape.
type Schema struct {
	Name   string
	Fields []Field
}

// Result holds the outcome of validating one body against one schema.
// Sanitized contains only fields that passed presence and type checks;
// unknown input fields are always dropped.
type Result struct {
	Valid     bool
	Errors    []string
	Sanitized map[string]any
}

// Registry maps schema names to schemas. Registration happens at
// startup; lookups are per request.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

func (r *Registry) Register(s *Schema) error {
	if s == nil || s.Name == "" {
		return fmt.Errorf("schema must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[s.Name]; exists {
		return fmt.Errorf("schema already registered: %s", s.Name)
	}
	r.schemas[s.Name] = s
	return nil
}

func (r *Registry) Get(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns the registered schema names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
