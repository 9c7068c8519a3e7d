package core

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

type FieldType string

const (
	TypeString      FieldType = "string"
	TypeNumber      FieldType = "number"
	TypeBoolean     FieldType = "boolean"
	TypeStringArray FieldType = "string_array"
)

// FieldSpec declares one argument of an operation.
type FieldSpec struct {
	Name        string
	Type        FieldType
	Required    bool
	Description string
	// Default is applied when the argument is absent. Nil means no default.
	Default any
	Enum    []string
}

// OperationSpec is one entry of the fixed operation catalog.
type OperationSpec struct {
	Name        string
	Description string
	Fields      []FieldSpec
}

func (s OperationSpec) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// RepoScoped reports whether the operation addresses a single repository
// through owner and repo arguments.
func (s OperationSpec) RepoScoped() bool {
	_, owner := s.Field("owner")
	_, repo := s.Field("repo")
	return owner && repo
}

func (s OperationSpec) Required() []string {
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// Registry maps operation names to specs, keeping declaration order.
type Registry struct {
	ops    []OperationSpec
	byName map[string]int
}

func NewRegistry(specs []OperationSpec) (*Registry, error) {
	r := &Registry{ops: make([]OperationSpec, 0, len(specs)), byName: make(map[string]int, len(specs))}
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("operation with empty name")
		}
		if _, dup := r.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate operation %q", s.Name)
		}
		r.byName[s.Name] = len(r.ops)
		r.ops = append(r.ops, s)
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (OperationSpec, bool) {
	i, ok := r.byName[name]
	if !ok {
		return OperationSpec{}, false
	}
	return r.ops[i], true
}

// Operations returns the catalog in declaration order.
func (r *Registry) Operations() []OperationSpec {
	return slices.Clone(r.ops)
}

// Args are bound, typed arguments for one invocation.
type Args struct {
	values map[string]any
}

func (a Args) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

func (a Args) String(name string) string {
	s, _ := a.values[name].(string)
	return s
}

func (a Args) Int(name string) int {
	n, _ := a.values[name].(int)
	return n
}

func (a Args) Bool(name string) bool {
	b, _ := a.values[name].(bool)
	return b
}

func (a Args) Strings(name string) []string {
	s, _ := a.values[name].([]string)
	return s
}

// Bind checks arguments against the operation's fields and applies
// defaults. Unknown arguments are ignored.
func (s OperationSpec) Bind(arguments map[string]any) (Args, error) {
	values := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		raw, present := arguments[f.Name]
		if !present || raw == nil {
			if f.Required {
				return Args{}, &ArgumentError{Operation: s.Name, Field: f.Name, Reason: "is required"}
			}
			if f.Default != nil {
				values[f.Name] = f.Default
			}
			continue
		}

		v, err := coerce(f, raw)
		if err != nil {
			return Args{}, &ArgumentError{Operation: s.Name, Field: f.Name, Reason: err.Error()}
		}
		if f.Required && f.Type == TypeString && strings.TrimSpace(v.(string)) == "" {
			return Args{}, &ArgumentError{Operation: s.Name, Field: f.Name, Reason: "must not be empty"}
		}
		if len(f.Enum) > 0 && !slices.Contains(f.Enum, v.(string)) {
			return Args{}, &ArgumentError{Operation: s.Name, Field: f.Name, Reason: fmt.Sprintf("must be one of %s", strings.Join(f.Enum, ", "))}
		}
		values[f.Name] = v
	}
	return Args{values: values}, nil
}

func coerce(f FieldSpec, raw any) (any, error) {
	switch f.Type {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string")
		}
		return s, nil
	case TypeNumber:
		return coerceInt(raw)
	case TypeBoolean:
		switch b := raw.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, fmt.Errorf("must be a boolean")
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("must be a boolean")
	case TypeStringArray:
		switch items := raw.(type) {
		case []string:
			return slices.Clone(items), nil
		case []any:
			out := make([]string, 0, len(items))
			for _, it := range items {
				s, ok := it.(string)
				if !ok {
					return nil, fmt.Errorf("must be an array of strings")
				}
				out = append(out, s)
			}
			return out, nil
		}
		return nil, fmt.Errorf("must be an array of strings")
	}
	return nil, fmt.Errorf("unsupported field type %q", f.Type)
}

func coerceInt(raw any) (int, error) {
	var f float64
	switch n := raw.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("must be a number")
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("must be a number")
		}
		f = parsed
	default:
		return 0, fmt.Errorf("must be a number")
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("must be a whole number")
	}
	return int(f), nil
}
