package ir

import (
	"github.com/mark3labs/apiflow/internal/constraint"
)

// Kind names a section of the Store.
type Kind string

const (
	KindVariable   Kind = "variable"
	KindConstraint Kind = "constraint"
	KindEndpoint   Kind = "endpoint"
	KindParameter  Kind = "parameter"
	KindResponse   Kind = "response"
	KindInterface  Kind = "interface"
)

// Reference points at an entry of a Store. An optional Overlay is merged onto
// the resolved Parameter at read time.
type Reference struct {
	Kind    Kind
	ID      string
	Overlay *Parameter
}

// Pointer renders the reference as a "$ref" string.
func (r Reference) Pointer() string { return r.ID }

// Resolve looks the reference up in s. A dangling reference yields false.
func (r Reference) Resolve(s *Store) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.Get(r.Kind, r.ID)
	if !ok {
		return nil, false
	}
	if r.Overlay != nil {
		if p, isParam := v.(Parameter); isParam {
			return p.Overlay(*r.Overlay), true
		}
	}
	return v, true
}

type section struct {
	ids     []string
	entries map[string]any
}

// Store is a registry of shared definitions keyed by kind and id. It is
// filled while a document is compiled and only read afterwards; concurrent
// writers need external locking.
type Store struct {
	sections map[Kind]*section
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{sections: make(map[Kind]*section)}
}

// Put stores v under (kind, id), replacing any previous entry in place.
func (s *Store) Put(kind Kind, id string, v any) {
	sec, ok := s.sections[kind]
	if !ok {
		sec = &section{entries: make(map[string]any)}
		s.sections[kind] = sec
	}
	if _, exists := sec.entries[id]; !exists {
		sec.ids = append(sec.ids, id)
	}
	sec.entries[id] = v
}

// Get returns the entry stored under (kind, id).
func (s *Store) Get(kind Kind, id string) (any, bool) {
	sec, ok := s.sections[kind]
	if !ok {
		return nil, false
	}
	v, ok := sec.entries[id]
	return v, ok
}

// IDs lists the ids of kind in insertion order.
func (s *Store) IDs(kind Kind) []string {
	sec, ok := s.sections[kind]
	if !ok {
		return nil
	}
	return append([]string(nil), sec.ids...)
}

// Len returns the number of entries of kind.
func (s *Store) Len(kind Kind) int {
	if sec, ok := s.sections[kind]; ok {
		return len(sec.ids)
	}
	return 0
}

func (s *Store) Parameter(id string) (Parameter, bool) {
	v, ok := s.Get(KindParameter, id)
	if !ok {
		return Parameter{}, false
	}
	p, ok := v.(Parameter)
	return p, ok
}

func (s *Store) Constraint(id string) (constraint.Constraint, bool) {
	v, ok := s.Get(KindConstraint, id)
	if !ok {
		return nil, false
	}
	c, ok := v.(constraint.Constraint)
	return c, ok
}

func (s *Store) Interface(id string) (Interface, bool) {
	v, ok := s.Get(KindInterface, id)
	if !ok {
		return Interface{}, false
	}
	i, ok := v.(Interface)
	return i, ok
}
