package schema

import "encoding/json"

// Definitions is the shared, ordered definitions table that compiled schemas
// are flattened into. It is an accumulator owned by a single compilation and
// is not safe for concurrent writers.
type Definitions struct {
	names   []string
	entries map[string]Fragment
}

// NewDefinitions returns an empty table.
func NewDefinitions() *Definitions {
	return &Definitions{entries: make(map[string]Fragment)}
}

// Add normalizes f, strips its "$key" and stores it under that key. A later
// fragment with the same key replaces the earlier one but keeps its position.
// Fragments without a key are rejected.
func (d *Definitions) Add(f Fragment) bool {
	key := Identity(f)
	if key == "" {
		return false
	}
	entry := Normalize(f)
	stripped := make(Fragment, len(entry))
	for k, v := range entry {
		if k != KeyIdentity {
			stripped[k] = v
		}
	}
	if _, exists := d.entries[key]; !exists {
		d.names = append(d.names, key)
	}
	d.entries[key] = stripped
	return true
}

// Get returns the definition stored under name.
func (d *Definitions) Get(name string) (Fragment, bool) {
	f, ok := d.entries[name]
	return f, ok
}

// Names returns definition names in insertion order.
func (d *Definitions) Names() []string {
	return append([]string(nil), d.names...)
}

// Len returns the number of definitions.
func (d *Definitions) Len() int { return len(d.names) }

// Fragment returns a copy of the table as a {"definitions": {...}} fragment.
func (d *Definitions) Fragment() Fragment {
	defs := make(Fragment, len(d.entries))
	for name, f := range d.entries {
		defs[name] = Clone(f)
	}
	return Fragment{"definitions": defs}
}

// MarshalJSON encodes the table as a plain object.
func (d *Definitions) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.entries)
}
