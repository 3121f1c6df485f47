package param

import "sort"

// Reader is the read side of a parameter store. The player only reads.
type Reader interface {
	Get(name string) Value
}

// Store is a readable and writable parameter store.
type Store interface {
	Reader
	Set(name string, v Value)
}

// MapStore is a Store backed by a map. Like the player it is meant for a
// single goroutine.
type MapStore struct {
	values map[string]Value
}

// NewMapStore returns an empty store.
func NewMapStore() *MapStore {
	return &MapStore{values: make(map[string]Value)}
}

// Get returns the value for name, or the none value.
func (s *MapStore) Get(name string) Value {
	return s.values[name]
}

// Set stores v under name. Setting the none value deletes the entry.
func (s *MapStore) Set(name string, v Value) {
	if v.IsNone() {
		delete(s.values, name)
		return
	}
	s.values[name] = v
}

// Names returns the stored names in sorted order.
func (s *MapStore) Names() []string {
	names := make([]string, 0, len(s.values))
	for n := range s.values {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
