package bundle

import (
	"sync"
)

// Set maps artifact names to artifacts. It preserves insertion order so that
// lookups such as Find are deterministic, and it is safe for concurrent use.
type Set struct {
	mu    sync.RWMutex
	items map[string]Artifact
	order []string
}

// NewSet builds a Set from the given artifacts. Later duplicates overwrite
// earlier ones.
func NewSet(artifacts ...Artifact) *Set {
	s := &Set{items: make(map[string]Artifact, len(artifacts))}
	for _, a := range artifacts {
		s.put(a)
	}
	return s
}

// Put inserts or replaces the artifact stored under a.Name.
func (s *Set) Put(a Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(a)
}

func (s *Set) put(a Artifact) {
	if s.items == nil {
		s.items = make(map[string]Artifact)
	}
	if _, exists := s.items[a.Name]; !exists {
		s.order = append(s.order, a.Name)
	}
	s.items[a.Name] = a
}

// Get returns the artifact stored under name.
func (s *Set) Get(name string) (Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.items[name]
	return a, ok
}

// Has reports whether name is present.
func (s *Set) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Delete removes name from the set. Deleting a missing name is a no-op.
func (s *Set) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[name]; !ok {
		return
	}
	delete(s.items, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Find returns the first artifact, in insertion order, that satisfies match.
func (s *Set) Find(match func(Artifact) bool) (Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, name := range s.order {
		a := s.items[name]
		if match(a) {
			return a, true
		}
	}
	return Artifact{}, false
}

// MarkEmitted flags name as written to the final output.
func (s *Set) MarkEmitted(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[name]
	if !ok {
		return false
	}
	a.Emitted = true
	s.items[name] = a
	return true
}

// Names returns the artifact names in insertion order.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Artifacts returns a snapshot of all artifacts in insertion order.
func (s *Set) Artifacts() []Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Artifact, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.items[name])
	}
	return out
}

// Len returns the number of artifacts.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Each calls fn for a snapshot of the artifacts in insertion order, stopping
// when fn returns false. fn may safely mutate the set.
func (s *Set) Each(fn func(Artifact) bool) {
	for _, a := range s.Artifacts() {
		if !fn(a) {
			return
		}
	}
}
