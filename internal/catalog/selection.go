package catalog

import (
	"sync"

	"ribosim/internal/sequence"
)

// Selection is the protein the bench is currently working on. It is safe for
// concurrent use so the bridge can report it while the driver consults it.
type Selection struct {
	catalog *Catalog

	mu      sync.RWMutex
	current Protein
}

// NewSelection starts on name, or on the catalog default when name is empty.
func NewSelection(c *Catalog, name string) (*Selection, error) {
	s := &Selection{catalog: c, current: c.Default()}
	if name != "" {
		if err := s.SelectProtein(name); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SelectProtein switches to name. Unknown names leave the selection unchanged.
func (s *Selection) SelectProtein(name string) error {
	p, err := s.catalog.Lookup(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	return nil
}

// Current returns the selected protein.
func (s *Selection) Current() Protein {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// ExpectedTemplate is the mRNA a student must build from the DNA template.
func (s *Selection) ExpectedTemplate() sequence.Sequence {
	return s.Current().MRNA.Clone()
}

// Protein returns the selected protein's display name.
func (s *Selection) Protein() string {
	return s.Current().Name
}

// Catalog returns the catalog backing the selection.
func (s *Selection) Catalog() *Catalog { return s.catalog }
