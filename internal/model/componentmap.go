package model

import (
	"encoding/json"
	"fmt"
	"iter"
	"sync"
)

// ComponentMapBuilder collects ComponentInfo records from concurrent workers.
// Each worker owns a discovery index; Insert is write-once per key and per slot.
type ComponentMapBuilder struct {
	mu    sync.Mutex
	slots map[int]ComponentInfo
	seen  map[string]int
}

// NewComponentMapBuilder creates an empty builder
func NewComponentMapBuilder() *ComponentMapBuilder {
	return &ComponentMapBuilder{
		slots: make(map[int]ComponentInfo),
		seen:  make(map[string]int),
	}
}

// Insert stores info at its discovery index. Writing the same id or the same
// index twice is an error; the first write wins.
func (b *ComponentMapBuilder) Insert(index int, info ComponentInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if prev, ok := b.seen[info.ID]; ok {
		return fmt.Errorf("component %q already inserted at index %d", info.ID, prev)
	}
	if existing, ok := b.slots[index]; ok {
		return fmt.Errorf("discovery index %d already holds %q", index, existing.ID)
	}
	b.slots[index] = info
	b.seen[info.ID] = index
	return nil
}

// Len returns the number of inserted components
func (b *ComponentMapBuilder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.slots)
}

// Freeze returns the read-only map ordered by discovery index. Missing slots
// (work that never completed) are skipped. The builder must not be used after.
func (b *ComponentMapBuilder) Freeze() *ComponentMap {
	b.mu.Lock()
	defer b.mu.Unlock()

	maxIndex := -1
	for idx := range b.slots {
		if idx > maxIndex {
			maxIndex = idx
		}
	}

	m := &ComponentMap{
		ids:  make([]string, 0, len(b.slots)),
		byID: make(map[string]*ComponentInfo, len(b.slots)),
	}
	for i := 0; i <= maxIndex; i++ {
		info, ok := b.slots[i]
		if !ok {
			continue
		}
		stored := info
		m.ids = append(m.ids, info.ID)
		m.byID[info.ID] = &stored
	}
	return m
}

// ComponentMap is an ordered, read-only id -> ComponentInfo mapping.
// Iteration order is discovery order.
type ComponentMap struct {
	ids  []string
	byID map[string]*ComponentInfo
}

// NewComponentMap builds a map from infos in the given order. Later
// duplicates are ignored.
func NewComponentMap(infos ...ComponentInfo) *ComponentMap {
	b := NewComponentMapBuilder()
	idx := 0
	for _, info := range infos {
		if err := b.Insert(idx, info); err == nil {
			idx++
		}
	}
	return b.Freeze()
}

// Len returns the number of components
func (m *ComponentMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.ids)
}

// Has reports whether id is a known component
func (m *ComponentMap) Has(id string) bool {
	if m == nil {
		return false
	}
	_, ok := m.byID[id]
	return ok
}

// Get returns the component with the given id
func (m *ComponentMap) Get(id string) (*ComponentInfo, bool) {
	if m == nil {
		return nil, false
	}
	c, ok := m.byID[id]
	return c, ok
}

// IDs returns a copy of the ids in discovery order
func (m *ComponentMap) IDs() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out
}

// All iterates components in discovery order
func (m *ComponentMap) All() iter.Seq2[string, *ComponentInfo] {
	return func(yield func(string, *ComponentInfo) bool) {
		if m == nil {
			return
		}
		for _, id := range m.ids {
			if !yield(id, m.byID[id]) {
				return
			}
		}
	}
}

// MarshalJSON encodes the map as an ordered array of components
func (m *ComponentMap) MarshalJSON() ([]byte, error) {
	list := make([]*ComponentInfo, 0, m.Len())
	for _, c := range m.All() {
		list = append(list, c)
	}
	return json.Marshal(list)
}
