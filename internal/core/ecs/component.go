package ecs

import "sort"

// Removable is implemented by all component stores so the Registry can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Remove(id EntityID)
}

// Components is a sparse side table for data only some entities carry
// (network controller, script tags). Hot per-frame data lives in Store.
type Components[T any] struct {
	data map[EntityID]*T
}

func NewComponents[T any]() *Components[T] {
	return &Components[T]{data: make(map[EntityID]*T, 16)}
}

func (c *Components[T]) Set(id EntityID, v *T) { c.data[id] = v }

func (c *Components[T]) Get(id EntityID) (*T, bool) {
	v, ok := c.data[id]
	return v, ok
}

func (c *Components[T]) Remove(id EntityID) { delete(c.data, id) }

func (c *Components[T]) Has(id EntityID) bool {
	_, ok := c.data[id]
	return ok
}

func (c *Components[T]) Len() int { return len(c.data) }

// Each visits entries in ascending id order so callers stay deterministic.
func (c *Components[T]) Each(fn func(EntityID, *T)) {
	ids := make([]EntityID, 0, len(c.data))
	for id := range c.data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(id, c.data[id])
	}
}
