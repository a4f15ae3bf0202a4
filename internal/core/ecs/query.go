package ecs

// EachWith visits live entities that also carry a component of type T.
// Entries whose slot has been freed are skipped.
func EachWith[T any](s *Store, c *Components[T], fn func(EntityID, *T)) {
	c.Each(func(id EntityID, v *T) {
		if s.Alive(id) {
			fn(id, v)
		}
	})
}
