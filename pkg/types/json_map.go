package types

// JSONMap holds free-form key/value data persisted as JSONB
// (line item options, movement metadata).
type JSONMap map[string]any

// Clone returns a shallow copy so callers can mutate without aliasing.
func (m JSONMap) Clone() JSONMap {
	if m == nil {
		return nil
	}
	out := make(JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge overlays other on top of m, returning the merged map.
func (m JSONMap) Merge(other JSONMap) JSONMap {
	if len(other) == 0 {
		return m.Clone()
	}
	out := m.Clone()
	if out == nil {
		out = make(JSONMap, len(other))
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
