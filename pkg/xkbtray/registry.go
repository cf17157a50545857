package xkbtray

// Registry maps layout indexes reported by the server to display labels.
// It is read-only after construction.
type Registry struct {
	layouts LayoutSet
}

func NewRegistry(layouts LayoutSet) *Registry {
	own := make(LayoutSet, len(layouts))
	copy(own, layouts)
	return &Registry{layouts: own}
}

func (r *Registry) Resolve(index int) (string, error) {
	if index < 0 || index >= len(r.layouts) {
		return "", &UnknownIndexError{Index: index, Count: len(r.layouts)}
	}
	return r.layouts[index].Label, nil
}

func (r *Registry) Len() int {
	return len(r.layouts)
}

func (r *Registry) Layouts() LayoutSet {
	out := make(LayoutSet, len(r.layouts))
	copy(out, r.layouts)
	return out
}
