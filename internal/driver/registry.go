package driver

import "fmt"

// Registry maps family tags to adapters.
type Registry struct {
	adapters map[Family]Adapter
}

// NewRegistry indexes adapters by the families they declare. A family
// declared twice is a programming error.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Family]Adapter)}
	for _, a := range adapters {
		for _, f := range a.Families() {
			if _, dup := r.adapters[f]; dup {
				panic(fmt.Sprintf("driver: family %s registered twice", f))
			}
			r.adapters[f] = a
		}
	}
	return r
}

// DefaultRegistry serves every family in Families.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&PostgresAdapter{},
		&MySQLAdapter{},
		&OracleAdapter{},
		NewDMAdapter(),
		NewYashanAdapter(),
	)
}

// Resolve returns the adapter for a tag. Unknown tags and known tags without
// an adapter both fail with *UnsupportedTypeError.
func (r *Registry) Resolve(tag string) (Adapter, Family, error) {
	f, err := ParseFamily(tag)
	if err != nil {
		return nil, "", err
	}
	a, ok := r.adapters[f]
	if !ok {
		return nil, "", &UnsupportedTypeError{Tag: tag, Supported: r.Supported()}
	}
	return a, f, nil
}

// Supported lists the registered families in display order.
func (r *Registry) Supported() []Family {
	var out []Family
	for _, f := range Families {
		if _, ok := r.adapters[f]; ok {
			out = append(out, f)
		}
	}
	return out
}
