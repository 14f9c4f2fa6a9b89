package supplier

import (
	"fmt"
	"sort"
)

// Registry resolves supplier codes to adapters
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Code()] = a
	}
	return r
}

func (r *Registry) Lookup(code string) (Adapter, error) {
	a, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("supplier %q: %w", code, ErrUnknownSupplier)
	}
	return a, nil
}

// Codes returns the registered supplier codes in sorted order
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.adapters))
	for c := range r.adapters {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
