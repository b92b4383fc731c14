// Package registry holds the workflow tables the engine can start.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/workflow"
)

// Registry manages the available workflow tables.
type Registry struct {
	mu     sync.RWMutex
	tables map[domain.Variant]*workflow.Table
}

// NewRegistry creates a registry pre-loaded with the given tables.
func NewRegistry(tables ...*workflow.Table) (*Registry, error) {
	r := &Registry{
		tables: make(map[domain.Variant]*workflow.Table),
	}
	for _, t := range tables {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates and adds a table.
// If a table for the same variant exists, it is overwritten.
func (r *Registry) Register(t *workflow.Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[t.Variant] = t
	return nil
}

// Get looks up the table for a variant.
// Returns domain.ErrUnknownVariant if it is not registered.
func (r *Registry) Get(v domain.Variant) (*workflow.Table, error) {
	r.mu.RLock()
	t, ok := r.tables[v]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownVariant, v)
	}
	return t, nil
}

// Variants lists the registered variants in lexical order.
func (r *Registry) Variants() []domain.Variant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Variant, 0, len(r.tables))
	for v := range r.tables {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
