// Package workflows wires the built-in workflow variants.
package workflows

import (
	"github.com/aretw0/guidance/pkg/registry"
	"github.com/aretw0/guidance/pkg/workflows/pizza"
	"github.com/aretw0/guidance/pkg/workflows/triage"
)

// Default returns a registry holding every built-in workflow.
func Default() *registry.Registry {
	reg, err := registry.NewRegistry(pizza.Table(), triage.Table())
	if err != nil {
		// Tables validate themselves on construction.
		panic(err)
	}
	return reg
}
