// Package optimizers contains the optimization plugins shipped with tuner.
package optimizers

import (
	"github.com/sliink/tuner/internal/hoststate"
	"github.com/sliink/tuner/internal/model"
)

// Deps are the collaborators the standard optimizers act on
type Deps struct {
	Host hoststate.Host
}

// Standard constructs every known optimizer in registration order
func Standard(deps Deps) []model.Plugin {
	return []model.Plugin{
		NewServicesOptimizer(deps.Host),
		NewRegistryOptimizer(deps.Host),
		NewPrivacyOptimizer(deps.Host),
		NewDefenderOptimizer(deps.Host),
	}
}
