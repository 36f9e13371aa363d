package graph

import (
	"go.uber.org/fx"
)

var Module = fx.Module("graph",
	fx.Provide(
		NewRepository,
		func(r *Repository) Store { return r },
	),
)
