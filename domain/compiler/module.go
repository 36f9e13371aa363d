package compiler

import "go.uber.org/fx"

var Module = fx.Module("compiler",
	fx.Provide(NewCompiler),
)
