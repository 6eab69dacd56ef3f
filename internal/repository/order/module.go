package order

import "go.uber.org/fx"

// Module provides the configured order Store to Fx.
var Module = fx.Provide(NewStore)
