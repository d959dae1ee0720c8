package config

import "go.uber.org/fx"

var Module = fx.Module("config",
	fx.Provide(
		NewWatcher,
		func(w *Watcher) Config { return w.Config() },
	),
)
