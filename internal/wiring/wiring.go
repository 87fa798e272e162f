// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/crossbox/internal/adapters/cas"
	_ "go.trai.ch/crossbox/internal/adapters/config"
	_ "go.trai.ch/crossbox/internal/adapters/engine"
	_ "go.trai.ch/crossbox/internal/adapters/fs"
	_ "go.trai.ch/crossbox/internal/adapters/logger"
	_ "go.trai.ch/crossbox/internal/adapters/registry"
	_ "go.trai.ch/crossbox/internal/adapters/shell"
	_ "go.trai.ch/crossbox/internal/adapters/telemetry/progrock"
	// Register app and engine nodes.
	_ "go.trai.ch/crossbox/internal/app"
	_ "go.trai.ch/crossbox/internal/engine/orchestrator"
)
