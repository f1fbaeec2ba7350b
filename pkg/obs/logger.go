package obs

import "github.com/kadirpekel/spanstore/pkg/logger"

// Logging re-exports the ambient structured-logging setup (package-prefix
// filtering, colored terminal output, slog levels) from pkg/logger so
// every telemetry component logs through the same configuration without
// importing pkg/logger directly.
var (
	Init       = logger.Init
	GetLogger  = logger.GetLogger
	ParseLevel = logger.ParseLevel
)
