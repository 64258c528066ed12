package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/keywire/internal/logging"
)

// InitLogger configures the global logger for runtime use and brands it with
// the application name. Safe to call more than once; the underlying
// configuration is applied a single time.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := log.Logger.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
