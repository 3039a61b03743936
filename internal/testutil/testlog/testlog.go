package testlog

import (
	"testing"

	"github.com/rs/zerolog/log"

	"github.com/kelvinlab/fleetsup/internal/logging"
)

// Start configures the process-wide test logger (once per process) and
// emits a marker line naming the running test.
func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("test start")
}
