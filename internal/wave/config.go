package wave

import (
	"os"

	"github.com/mstoykov/envconfig"
	"github.com/sirupsen/logrus"
)

// Config controls how the dispatcher executes compiled programs. It is an
// explicit value threaded into the dispatch entry point; the hot path never
// reads a hidden global.
type Config struct {
	// Stepping replays each program one instruction-kernel-launch at a time,
	// host-synchronized, instead of one fused launch per call. Used for
	// debugging and for deterministic host-visible ordering.
	Stepping bool `envconfig:"STEPPING"`
}

// DefaultConfig returns the process-wide execution defaults, reading WAVE_*
// environment overrides once at startup.
func DefaultConfig() Config {
	var c Config
	if err := envconfig.Process("wave", &c, os.LookupEnv); err != nil {
		logrus.WithError(err).Warn("wave: bad environment configuration, using defaults")
	}
	return c
}
