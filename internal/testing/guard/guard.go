// Package guard flags the process as a test run when imported, so binaries
// and wiring code skip connecting to real Postgres and Redis.
package guard

import (
	"os"
	"sync"
)

// Env mirrors app.TestModeEnv.
const Env = "BUILDBOOK_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(Env) == "" {
			_ = os.Setenv(Env, "1")
		}
	})
}
