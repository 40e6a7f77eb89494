package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// TestModeEnv names the flag that keeps binaries from touching Postgres,
// Redis and the job queue. internal/testing/guard sets it for test binaries.
const TestModeEnv = "BUILDBOOK_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	testModeFlag.Store(err == nil && on)
}

// InTestMode reports whether the cmd entrypoints should return before wiring
// real infrastructure.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the flag after the environment changed.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	detectTestMode()
}
