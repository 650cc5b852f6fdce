package app

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const testModeEnv = "SMARTSPRINT_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// InTestMode reports whether main should return before touching Postgres or
// Redis. Any non-empty value other than "0" or "false" enables it.
func InTestMode() bool {
	testModeOnce.Do(func() {
		raw := strings.ToLower(strings.TrimSpace(os.Getenv(testModeEnv)))
		testModeFlag.Store(raw != "" && raw != "0" && raw != "false")
	})
	return testModeFlag.Load()
}
