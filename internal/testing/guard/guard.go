package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SMARTSPRINT_TEST_MODE") == "" {
			_ = os.Setenv("SMARTSPRINT_TEST_MODE", "1")
		}
	})
}
