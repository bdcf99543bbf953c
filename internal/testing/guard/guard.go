package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CLASSWARD_TEST_MODE") == "" {
			_ = os.Setenv("CLASSWARD_TEST_MODE", "1")
		}
	})
}
