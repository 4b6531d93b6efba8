// Package guard forces test mode on before any application package samples
// the flag. Import it for side effects from packages that boot runtime code.
package guard

import (
	"os"
	"sync"

	"github.com/foundry-erp/foundry-erp/internal/app"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("FOUNDRY_TEST_MODE") == "" {
			_ = os.Setenv("FOUNDRY_TEST_MODE", "1")
		}
		app.RefreshTestMode()
	})
}
