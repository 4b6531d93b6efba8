// Package testing marks the whole test run as test mode. External test
// packages blank-import it so binaries under test never start real runtimes.
package testing

import (
	"os"
	stdtesting "testing"

	_ "github.com/foundry-erp/foundry-erp/internal/testing/guard"
)

func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
