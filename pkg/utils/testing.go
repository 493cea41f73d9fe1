package utils

import (
	"os"
	"testing"

	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// TestEnvPrefix is prefix of environment variables used by integration tests.
const TestEnvPrefix = "CATALOGSYNC_TEST_"

// TestEnv returns values of TestEnvPrefix + key in the same order as keys. The test is skipped if any of them is not set.
func TestEnv(t *testing.T, keys ...string) []string {
	t.Helper()

	values := make([]string, len(keys))
	for i, key := range keys {
		v, ok := os.LookupEnv(TestEnvPrefix + key)
		if !ok || v == "" {
			t.Skipf("Skip test because %s%s is not set", TestEnvPrefix, key)
		}
		values[i] = v
	}

	return values
}

// TestSecret is TestEnv for a credential such as DSN. The value is wrapped by types.Secret not to be logged.
func TestSecret(t *testing.T, key string) types.Secret {
	t.Helper()
	return types.Secret(TestEnv(t, key)[0])
}
