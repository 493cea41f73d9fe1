package cmd_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/catalogsync/pkg/controller/cmd"
)

func TestFlags(t *testing.T) {
	// Detecting flags conflicts
	testCases := []struct {
		args []string
	}{
		{[]string{"run"}},
		{[]string{"test"}},
		{[]string{"explore"}},
		{[]string{"entity", "get"}},
		{[]string{"entity", "delete"}},
		{[]string{"serve"}},
		{[]string{"config", "template"}},
		{[]string{"config", "validate"}},
		{[]string{"client", "health"}},
	}

	for _, tc := range testCases {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			argv := append([]string{"catalogsync"}, tc.args...)
			gt.NoError(t, cmd.Run(append(argv, "--help")))
		})
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	gt.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestConfigValidate(t *testing.T) {
	testCases := map[string]struct {
		body    string
		wantErr bool
	}{
		"valid sqlite dry-run": {
			body: `
warehouse-type: sqlite
warehouse-dsn: file:test.db
dry-run: true
batch-size: 50
exclude-schema:
  - INFORMATION_SCHEMA
  - PG_CATALOG
`,
		},
		"valid with keys of serve": {
			body: `
warehouse-type: postgres
warehouse-dsn: postgres://localhost/db
catalog-endpoint: http://localhost:8080
addr: 0.0.0.0:8080
memory-limit: 1GiB
`,
		},
		"missing catalog endpoint": {
			body: `
warehouse-type: sqlite
warehouse-dsn: file:test.db
`,
			wantErr: true,
		},
		"invalid batch size": {
			body: `
warehouse-type: sqlite
warehouse-dsn: file:test.db
dry-run: true
batch-size: 0
`,
			wantErr: true,
		},
		"unknown key": {
			body: `
warehouse-type: sqlite
warehouse-dsn: file:test.db
dry-run: true
no-such-flag: 1
`,
			wantErr: true,
		},
		"broken yaml": {
			body:    "warehouse-type: [sqlite",
			wantErr: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, tc.body)
			err := cmd.Run([]string{"catalogsync", "--env-file", "", "--config", path, "config", "validate"})
			if tc.wantErr {
				gt.Error(t, err)
			} else {
				gt.NoError(t, err)
			}
		})
	}
}

func TestConfigPriority(t *testing.T) {
	path := writeConfig(t, `
warehouse-type: sqlite
warehouse-dsn: file:test.db
dry-run: true
batch-size: 0
`)

	// CLI flag wins over the file
	gt.NoError(t, cmd.Run([]string{"catalogsync", "--env-file", "", "--config", path, "config", "validate", "--batch-size", "10"}))

	// environment variable wins over the file
	t.Setenv("CATALOGSYNC_BATCH_SIZE", "20")
	gt.NoError(t, cmd.Run([]string{"catalogsync", "--env-file", "", "--config", path, "config", "validate"}))
}

func TestEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	gt.NoError(t, os.WriteFile(envFile, []byte("CATALOGSYNC_WAREHOUSE_TYPE=sqlite\nCATALOGSYNC_WAREHOUSE_DSN=file:test.db\nCATALOGSYNC_DRY_RUN=true\n"), 0600))
	t.Cleanup(func() {
		for _, key := range []string{"CATALOGSYNC_WAREHOUSE_TYPE", "CATALOGSYNC_WAREHOUSE_DSN", "CATALOGSYNC_DRY_RUN"} {
			gt.NoError(t, os.Unsetenv(key))
		}
	})

	config := writeConfig(t, "log-level: info\n")
	gt.NoError(t, cmd.Run([]string{"catalogsync", "--env-file", envFile, "--config", config, "config", "validate"}))

	t.Run("missing env file given explicitly", func(t *testing.T) {
		err := cmd.Run([]string{"catalogsync", "--env-file", filepath.Join(dir, "missing.env"), "config", "template"})
		gt.Error(t, err)
	})
}
