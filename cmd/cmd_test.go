// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTempConfig writes a config file into a temp dir and returns its path.
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// rootCmd is shared across tests; clear flag state left by a prior parse
	// (e.g. --version) so each invocation starts clean.
	if f := rootCmd.Flags().Lookup("version"); f != nil {
		require.NoError(t, f.Value.Set("false"))
		f.Changed = false
	}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := executeRoot(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestRootCmd_NoArgsShowsHelp(t *testing.T) {
	out, err := executeRoot(t)
	require.NoError(t, err)
	assert.Contains(t, out, "multi-agent security behavior simulations")
	assert.Contains(t, out, "run")
}

// TestRunCmd_Offline drives one short simulation end to end through the CLI:
// config file, persona file, scenario file, JSON report.
func TestRunCmd_Offline(t *testing.T) {
	dir := t.TempDir()

	configFile := createTempConfig(t, fmt.Sprintf(`
logger:
  level: warn
  format: console
  log_file: %q
simulation:
  max_agent_cycles: 2
  termination_poll_interval: 10ms
`, filepath.Join(dir, "testbed.log")))

	personaFile := filepath.Join(dir, "personas.json")
	require.NoError(t, os.WriteFile(personaFile, []byte(`[
  {"id": "d1", "name": "Dana", "category": "defender", "subtype": "soc-analyst",
   "skills": {"technical_expertise": 5, "privacy_concern": 4, "risk_tolerance": 2, "security_awareness": 5},
   "motivation": "keep the org safe"},
  {"id": "a1", "name": "Alex", "category": "adversary", "subtype": "phisher",
   "skills": {"technical_expertise": 5, "privacy_concern": 1, "risk_tolerance": 5, "security_awareness": 4},
   "motivation": "harvest credentials"}
]`), 0o644))

	scenarioFile := filepath.Join(dir, "scenario.json")
	require.NoError(t, os.WriteFile(scenarioFile, []byte(`{"title": "cli smoke", "steps": ["recon", "attack"]}`), 0o644))

	outputFile := filepath.Join(dir, "result.json")

	_, err := executeRoot(t,
		"--config", configFile,
		"run",
		"-p", personaFile,
		"-s", scenarioFile,
		"-o", outputFile,
		"--offline",
	)
	require.NoError(t, err)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"success": true`)
	assert.Contains(t, string(data), `"termination_cause"`)
}

func TestRunCmd_MissingPersonaFile(t *testing.T) {
	configFile := createTempConfig(t, "logger:\n  level: warn\n  format: console\n  log_file: \"\"\n")

	_, err := executeRoot(t,
		"--config", configFile,
		"run",
		"-p", filepath.Join(t.TempDir(), "missing.json"),
		"--offline",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading personas")
}
