package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidate_BundledScenario(t *testing.T) {
	out, err := execute(t, "validate", filepath.Join("..", "..", "scenarios", "crosswind.yaml"))
	require.NoError(t, err)

	require.Contains(t, out, "scenario crosswind: 4 models, 2 levels, time step 100ms")
	require.Contains(t, out, "level 0: wind, telemetry")
	require.Contains(t, out, "level 1: shell, mortar")
}

func TestValidate_Cycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycle.yaml")
	doc := "models:\n  - id: a\n    kind: counter\n    depends_on: [b]\n  - id: b\n    kind: counter\n    depends_on: [a]\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	_, err := execute(t, "validate", path)
	require.ErrorContains(t, err, "cycl")
}

func TestValidate_UnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rocket.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models:\n  - kind: rocket\n"), 0o600))

	_, err := execute(t, "validate", path)
	require.ErrorContains(t, err, "unknown model kind")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "simorch dev")
}
