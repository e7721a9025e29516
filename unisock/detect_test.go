package unisock

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// unsetenv clears key for the duration of the test. t.Setenv is used
// first so the original value is restored on cleanup.
func unsetenv(t *testing.T, key string) {
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestDetectGenericByDefault(t *testing.T) {
	unsetenv(t, EnvEdgePairing)
	unsetenv(t, EnvNetProcess)

	require.Equal(t, VariantGeneric, Detect())
}

func TestDetectProcessHost(t *testing.T) {
	unsetenv(t, EnvEdgePairing)
	t.Setenv(EnvNetProcess, "1")

	require.Equal(t, VariantProcessHost, Detect())
}

func TestDetectEdgeWinsOverProcess(t *testing.T) {
	t.Setenv(EnvEdgePairing, "1")
	t.Setenv(EnvNetProcess, "1")

	require.Equal(t, VariantEdgeSandbox, Detect())
}

func TestVariantString(t *testing.T) {
	require.Equal(t, "edge-sandbox", VariantEdgeSandbox.String())
	require.Equal(t, "process-host", VariantProcessHost.String())
	require.Equal(t, "generic", VariantGeneric.String())
}
