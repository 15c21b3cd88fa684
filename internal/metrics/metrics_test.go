package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextfile(t *testing.T) {
	require.NoError(t, WriteTextfile(""))

	Invocations.WithLabelValues("orca", "swap", "ok").Inc()
	SubmitAttempts.Inc()

	path := filepath.Join(t.TempDir(), "lpctl.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `lpctl_invocations_total{dex="orca",mode="swap",status="ok"}`)
	assert.Contains(t, text, "lpctl_submit_attempts_total")
	assert.NotContains(t, text, "go_goroutines", "only lpctl collectors are exported")
}
