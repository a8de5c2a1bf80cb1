package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketsim/internal/output"
)

func TestGenerateCommand(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("DATA_PATH", tmp)
	t.Setenv("LOGS_FOLDER", filepath.Join(tmp, "logs"))

	cfgPath := filepath.Join(tmp, "sim.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
train_ticket: 40
test_ticket: 5
start_date: "2024-01-01"
end_date: "2024-01-15"
families_number: 3
min_subtechniques: 1
max_subtechniques: 1
min_subtechnique_cost: 2
max_subtechnique_cost: 5
`), 0644))
	out := filepath.Join(tmp, "out")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"generate", "--config", cfgPath, "--out", out, "--seed", "3"})
	require.NoError(t, rootCmd.Execute())

	for _, name := range []string{output.TrainFile, output.TestFile, output.StateFile, output.EventsFile, output.MetricsFile} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}
	assert.True(t, strings.HasPrefix(buf.String(), "run "), buf.String())

	buf.Reset()
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "ticketsim dev")
}
