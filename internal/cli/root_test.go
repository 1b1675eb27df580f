package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/vizmigrate/internal/cli/commands"
	"github.com/leapstack-labs/vizmigrate/internal/cli/config"
	"github.com/leapstack-labs/vizmigrate/internal/cli/testutil"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	config.ResetConfig()

	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestHelpListsCommands(t *testing.T) {
	out, _, err := execute(t, "--help")
	require.NoError(t, err)

	for _, name := range []string{"migrate", "translate", "inspect", "functions", "history", "version", "completion"} {
		assert.Contains(t, out, name)
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "vizmigrate v"+Version)
}

func TestCompletionCommand(t *testing.T) {
	out, _, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "vizmigrate")

	_, _, err = execute(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestTranslateCommand(t *testing.T) {
	out, _, err := execute(t, "translate", "SUM([Sales])", "--table", "Orders", "--no-history", "-o", "json")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "SUM('Orders'[Sales])", got["expression"])
	assert.EqualValues(t, 1, got["confidence"])

	_, _, err = execute(t, "translate", "--no-history")
	assert.Error(t, err)
}

func TestMigrateInspectAndHistory(t *testing.T) {
	ws := testutil.SetupWorkspace(t)
	common := []string{"--state", ws.StatePath, "-o", "json"}

	out, _, err := execute(t, append([]string{"migrate", ws.Workbooks, "-d", ws.OutputDir, "-w", "2"}, common...)...)
	require.ErrorIs(t, err, commands.ErrMigrationFailed)

	var batch struct {
		TotalFiles int `json:"total_files"`
		Successful int `json:"successful"`
		Failed     int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &batch))
	assert.Equal(t, 2, batch.TotalFiles)
	assert.Equal(t, 1, batch.Successful)
	assert.Equal(t, 1, batch.Failed)

	assert.FileExists(t, filepath.Join(ws.OutputDir, "migration_report.json"))
	assert.FileExists(t, filepath.Join(ws.OutputDir, "superstore", "superstore.canonical.json"))
	assert.FileExists(t, filepath.Join(ws.OutputDir, "superstore", "migration_report.json"))

	out, _, err = execute(t, append([]string{"history"}, common...)...)
	require.NoError(t, err)
	var runs []struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		Inputs     int    `json:"inputs"`
		Successful int    `json:"successful"`
		Failed     int    `json:"failed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, 2, runs[0].Inputs)
	assert.Equal(t, 1, runs[0].Failed)

	out, _, err = execute(t, append([]string{"history", runs[0].ID}, common...)...)
	require.NoError(t, err)
	var detail struct {
		ID    string `json:"id"`
		Files []struct {
			SourceFile string `json:"source_file"`
			Success    bool   `json:"success"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Equal(t, runs[0].ID, detail.ID)
	assert.Len(t, detail.Files, 2)

	out, _, err = execute(t, append([]string{"inspect", ws.Flat, "--fields"}, common...)...)
	require.NoError(t, err)
	var info struct {
		Name             string `json:"name"`
		Changed          *bool  `json:"changed_since_last_run"`
		CalculatedFields int    `json:"calculated_fields"`
		Worksheets       []string
		Fields           []map[string]any `json:"fields"`
		FieldLevels      [][]string       `json:"field_levels"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "superstore", info.Name)
	require.NotNil(t, info.Changed)
	assert.False(t, *info.Changed)
	assert.Equal(t, info.CalculatedFields, len(info.Fields))
	assert.NotEmpty(t, info.FieldLevels)
	assert.Contains(t, info.Worksheets, "Sales by Region")
}

func TestMigrateWithoutWorkbooks(t *testing.T) {
	dir := t.TempDir()
	_, _, err := execute(t, "migrate", dir, "--no-history", "-d", filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no workbook files found")
}

func TestMigrateRejectsInvalidConfig(t *testing.T) {
	ws := testutil.SetupWorkspace(t)
	_, _, err := execute(t, "migrate", ws.Flat, "--no-history", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestFunctionsCommand(t *testing.T) {
	out, _, err := execute(t, "functions", "--kind", "approximate", "--no-history", "-o", "json")
	require.NoError(t, err)

	var rules []struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rules))
	require.NotEmpty(t, rules)
	for _, r := range rules {
		assert.Equal(t, "approximate", r.Kind, r.Name)
	}

	out, _, err = execute(t, "functions", "countd", "--no-history", "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "DISTINCTCOUNT")

	out, _, err = execute(t, "functions", "--visuals", "--no-history", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"native"`)

	_, _, err = execute(t, "functions", "--kind", "bogus", "--no-history")
	assert.Error(t, err)

	_, _, err = execute(t, "functions", "NOPE", "--no-history")
	assert.Error(t, err)
}

func TestHistoryDisabled(t *testing.T) {
	_, _, err := execute(t, "history", "--no-history")
	assert.ErrorIs(t, err, commands.ErrHistoryDisabled)
}

func TestConfigFileApplies(t *testing.T) {
	ws := testutil.SetupWorkspace(t)
	cfgPath := filepath.Join(ws.Dir, "vizmigrate.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("format: yaml\noutput_dir: build\nno_history: true\n"), 0600))

	_, _, err := execute(t, "migrate", ws.Flat, "--config", cfgPath, "-o", "json")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(ws.Dir, "build", "superstore", "superstore.canonical.yaml"))
	assert.FileExists(t, filepath.Join(ws.Dir, "build", "migration_report.yaml"))
}
