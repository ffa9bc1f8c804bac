package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sales-call-insights-go/internal/types"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"serve", "analyze", "retry", "reanalyze-failed", "knowledge"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
	cmd, _, err := rootCmd.Find([]string{"knowledge", "import"})
	require.NoError(t, err)
	assert.Equal(t, "import", cmd.Name())
}

func TestKnowledgeImportAndShow(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("INSIGHTS_STORE_DRIVER", "sqlite")
	t.Setenv("INSIGHTS_STORE_SQLITE_PATH", filepath.Join(dir, "cli.db"))

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]string{"Project", "Pros", "Objections"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]string{"Skyline", "Metro access; Clubhouse", "Price too high"}))
	book := filepath.Join(dir, "knowledge.xlsx")
	require.NoError(t, f.SaveAs(book))

	_, err := execute(t, "knowledge", "import", book)
	require.NoError(t, err)

	out, err := execute(t, "knowledge", "show", "Skyline")
	require.NoError(t, err)

	var pk types.ProjectKnowledge
	require.NoError(t, json.Unmarshal([]byte(out), &pk), out)
	assert.Equal(t, "Skyline", pk.Project)
	assert.Equal(t, []string{"Metro access", "Clubhouse"}, pk.Pros)
	assert.Equal(t, []string{"Price too high"}, pk.Objections)

	_, err = execute(t, "knowledge", "show", "Unknown")
	assert.Error(t, err)
}

func TestAnalyze_RequiresArgument(t *testing.T) {
	_, err := execute(t, "analyze")
	assert.Error(t, err)
}
