package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/taskflow/pkg/definition"
	"github.com/dukex/taskflow/pkg/models"
)

const deliveryYAML = `
name: Delivery
statuses:
  - key: todo
    name: To Do
    category: TODO
  - key: done
    name: Done
    category: DONE
transitions:
  - name: Finish
    from_key: todo
    to_key: done
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	command := newCommand()
	command.Writer = &out
	command.ErrWriter = &out

	err := command.Run(t.Context(), append([]string{"taskflow"}, args...))

	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLint_Valid(t *testing.T) {
	out, err := run(t, "lint", writeFile(t, "delivery.yaml", deliveryYAML))
	require.NoError(t, err)

	assert.Contains(t, out, "warning: No status was marked initial")
	assert.Contains(t, out, `ok: "Delivery" has 2 statuses and 1 transitions`)
}

func TestLint_BlockingIssues(t *testing.T) {
	doc := deliveryYAML + "  - name: Loop\n    from_key: done\n    to_key: done\n"

	out, err := run(t, "lint", writeFile(t, "loop.yaml", doc))
	require.ErrorIs(t, err, errBlockingIssues)
	assert.Contains(t, out, "issue: SELF_LOOP")
}

func TestLint_SchemaViolation(t *testing.T) {
	out, err := run(t, "lint", writeFile(t, "bad.json", `{"statuses": []}`))
	require.ErrorIs(t, err, definition.ErrInvalidDocument)
	assert.Contains(t, out, "schema: ")
}

func TestLint_MissingArgument(t *testing.T) {
	_, err := run(t, "lint")
	require.Error(t, err)
}

func TestSuggest(t *testing.T) {
	out, err := run(t, "suggest",
		"--prompt", "We need design and review stages",
		"--template-name", "Feature",
		"--required-field", "Acceptance criteria",
		"--format", "yaml")
	require.NoError(t, err)

	doc, err := definition.Parse([]byte(out))
	require.NoError(t, err)

	assert.Equal(t, "Feature Flow", doc.Name)
	assert.True(t, doc.AIOptimized)
	assert.Equal(t, "design", doc.Statuses[1].Key)
}

func TestImportAndExport(t *testing.T) {
	databaseURL := "file://" + t.TempDir()

	out, err := run(t, "import",
		"--database-url", databaseURL,
		"--space", "space-1",
		"--actor", "alice",
		writeFile(t, "delivery.yaml", deliveryYAML))
	require.NoError(t, err)

	match := regexp.MustCompile(`created (\S+) "Delivery" version 1`).FindStringSubmatch(out)
	require.Len(t, match, 2, out)

	out, err = run(t, "export",
		"--database-url", databaseURL,
		"--space", "space-1",
		"--format", "json",
		match[1])
	require.NoError(t, err)

	doc, err := definition.Parse([]byte(out))
	require.NoError(t, err)

	assert.Equal(t, "Delivery", doc.Name)
	require.Len(t, doc.Statuses, 2)
	assert.Equal(t, models.FlagOf(true), doc.Statuses[0].IsInitial)
	assert.Equal(t, models.FlagOf(true), doc.Statuses[1].IsFinal)

	_, err = run(t, "export", "--database-url", databaseURL, "--space", "space-2", match[1])
	require.Error(t, err)
}

func TestImport_Rejected(t *testing.T) {
	doc := deliveryYAML + "  - name: Loop\n    from_key: done\n    to_key: done\n"

	out, err := run(t, "import",
		"--database-url", "file://"+t.TempDir(),
		"--space", "space-1",
		writeFile(t, "loop.yaml", doc))
	require.Error(t, err)
	assert.Contains(t, out, "issue: SELF_LOOP")
}
