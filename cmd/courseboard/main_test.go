package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI against dbPath and returns its standard output.
func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	root, a := newRootCmd()
	defer a.close()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--db", dbPath, "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCoursesCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "courses.db")

	_, err := run(t, db, "courses", "add", "Algorithms", "CS201")
	require.NoError(t, err)
	_, err = run(t, db, "courses", "add", "Databases")
	require.NoError(t, err)

	out, err := run(t, db, "courses", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Algorithms")
	assert.Contains(t, out, "CS201")
	assert.Contains(t, out, "Databases")

	_, err = run(t, db, "courses", "update", "1", "Algorithms II", "CS201")
	require.NoError(t, err)
	out, err = run(t, db, "courses", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Algorithms II")

	_, err = run(t, db, "courses", "delete", "1")
	require.NoError(t, err)
	_, err = run(t, db, "courses", "delete", "1")
	assert.ErrorIs(t, err, errNoEffect)

	_, err = run(t, db, "courses", "update", "42", "ghost")
	assert.ErrorIs(t, err, errNoEffect)
}

func TestCoursesAddRequiresName(t *testing.T) {
	db := filepath.Join(t.TempDir(), "courses.db")
	_, err := run(t, db, "courses", "add", "")
	assert.ErrorContains(t, err, "name is required")
}

func TestImportCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "courses.db")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "courses.md"), []byte("N: Networks\n---\nN: Compilers\n"), 0o644))

	out, err := run(t, db, "import", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 new courses")

	out, err = run(t, db, "import", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 0 new courses from 1 sources, 2 skipped")
}

func TestImportWithoutSources(t *testing.T) {
	db := filepath.Join(t.TempDir(), "courses.db")
	_, err := run(t, db, "import")
	assert.ErrorContains(t, err, "no import sources")
}

func TestUnopenableDatabaseFails(t *testing.T) {
	// sqlite does not create missing parent directories.
	_, err := run(t, filepath.Join(t.TempDir(), "missing", "courses.db"), "courses", "list")
	assert.Error(t, err)
}

func TestHelpAndCompletionDoNotOpenDatabase(t *testing.T) {
	for _, args := range [][]string{
		{"help"},
		{"help", "courses"},
		{"completion", "bash"},
		{"__complete", "courses", ""},
	} {
		db := filepath.Join(t.TempDir(), "courses.db")
		out, err := run(t, db, args...)
		require.NoError(t, err, args)
		assert.NotEmpty(t, out, args)

		_, err = os.Stat(db)
		assert.True(t, os.IsNotExist(err), "%v created %s", args, db)
	}
}
