package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelsSource = "metadata range = (0, 0)\n@range record Model { a: Int | (1, 4); b }\n"

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// newProject writes a project holding fieldmeta.yaml and schema/models.fmd and
// returns the path of its config file
func newProject(t *testing.T, extraConfig string) string {
	t.Helper()
	dir := t.TempDir()

	config := "source_dir: schema\n" +
		"catalog:\n  driver: sqlite3\n  dsn: " + filepath.Join(dir, "fm.db") + "\n" +
		extraConfig
	path := filepath.Join(dir, "fieldmeta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(config), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "schema"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema", "models.fmd"), []byte(modelsSource), 0644))
	return path
}

// run executes the root command against the project configured at config
func run(t *testing.T, config string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if config != "" {
		args = append([]string{"--config", config, "--log-level", "error"}, args...)
	}
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCompile(t *testing.T) {
	config := newProject(t, "")

	stdout, _, err := run(t, config, "compile")
	require.NoError(t, err)
	assert.Equal(t, "metadata range = (0, 0)\n\nrecord Model {\n    a: Int\n    b\n}\n\nrange(Model, a) = (1, 4)\n", stdout)
}

func TestCompile_Output(t *testing.T) {
	config := newProject(t, "")
	target := filepath.Join(t.TempDir(), "expanded", "models.fmd")

	stdout, _, err := run(t, config, "compile", "-o", target)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote "+target)

	written, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(written), "range(Model, a) = (1, 4)")
}

func TestCompile_Diff(t *testing.T) {
	config := newProject(t, "")

	stdout, _, err := run(t, config, "compile", "--diff")
	require.NoError(t, err)
	assert.Contains(t, stdout, "models.fmd ===")
	assert.Contains(t, stdout, "+ range(Model, a) = (1, 4)")
}

func TestCompile_JSONErrors(t *testing.T) {
	config := newProject(t, "")
	bad := filepath.Join(filepath.Dir(config), "schema", "bad.fmd")
	require.NoError(t, os.WriteFile(bad, []byte("@missing record Bad { x }\n"), 0644))

	stdout, _, err := run(t, config, "compile", "--json")
	assert.ErrorIs(t, err, errCompilationFailed)

	var reported []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &reported))
	require.NotEmpty(t, reported)
	assert.Equal(t, "ANN005", reported[0]["code"])
	assert.Equal(t, bad, reported[0]["file"])
}

func TestCompile_HumanErrors(t *testing.T) {
	config := newProject(t, "")
	bad := filepath.Join(filepath.Dir(config), "schema", "bad.fmd")
	require.NoError(t, os.WriteFile(bad, []byte("record {\n"), 0644))

	stdout, stderr, err := run(t, config, "compile")
	assert.ErrorIs(t, err, errCompilationFailed)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "SYN")
}

func TestBuild_WritesGoPackage(t *testing.T) {
	config := newProject(t, "build:\n  package: fields\n")
	target := filepath.Join(t.TempDir(), "fields", "metadata.go")

	stdout, _, err := run(t, config, "build", "-o", target)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Wrote "+target)
	assert.NotContains(t, stdout, "(cached)")

	file, err := parser.ParseFile(token.NewFileSet(), target, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "fields", file.Name.Name)
	assert.NotNil(t, file.Scope.Lookup("Range"))
	assert.NotNil(t, file.Scope.Lookup("RangeAll"))
}

func TestBuild_ReusesRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	config := newProject(t, "cache:\n  enabled: true\n  backend: redis\n  redis:\n    addr: "+mr.Addr()+"\n")
	target := filepath.Join(t.TempDir(), "metadata.go")

	stdout, _, err := run(t, config, "build", "-o", target)
	require.NoError(t, err)
	assert.NotContains(t, stdout, "(cached)")
	first, err := os.ReadFile(target)
	require.NoError(t, err)

	stdout, _, err = run(t, config, "build", "-o", target, "-v")
	require.NoError(t, err)
	assert.Contains(t, stdout, "(cached)")
	assert.Contains(t, stdout, "Cache: 1 hit(s), 0 miss(es), 0 error(s)")

	second, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stdout, _, err = run(t, config, "build", "-o", target, "--no-cache")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "(cached)")
}

func TestBuild_Watch(t *testing.T) {
	config := newProject(t, "")
	source := filepath.Join(filepath.Dir(config), "schema", "models.fmd")
	target := filepath.Join(t.TempDir(), "metadata.go")

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--config", config, "--log-level", "error", "build", "--watch", "-o", target})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	contains := func(want string) func() bool {
		return func() bool {
			data, err := os.ReadFile(target)
			return err == nil && strings.Contains(string(data), want)
		}
	}
	require.Eventually(t, contains(`{"Model", "a"}`), 5*time.Second, 20*time.Millisecond)
	// let the watcher register the source directory
	time.Sleep(200 * time.Millisecond)

	updated := "metadata range = (0, 0)\n@range record Model { a: Int | (1, 4); b | (2, 3) }\n"
	require.NoError(t, os.WriteFile(source, []byte(updated), 0644))
	assert.Eventually(t, contains(`{"Model", "b"}`), 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("build --watch did not stop")
	}
	assert.Contains(t, stdout.String(), "Watching ")
}

func TestBuild_InvalidPackage(t *testing.T) {
	config := newProject(t, "")

	_, stderr, err := run(t, config, "build", "--package", "my-pkg", "-o", filepath.Join(t.TempDir(), "m.go"))
	assert.ErrorIs(t, err, errCompilationFailed)
	assert.Contains(t, stderr, "GEN001")
}

func TestQuery(t *testing.T) {
	config := newProject(t, "")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"field entry", []string{"query", "range", "Model", "a"}, "(1, 4)\n"},
		{"kind default", []string{"query", "range", "Model", "b"}, "(0, 0)\n"},
		{"json", []string{"query", "--json", "range", "Model", "a"}, "[1,4]\n"},
		{"all fields as json", []string{"query", "--json", "range", "Model"}, "{\"a\":[1,4],\"b\":[0,0]}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := run(t, config, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stdout)
		})
	}
}

func TestQuery_Table(t *testing.T) {
	config := newProject(t, "")

	stdout, _, err := run(t, config, "query", "--no-color", "range", "Model")
	require.NoError(t, err)
	assert.Contains(t, stdout, "FIELD")
	assert.Contains(t, stdout, "(1, 4)")
	assert.Contains(t, stdout, "(0, 0)")

	stdout, _, err = run(t, config, "query", "--no-color", "--kinds")
	require.NoError(t, err)
	assert.Contains(t, stdout, "KIND")
	assert.Contains(t, stdout, "range")
}

func TestQuery_UnknownKind(t *testing.T) {
	config := newProject(t, "")

	_, stderr, err := run(t, config, "query", "--no-color", "rnage", "Model", "a")
	require.Error(t, err)
	assert.Contains(t, stderr, "UNKNOWN KIND: rnage")
	assert.Contains(t, stderr, "Did you mean: range?")
}

func TestQuery_UnknownRecord(t *testing.T) {
	config := newProject(t, "")

	_, stderr, err := run(t, config, "query", "--no-color", "range", "Modle")
	require.Error(t, err)
	assert.Contains(t, stderr, "Modle")
	assert.Contains(t, stderr, "Model")
}

func TestQuery_Args(t *testing.T) {
	config := newProject(t, "")

	_, _, err := run(t, config, "query", "range")
	assert.Error(t, err)

	_, _, err = run(t, config, "query", "--kinds", "range")
	assert.Error(t, err)
}

func TestFmt(t *testing.T) {
	config := newProject(t, "")
	source := filepath.Join(filepath.Dir(config), "schema", "models.fmd")

	_, stderr, err := run(t, config, "fmt", "--check")
	assert.Error(t, err)
	assert.Contains(t, stderr, "needs formatting")

	stdout, _, err := run(t, config, "fmt", "--diff")
	require.NoError(t, err)
	assert.Contains(t, stdout, "--- a/"+source)
	unchanged, err := os.ReadFile(source)
	require.NoError(t, err)
	assert.Equal(t, modelsSource, string(unchanged))

	stdout, _, err = run(t, config, "fmt")
	require.NoError(t, err)
	assert.Contains(t, stdout, "formatted")

	_, _, err = run(t, config, "fmt", "--check")
	assert.NoError(t, err)

	// formatting never changes the expansion
	stdout, _, err = run(t, config, "query", "range", "Model", "a")
	require.NoError(t, err)
	assert.Equal(t, "(1, 4)\n", stdout)
}

func TestExport(t *testing.T) {
	config := newProject(t, "")

	stdout, _, err := run(t, config, "export", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Exported 1 kind(s) and 1 record(s) as ")

	_, _, err = run(t, config, "export", "--no-color")
	require.NoError(t, err)

	stdout, _, err = run(t, config, "export", "--list", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, stdout, "EXPORT")
	assert.Contains(t, stdout, "SOURCE HASH")
	assert.Len(t, bytes.Split(bytes.TrimSpace([]byte(stdout)), []byte("\n")), 4)
}

func TestExport_UnsupportedDriver(t *testing.T) {
	config := newProject(t, "")

	_, _, err := run(t, config, "export", "--driver", "mysql")
	assert.Error(t, err)
}

func TestServe_StopsWithContext(t *testing.T) {
	config := newProject(t, "")

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", config, "--log-level", "error", "serve", "--host", "127.0.0.1", "--port", "0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "project")

	stdout, _, err := run(t, "", "init", dir, "--kind", "units=nothing", "--kind", `label=""`)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created "+filepath.Join(dir, "fieldmeta.yaml"))
	assert.FileExists(t, filepath.Join(dir, "schema", "example.fmd"))

	config := filepath.Join(dir, "fieldmeta.yaml")
	stdout, _, err = run(t, config, "query", "label", "Example", "name")
	require.NoError(t, err)
	assert.Equal(t, "\"Name\"\n", stdout)

	stdout, _, err = run(t, config, "query", "units", "Example", "id")
	require.NoError(t, err)
	assert.Equal(t, "nothing\n", stdout)

	_, _, err = run(t, "", "init", dir)
	assert.Error(t, err, "init must not overwrite an existing config")

	_, _, err = run(t, "", "init", dir, "--force", "--kind", "units")
	assert.NoError(t, err)
}

func TestInit_InvalidKind(t *testing.T) {
	_, _, err := run(t, "", "init", t.TempDir(), "--kind", "=1")
	assert.Error(t, err)

	_, _, err = run(t, "", "init", t.TempDir(), "--kind", "size=(1,")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	stdout, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "fieldmeta version: dev")
	assert.Contains(t, stdout, "Go version: go")
}
