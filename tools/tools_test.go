package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MBemera/Radsim-sub001/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T, cfg *config.Config) *Registry {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	r := NewRegistry(cfg)
	t.Cleanup(r.Close)
	return r
}

func TestRegistry_BuiltinsRegistered(t *testing.T) {
	r := testRegistry(t, nil)
	for _, name := range []string{"read_file", "write_file", "delete_file", "list_directory", "execute_command"} {
		_, ok := r.Get(name)
		assert.True(t, ok, "tool %s should be registered", name)
	}
}

func TestActiveTools_EmptyToolsetExposesAll(t *testing.T) {
	r := testRegistry(t, nil)

	active, err := r.ActiveTools(&config.Toolset{Name: "default"})
	require.NoError(t, err)
	require.Len(t, active, 5)

	// Stable order for a stable tool declaration sent to providers.
	names := make([]string, len(active))
	for i, tool := range active {
		names[i] = tool.Name()
	}
	assert.Equal(t, []string{"delete_file", "execute_command", "list_directory", "read_file", "write_file"}, names)
}

func TestActiveTools_NamedSubset(t *testing.T) {
	r := testRegistry(t, nil)

	active, err := r.ActiveTools(&config.Toolset{Name: "ro", Tools: []string{"read_file", "list_directory"}})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "read_file", active[0].Name())
}

func TestActiveTools_UnknownToolErrors(t *testing.T) {
	r := testRegistry(t, nil)

	_, err := r.ActiveTools(&config.Toolset{Name: "bad", Tools: []string{"no_such_tool"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_tool")
}

func TestActiveTools_UnconfiguredMCPWildcard(t *testing.T) {
	r := testRegistry(t, nil)

	_, err := r.ActiveTools(&config.Toolset{Name: "ext", Tools: []string{"gopls.*"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gopls")
}

func TestIsPathRestricted(t *testing.T) {
	restricted, err := isPathRestricted(".pilot/config.yaml", []string{".pilot/**"})
	require.NoError(t, err)
	assert.True(t, restricted)

	restricted, err = isPathRestricted("src/main.go", []string{".pilot/**", "secrets/*"})
	require.NoError(t, err)
	assert.False(t, restricted)

	_, err = isPathRestricted("x", []string{"[bad"})
	assert.Error(t, err)
}

func TestReadFileTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	tool := &ReadFileTool{fsAccess: &config.FilesystemAccess{}}
	out, err := tool.Execute(context.Background(), map[string]interface{}{"path": path})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	_, err = tool.Execute(context.Background(), map[string]interface{}{})
	assert.Error(t, err)
}

func TestReadFileTool_HiddenDenied(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret.txt")
	require.NoError(t, os.WriteFile(path, []byte("shh"), 0644))

	tool := &ReadFileTool{fsAccess: &config.FilesystemAccess{Hidden: []string{filepath.Join(dir, "*")}}}
	_, err := tool.Execute(context.Background(), map[string]interface{}{"path": path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hidden")
}

func TestWriteFileTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "b.txt")

	tool := &WriteFileTool{fsAccess: &config.FilesystemAccess{}}
	out, err := tool.Execute(context.Background(), map[string]interface{}{"path": path, "content": "data"})
	require.NoError(t, err)
	assert.Contains(t, out, "4 bytes")

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(written))
}

func TestWriteFileTool_ReadOnlyDenied(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "locked.txt")

	tool := &WriteFileTool{fsAccess: &config.FilesystemAccess{ReadOnly: []string{filepath.Join(dir, "*")}}}
	_, err := tool.Execute(context.Background(), map[string]interface{}{"path": path, "content": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")
}

func TestDeleteFileTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	tool := &DeleteFileTool{fsAccess: &config.FilesystemAccess{}}
	_, err := tool.Execute(context.Background(), map[string]interface{}{"path": path})
	require.NoError(t, err)
	assert.NoFileExists(t, path)

	// Directories are refused.
	_, err = tool.Execute(context.Background(), map[string]interface{}{"path": dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}

func TestListDirectoryTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hidden.txt"), []byte("x"), 0644))

	tool := &ListDirectoryTool{fsAccess: &config.FilesystemAccess{
		Hidden: []string{filepath.Join(dir, "hidden.txt")},
	}}
	out, err := tool.Execute(context.Background(), map[string]interface{}{"path": dir})
	require.NoError(t, err)
	assert.Contains(t, out, "f.txt")
	assert.Contains(t, out, "sub/")
	assert.NotContains(t, out, "hidden.txt")
}
