package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"4000", 4000},
		{"0.7", 0.7},
		{"-3", -3},
		{"gemini", "gemini"},
		{"1e3x", "1e3x"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}

func TestPrintValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printValue(&buf, map[string]any{"port": 4000}))
	assert.Equal(t, "port: 4000\n", buf.String())

	buf.Reset()
	require.NoError(t, printValue(&buf, "loopback"))
	assert.Equal(t, "loopback\n", buf.String())
}

func TestReadCatalogFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "products.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
- id: p1
  name: Áo thun basic trắng
  price: 199000
  type: T-Shirt
  sizes: [S, M, L]
  bestseller: true
  createdAt: 2026-03-01T10:00:00Z
- id: p2
  name: Quần jogger kaki
  price: 350000
  type: Jogger Pants
`), 0o600))

	items, err := readCatalogFile(yamlPath)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Áo thun basic trắng", items[0].Name)
	assert.Equal(t, []string{"S", "M", "L"}, items[0].Sizes)
	assert.Equal(t, 2026, items[0].CreatedAt.Year())
	assert.True(t, items[1].BottomWear())

	jsonPath := filepath.Join(dir, "products.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"id":"p3","name":"Polo","price":250000,"type":"Polo","createdAt":"2026-02-01T00:00:00Z"}]`), 0o600))
	items, err = readCatalogFile(jsonPath)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(250000), items[0].Price)

	_, err = readCatalogFile(filepath.Join(dir, "products.csv"))
	assert.Error(t, err)
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"gateway", "run"},
		{"gateway", "token"},
		{"config", "validate"},
		{"catalog", "import"},
		{"catalog", "types"},
		{"chat", "history"},
		{"chat", "purge"},
		{"ask"},
		{"status"},
		{"version"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestVersionCommand(t *testing.T) {
	t.Setenv("CHEVAI_HOME", t.TempDir())
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "chevai-chat")
}

func TestCatalogAndChatCommands(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CHEVAI_HOME", home)
	cfgPath := filepath.Join(home, "config.yaml")
	dbPath := filepath.Join(home, "chat.db")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  driver: sqlite\n  path: "+dbPath+"\n"), 0o600))

	run := func(args ...string) string {
		root := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs(append([]string{"--config", cfgPath, "--log-level", "silent"}, args...))
		require.NoError(t, root.Execute())
		return out.String()
	}

	catalogPath := filepath.Join(home, "products.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte("- id: p1\n  name: Áo thun\n  price: 199000\n  type: T-Shirt\n- id: p2\n  name: Quần jogger\n  price: 350000\n  type: Jogger\n"), 0o600))

	assert.Contains(t, run("catalog", "import", catalogPath), "Imported 2 product(s)")
	types := run("catalog", "types")
	assert.Contains(t, types, "T-Shirt")
	assert.Contains(t, types, "Jogger  (bottom-wear)")

	assert.Empty(t, run("chat", "history", "user_1"))
	assert.Contains(t, run("chat", "purge", "user_1"), "Deleted 0 message(s) from user_1")
}
