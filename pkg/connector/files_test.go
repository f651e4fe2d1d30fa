package connector

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFilesConnector_ListAll(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "policy.txt"), "Invoices are due   within 30 days.\n\nLate fees apply.")
	writeFile(t, filepath.Join(root, "sub", "rates.csv"), "tier,rate\ngold,0.1\nsilver,0.2\n")
	writeFile(t, filepath.Join(root, "ignored.bin"), "zzz")

	c, err := NewFiles("policies", FilesConfig{RootDir: root})
	require.NoError(t, err)

	rows, err := c.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "policy.txt", rows[0]["file"])
	assert.Equal(t, "chars 0-49", rows[0]["loc"])
	assert.Equal(t, "[policies] policy.txt • chars 0-49 • Invoices are due within 30 days. Late fees apply.", rows[0]["text"])

	assert.Equal(t, "sub/rates.csv", rows[1]["file"])
	assert.Equal(t, "row 1", rows[1]["loc"])
	assert.Equal(t, "[policies] rates.csv • row 1 • tier=gold; rate=0.1", rows[1]["text"])
	assert.Equal(t, "row 2", rows[2]["loc"])
}

func TestFilesConnector_ChunksLongText(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "long.md"), strings.Repeat("a", 25))

	c, err := NewFiles("docs", FilesConfig{RootDir: root, MaxChunkChars: 10})
	require.NoError(t, err)

	rows, err := c.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "chars 0-10", rows[0]["loc"])
	assert.Equal(t, "chars 10-20", rows[1]["loc"])
	assert.Equal(t, "chars 20-25", rows[2]["loc"])
}

func TestFilesConnector_ListAllIsCached(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "first")

	c, err := NewFiles("docs", FilesConfig{RootDir: root})
	require.NoError(t, err)

	first, err := c.ListAll(context.Background())
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, "b.txt"), "second")
	second, err := c.ListAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFilesConnector_Excel(t *testing.T) {
	root := t.TempDir()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"client", "balance"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"ACME Corp", 1200}))
	require.NoError(t, f.SaveAs(filepath.Join(root, "balances.xlsx")))
	require.NoError(t, f.Close())

	c, err := NewFiles("sheets", FilesConfig{RootDir: root, Extensions: []string{"xlsx"}})
	require.NoError(t, err)

	rows, err := c.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "sheet Sheet1 row 2", rows[0]["loc"])
	assert.Contains(t, rows[0]["text"], "client=ACME Corp; balance=1200")
}

func TestFilesConnector_BrokenFileSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "broken.pdf"), "not a pdf")
	writeFile(t, filepath.Join(root, "ok.txt"), "fine")

	c, err := NewFiles("docs", FilesConfig{RootDir: root})
	require.NoError(t, err)

	rows, err := c.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ok.txt", rows[0]["file"])
}

func TestNewFiles_InvalidRoot(t *testing.T) {
	_, err := NewFiles("docs", FilesConfig{RootDir: filepath.Join(t.TempDir(), "missing")})
	assert.True(t, IsConfigurationError(err))

	_, err = NewFiles("docs", FilesConfig{})
	assert.True(t, IsConfigurationError(err))
}

func TestColumnLetter(t *testing.T) {
	assert.Equal(t, "A", columnLetter(0))
	assert.Equal(t, "Z", columnLetter(25))
	assert.Equal(t, "AA", columnLetter(26))
	assert.Equal(t, "AB", columnLetter(27))
}
