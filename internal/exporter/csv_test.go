package exporter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nycsales/internal/config"
)

func newTestWriter(t *testing.T) (*CSVWriter, *config.Paths) {
	t.Helper()
	paths := config.PathsAt(t.TempDir())
	require.NoError(t, paths.EnsureDirectories())
	return NewCSVWriter(paths), paths
}

func TestNewCSVWriter(t *testing.T) {
	paths := &config.Paths{}
	writer := NewCSVWriter(paths)

	assert.NotNil(t, writer)
	assert.Equal(t, paths, writer.paths)
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	writer, paths := newTestWriter(t)

	tests := []struct {
		name     string
		filePath string
		options  WriteOptions
		validate func(t *testing.T, content string)
	}{
		{
			name:     "basic write with headers",
			filePath: "basic.csv",
			options: WriteOptions{
				Headers: []string{"BOROUGH NAME", "YEAR"},
				Records: [][]string{
					{"BROOKLYN", "2020"},
					{"QUEENS", "2021"},
				},
			},
			validate: func(t *testing.T, content string) {
				assert.Equal(t, "BOROUGH NAME,YEAR\nBROOKLYN,2020\nQUEENS,2021\n", content)
			},
		},
		{
			name:     "bom prefix",
			filePath: "bom.csv",
			options: WriteOptions{
				Headers:   []string{"BOROUGH NAME"},
				Records:   [][]string{{"BRONX"}},
				BOMPrefix: true,
			},
			validate: func(t *testing.T, content string) {
				assert.True(t, strings.HasPrefix(content, "\xEF\xBB\xBF"))
				assert.Contains(t, content, "BRONX")
			},
		},
		{
			name:     "quoting cells with commas",
			filePath: "quoted.csv",
			options: WriteOptions{
				Headers: []string{"BUILDING CLASS CATEGORY"},
				Records: [][]string{{"09 COOPS, WALKUP"}},
			},
			validate: func(t *testing.T, content string) {
				assert.Contains(t, content, `"09 COOPS, WALKUP"`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, writer.WriteCSV(tt.filePath, tt.options))

			content, err := os.ReadFile(paths.GetOutputPath(tt.filePath))
			require.NoError(t, err)
			tt.validate(t, string(content))
		})
	}
}

func TestCSVWriter_AppendToCSV(t *testing.T) {
	writer, paths := newTestWriter(t)

	require.NoError(t, writer.WriteSimpleCSV("append.csv", []string{"YEAR"}, [][]string{{"2019"}}))
	require.NoError(t, writer.AppendToCSV("append.csv", [][]string{{"2020"}}))

	content, err := os.ReadFile(paths.GetOutputPath("append.csv"))
	require.NoError(t, err)
	assert.Equal(t, "YEAR\n2019\n2020\n", string(content))
}

func TestCSVWriter_StreamWriter(t *testing.T) {
	writer, paths := newTestWriter(t)

	sw, err := writer.CreateStreamWriter("stream.csv", []string{"YEAR", "NUM SALES"})
	require.NoError(t, err)

	require.NoError(t, sw.WriteRecord([]string{"2019", "2"}))
	require.NoError(t, sw.WriteRecord([]string{"2020", "3"}))
	require.NoError(t, sw.Close())

	content, err := os.ReadFile(paths.GetOutputPath("stream.csv"))
	require.NoError(t, err)
	assert.Equal(t, "YEAR,NUM SALES\n2019,2\n2020,3\n", string(content))
}

func TestCSVWriter_AbsolutePathPassthrough(t *testing.T) {
	writer, _ := newTestWriter(t)

	target := filepath.Join(t.TempDir(), "elsewhere.csv")
	require.NoError(t, writer.WriteSimpleCSV(target, []string{"A"}, [][]string{{"1"}}))

	_, err := os.Stat(target)
	assert.NoError(t, err)
}
