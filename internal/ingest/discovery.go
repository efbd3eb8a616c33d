// Package ingest finds the rolling-sales source files for a run and reads
// them into raw row batches. It does no typing or cleaning; the schema and
// normalize packages own those.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Version of the ingestion stage, recorded in run report provenance.
const Version = "1.0.1"

// FileInfo describes one discovered source file.
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery lists the spreadsheet files of an input directory.
type Discovery struct {
	inputDir string
}

// NewDiscovery creates a discovery instance rooted at inputDir.
func NewDiscovery(inputDir string) *Discovery {
	return &Discovery{inputDir: inputDir}
}

// supported spreadsheet extensions, lowercase. Legacy .xls workbooks are
// not OOXML and excelize cannot open them; they stay out of discovery
// rather than surfacing as a skip on every run.
var sourceExtensions = map[string]bool{
	".xlsx": true,
	".csv":  true,
}

// Discover returns every readable source file directly under the input
// directory, sorted by file name so every run visits files in the same
// order regardless of filesystem timestamps.
func (d *Discovery) Discover() ([]FileInfo, error) {
	entries, err := os.ReadDir(d.inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", d.inputDir, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		// Excel lock files appear while a workbook is open for editing.
		if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
			continue
		}
		if !sourceExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, FileInfo{
			Path:    filepath.Join(d.inputDir, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}
