// Package ingestion loads booking-platform CSV exports and maps their rows
// into the normalized reservation schema.
package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lettia/backoffice/internal/domain"
)

// ErrNoCSV is returned when the import directory holds no CSV files.
var ErrNoCSV = errors.New("ingestion: no csv files found")

// Importer reads reservation CSV exports from a drop directory.
type Importer struct {
	dir string
}

// NewImporter creates an importer over the given directory.
func NewImporter(dir string) *Importer {
	return &Importer{dir: dir}
}

// LatestFile returns the newest *.csv file in the directory by modification
// time.
func (i *Importer) LatestFile() (string, error) {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		return "", fmt.Errorf("read dir %s: %w", i.dir, err)
	}

	type candidate struct {
		path  string
		mtime int64
	}
	var files []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{
			path:  filepath.Join(i.dir, e.Name()),
			mtime: info.ModTime().UnixNano(),
		})
	}
	if len(files) == 0 {
		return "", ErrNoCSV
	}

	sort.Slice(files, func(a, b int) bool { return files[a].mtime > files[b].mtime })
	log.Printf("[ingestion] Found %d CSV file(s); latest is %s", len(files), files[0].path)
	return files[0].path, nil
}

// Load reads a CSV file into header-keyed records. Short rows are
// blank-filled so every record carries the full column set.
func (i *Importer) Load(path string) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for j := range header {
		header[j] = strings.TrimSpace(header[j])
	}

	var records []domain.Record
	lineNum := 1
	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		rec := make(domain.Record, len(header))
		for j, col := range header {
			if j < len(row) {
				rec[col] = strings.TrimSpace(row[j])
			} else {
				rec[col] = ""
			}
		}
		records = append(records, rec)
	}

	log.Printf("[ingestion] Loaded %d rows from %s", len(records), path)
	return records, nil
}

// ValidateColumns checks that every required column is present in the loaded
// rows.
func ValidateColumns(rows []domain.Record, required []string) error {
	if len(rows) == 0 {
		return errors.New("ingestion: no rows to validate")
	}

	var missing []string
	for _, col := range required {
		if _, ok := rows[0][col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("ingestion: missing required columns: %s",
			strings.Join(missing, ", "))
	}
	return nil
}
