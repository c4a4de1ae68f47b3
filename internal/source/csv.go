package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/lchartrand/shelfprice/internal/domain"
)

// CSVSource reads raw records from a single CSV file. The header row
// supplies the column names; the cleaning stage owns normalization.
type CSVSource struct {
	path string
}

// NewCSVSource creates a source over one CSV file.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Name returns the provenance tag for this file.
func (s *CSVSource) Name() string {
	return "csv:" + filepath.Base(s.path)
}

// Fetch reads the whole file into a batch of raw records.
func (s *CSVSource) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readCSVFile(s.path)
}

// CSVDirectorySource reads and concatenates every *.csv file in a directory,
// in lexicographic filename order so repeated runs see the same batch order.
type CSVDirectorySource struct {
	dir string
}

// NewCSVDirectorySource creates a source over a directory of CSV files.
func NewCSVDirectorySource(dir string) *CSVDirectorySource {
	return &CSVDirectorySource{dir: dir}
}

// Name returns the provenance tag for this directory.
func (s *CSVDirectorySource) Name() string {
	return "csv_dir:" + s.dir
}

// Fetch reads all CSV files in the directory. A directory with no CSV files
// yields an empty batch, not an error.
func (s *CSVDirectorySource) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("source: glob %s: %w", s.dir, err)
	}
	sort.Strings(paths)

	var combined []domain.RawRecord
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := readCSVFile(path)
		if err != nil {
			return nil, fmt.Errorf("source: read %s: %w", path, err)
		}
		combined = append(combined, records...)
	}
	return combined, nil
}

func readCSVFile(path string) ([]domain.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // heterogeneous rows are dropped later, not here

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("source: parse %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	header := rows[0]
	records := make([]domain.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(domain.RawRecord, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
