package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCSVSourceReadsHeaderedRows(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "prices.csv",
		"timestamp,supplier,product_id,price,currency\n"+
			"2024-03-01T10:00:00Z,lamour,shampoo-01,19.99,CAD\n"+
			"2024-03-01T11:00:00Z,sukoshi,shampoo-01,21.50,CAD\n")

	s := NewCSVSource(path)
	records, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0]["supplier"] != "lamour" || records[0]["price"] != "19.99" {
		t.Errorf("unexpected first record %v", records[0])
	}
	if records[1]["product_id"] != "shampoo-01" {
		t.Errorf("unexpected second record %v", records[1])
	}
}

func TestCSVSourceShortRowsKeepKnownColumns(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ragged.csv",
		"timestamp,supplier,price\n"+
			"2024-03-01T10:00:00Z,lamour\n")

	records, err := NewCSVSource(path).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if _, ok := records[0]["price"]; ok {
		t.Errorf("short row should not carry a price column: %v", records[0])
	}
	if records[0]["supplier"] != "lamour" {
		t.Errorf("unexpected record %v", records[0])
	}
}

func TestCSVSourceHeaderOnlyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.csv", "timestamp,supplier,price\n")

	records, err := NewCSVSource(path).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestCSVSourceMissingFile(t *testing.T) {
	s := NewCSVSource(filepath.Join(t.TempDir(), "nope.csv"))
	if _, err := s.Fetch(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCSVDirectorySourceReadsFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.csv", "product_id\nsecond\n")
	writeFile(t, dir, "a.csv", "product_id\nfirst\n")
	writeFile(t, dir, "notes.txt", "ignore me")

	s := NewCSVDirectorySource(dir)
	records, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0]["product_id"] != "first" || records[1]["product_id"] != "second" {
		t.Errorf("files not read in filename order: %v", records)
	}
}

func TestCSVDirectorySourceEmptyDirectory(t *testing.T) {
	s := NewCSVDirectorySource(t.TempDir())
	records, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty batch, got %d records", len(records))
	}
}
