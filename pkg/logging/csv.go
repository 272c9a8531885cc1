package logging

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// CSVWriter writes records as CSV rows. The header is taken from the sorted
// keys of the first record; later records may omit columns but not add them.
type CSVWriter struct {
	mu      sync.Mutex
	w       *csv.Writer
	closer  io.Closer
	columns []string
}

func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// OpenCSV creates (or truncates) the file at path, creating parent
// directories as needed.
func OpenCSV(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create csv directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}
	cw := NewCSVWriter(f)
	cw.closer = f
	return cw, nil
}

func (c *CSVWriter) Write(_ context.Context, data Data) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.columns == nil {
		c.columns = data.Keys()
		if err := c.w.Write(c.columns); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}

	known := make(map[string]bool, len(c.columns))
	for _, col := range c.columns {
		known[col] = true
	}
	for k := range data {
		if !known[k] {
			return fmt.Errorf("csv: unexpected column %q", k)
		}
	}

	row := make([]string, len(c.columns))
	for i, col := range c.columns {
		if v, ok := data[col]; ok && v != nil {
			row[i] = fmt.Sprint(v)
		}
	}
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	c.w.Flush()
	return c.w.Error()
}

// Close flushes and closes the underlying file, if any.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w.Flush()
	if c.closer != nil {
		return c.closer.Close()
	}
	return c.w.Error()
}
