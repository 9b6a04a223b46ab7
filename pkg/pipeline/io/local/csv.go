package local

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ReadRecordsCSV reads a CSV file with a header row and returns one map per
// data row, keyed by the lowercased, trimmed header names. Rows shorter than
// the header are padded with empty values. Every name in required must be
// present in the header.
func ReadRecordsCSV(r io.Reader, required ...string) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		cols[i] = col
		seen[col] = true
	}
	for _, name := range required {
		if !seen[strings.ToLower(name)] {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	var out []map[string]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(map[string]string, len(cols))
		for i, col := range cols {
			if col == "" {
				continue
			}
			if _, dup := row[col]; dup {
				continue
			}
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// CSVSink appends records to a CSV stream. Each Append is flushed (and
// synced, when the underlying writer supports it) before returning, so a
// crash loses at most the record being written.
type CSVSink struct {
	mu  sync.Mutex
	w   io.Writer
	csv *csv.Writer
}

type syncer interface {
	Sync() error
}

// NewCSVSink writes header to w and returns a sink for the data rows.
func NewCSVSink(w io.Writer, header []string) (*CSVSink, error) {
	s := &CSVSink{w: w, csv: csv.NewWriter(w)}
	if err := s.Append(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return s, nil
}

// Append writes one record. It is safe for concurrent use.
func (s *CSVSink) Append(record []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.csv.Write(record); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return fmt.Errorf("flush row: %w", err)
	}
	if sy, ok := s.w.(syncer); ok {
		if err := sy.Sync(); err != nil {
			return fmt.Errorf("sync row: %w", err)
		}
	}
	return nil
}
