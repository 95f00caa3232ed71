package catalog

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"daops/internal/timeparam"
)

// Row is one inventory line: a file of a dataset and its time coverage.
// Start and End are normalised to timeparam.Time.String() so they compare
// lexically.
type Row struct {
	DatasetID string
	Path      string
	Start     string
	End       string
}

const utf8BOM = "\uFEFF"

// Inventory column names.
const (
	colID    = "ds_id"
	colPath  = "path"
	colStart = "start_time"
	colEnd   = "end_time"
)

// decompress transparently gunzips b when its content sniffs as gzip.
func decompress(b []byte) (io.Reader, error) {
	if mimetype.Detect(b).Is("application/gzip") {
		zr, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("catalog: gunzip inventory: %w", err)
		}
		return zr, nil
	}
	return bytes.NewReader(b), nil
}

// ReadInventory parses a CSV inventory with at least ds_id and path columns.
// Missing, empty, "undefined" or "nan" times mean an unbounded end. Rows
// with the wrong width or an unparsable time are reported through onError
// and skipped.
func ReadInventory(ctx context.Context, r io.Reader, onError func(line int, err error)) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	h, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("catalog: read inventory header: %w", err)
	}
	headers := normalizeHeaders(h)
	idx := map[string]int{}
	for i, name := range headers {
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	for _, required := range []string{colID, colPath} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("catalog: inventory has no %q column", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []Row
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		line++
		if err != nil {
			report(onError, line, fmt.Errorf("parse: %w", err))
			continue
		}
		if len(rec) != len(headers) {
			report(onError, line, fmt.Errorf("incorrect number of fields: expected %d, got %d", len(headers), len(rec)))
			continue
		}
		start, err := boundTime(field(rec, colStart), timeparam.MinTime)
		if err != nil {
			report(onError, line, err)
			continue
		}
		end, err := boundTime(field(rec, colEnd), timeparam.MaxTime)
		if err != nil {
			report(onError, line, err)
			continue
		}
		rows = append(rows, Row{
			DatasetID: field(rec, colID),
			Path:      field(rec, colPath),
			Start:     start,
			End:       end,
		})
	}
}

func report(onError func(int, error), line int, err error) {
	if onError != nil {
		onError(line, err)
	}
}

func boundTime(s string, def timeparam.Time) (string, error) {
	switch strings.ToLower(s) {
	case "", "undefined", "nan", "none", "nat":
		return def.String(), nil
	}
	t, err := timeparam.ParseTime(s)
	if err != nil {
		return "", err
	}
	return t.String(), nil
}

// normalizeHeaders strips a BOM and lowercases and trims each header.
func normalizeHeaders(h []string) []string {
	out := make([]string, len(h))
	for i, s := range h {
		if i == 0 {
			s = strings.TrimPrefix(s, utf8BOM)
		}
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
