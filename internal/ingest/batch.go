package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// RawBatch is a rectangular table of untyped cells as fetched from a source.
// Column naming and cell contents are whatever the upstream produced; the
// normalizer is responsible for making sense of them.
type RawBatch struct {
	Columns []string
	Rows    [][]string
}

// Empty reports whether the batch carries no data rows.
func (b RawBatch) Empty() bool { return len(b.Rows) == 0 }

// ParseCSV reads a header-led CSV document into a RawBatch. Rows with a
// different field count than the header are padded or truncated rather than
// rejected, since upstream exports are occasionally ragged.
func ParseCSV(r io.Reader) (RawBatch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return RawBatch{}, nil
	}
	if err != nil {
		return RawBatch{}, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		// exports saved with utf-8-sig carry a BOM on the first column
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return RawBatch{}, fmt.Errorf("read csv row: %w", err)
		}
		if len(rec) < len(header) {
			padded := make([]string, len(header))
			copy(padded, rec)
			rec = padded
		} else if len(rec) > len(header) {
			rec = rec[:len(header)]
		}
		rows = append(rows, rec)
	}
	return RawBatch{Columns: header, Rows: rows}, nil
}
