package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVImporter turns CSV into a markdown table. The first row is treated as
// the header.
type CSVImporter struct{}

func (p *CSVImporter) Import(r io.Reader, filename string) (string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}

	headers := records[0]
	var buf strings.Builder

	writeRow := func(cells []string) {
		buf.WriteByte('|')
		for i := range headers {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			buf.WriteByte(' ')
			buf.WriteString(escapeCell(cell))
			buf.WriteString(" |")
		}
		buf.WriteByte('\n')
	}

	writeRow(headers)
	buf.WriteByte('|')
	for range headers {
		buf.WriteString(" --- |")
	}
	buf.WriteByte('\n')
	for _, row := range records[1:] {
		writeRow(row)
	}

	return buf.String(), nil
}

func escapeCell(cell string) string {
	cell = strings.ReplaceAll(cell, "|", `\|`)
	return strings.ReplaceAll(cell, "\n", " ")
}
