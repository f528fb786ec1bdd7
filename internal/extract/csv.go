package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// CSVExtractor renders each row as "column: value" lines, one blank line between rows.
type CSVExtractor struct {
	Comma rune
}

// NewCSV creates a comma-separated extractor.
func NewCSV() *CSVExtractor {
	return &CSVExtractor{Comma: ','}
}

// Extract reads the header row, then every record.
func (e *CSVExtractor) Extract(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = e.Comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: read header: %v", ErrInvalidFile, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var b strings.Builder
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: row %d: %v", ErrInvalidFile, row, err)
		}

		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		for i, value := range record {
			if i > 0 {
				b.WriteByte('\n')
			}
			name := fmt.Sprintf("column%d", i+1)
			if i < len(header) && header[i] != "" {
				name = header[i]
			}
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(strings.TrimSpace(value))
		}
	}

	return b.String(), nil
}
