package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is an ordered tabular export payload. Every record carries one cell
// per header.
type Dataset struct {
	Headers []string
	Records [][]string
}

// CSVExporter renders a Dataset into CSV bytes, headers first.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render encodes the dataset. Records shorter than the header row are padded
// with empty cells, longer ones are truncated.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	width := len(data.Headers)
	for _, record := range data.Records {
		cells := make([]string, width)
		copy(cells, record)
		if err := w.Write(cells); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
