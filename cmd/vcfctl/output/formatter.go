package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"vcfcreds/domain/credential"
	"vcfcreds/internal/export"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Formatter interface for formatting output
type Formatter interface {
	Format(data any) (string, error)
}

// New returns the formatter for name.
func New(name string) (Formatter, error) {
	switch name {
	case "", FormatJSON:
		return NewJSONFormatter(), nil
	case FormatCSV:
		return NewCSVFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown format %q: use %s or %s", name, FormatJSON, FormatCSV)
	}
}

// JSONFormatter implements the Formatter interface for JSON output
type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) Format(data any) (string, error) {
	out, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// CSVFormatter writes credential records with the export columns.
type CSVFormatter struct{}

func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

func (f *CSVFormatter) Format(data any) (string, error) {
	var rows []export.Row
	switch v := data.(type) {
	case []credential.Record:
		rows = export.FromRecords(v)
	case []credential.Credential:
		rows = export.FromCredentials(v)
	default:
		return "", fmt.Errorf("csv output is not supported for %T", data)
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, rows); err != nil {
		return "", err
	}
	return buf.String(), nil
}
