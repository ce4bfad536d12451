// Package export renders credentials as CSV or XLSX downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"vcfcreds/domain/credential"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName       = "Credentials"
	TimestampLayout = "2006-01-02 15:04:05"

	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var columns = []struct {
	header string
	width  float64
}{
	{"Hostname", 25},
	{"Username", 30},
	{"Password", 30},
	{"Credential Type", 18},
	{"Account Type", 18},
	{"Resource Type", 18},
	{"Domain Name", 20},
	{"Source", 18},
	{"Last Updated", 20},
}

// Row is one exported credential.
type Row struct {
	Hostname       string
	Username       string
	Password       string
	CredentialType string
	AccountType    string
	ResourceType   string
	DomainName     string
	Source         string
	LastUpdated    time.Time
}

func (r Row) values() []string {
	updated := ""
	if !r.LastUpdated.IsZero() {
		updated = r.LastUpdated.Format(TimestampLayout)
	}
	return []string{
		r.Hostname,
		r.Username,
		r.Password,
		r.CredentialType,
		r.AccountType,
		r.ResourceType,
		r.DomainName,
		r.Source,
		updated,
	}
}

func FromCredentials(creds []credential.Credential) []Row {
	rows := make([]Row, 0, len(creds))
	for _, c := range creds {
		rows = append(rows, Row{
			Hostname:       c.Hostname,
			Username:       c.Username,
			Password:       c.Password,
			CredentialType: string(c.AuthMechanism),
			AccountType:    string(c.AccountClass),
			ResourceType:   string(c.ResourceKind),
			DomainName:     c.Domain,
			Source:         string(c.Provenance),
			LastUpdated:    c.LastUpdated,
		})
	}
	return rows
}

// FromRecords converts freshly extracted records, which have no update time.
func FromRecords(records []credential.Record) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, Row{
			Hostname:       r.Hostname,
			Username:       r.Username,
			Password:       r.Password,
			CredentialType: string(r.AuthMechanism),
			AccountType:    string(r.AccountClass),
			ResourceType:   string(r.ResourceKind),
			DomainName:     r.DomainName(),
			Source:         string(r.Provenance),
		})
	}
	return rows
}

// Filename builds the download name for an environment's export.
func Filename(environmentName, ext string, now time.Time) string {
	return fmt.Sprintf("%s_credentials_%s.%s", environmentName, now.Format("20060102_150405"), ext)
}

func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(columns))
	for _, col := range columns {
		header = append(header, col.header)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		if err := cw.Write(row.values()); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"0070C0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, name+"1", col.header); err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, name, name, col.width); err != nil {
			return err
		}
	}

	last, _ := excelize.ColumnNumberToName(len(columns))
	if err := f.SetCellStyle(SheetName, "A1", last+"1", headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row.values()
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}
