package patient

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one data row of an uploaded sheet, loosely typed on arrival.
// Line is the 1-based physical row number in the original file (the header
// is row 1), so error reports point at the row the uploader sees in their
// spreadsheet tool even when other rows are skipped.
type Row struct {
	Line        int
	PatientID   string
	FirstName   string
	LastName    string
	DateOfBirth string
	Gender      string
}

const (
	columnPatientID   = "Patient ID"
	columnFirstName   = "First Name"
	columnLastName    = "Last Name"
	columnDateOfBirth = "Date of Birth"
	columnGender      = "Gender"
)

var requiredColumns = []string{columnPatientID, columnFirstName, columnLastName, columnDateOfBirth, columnGender}

var errNoHeader = errors.New("file has no header row")

// ParseSheet reads an uploaded spreadsheet into rows. Supported formats are
// .xlsx/.xls and .csv, picked by filename extension. Columns may appear in
// any order; a missing required column, an unreadable file or a sheet over
// maxRows non-blank data rows is batch-fatal (ParseError). Fully empty rows
// are skipped without consuming a row number in the report.
func ParseSheet(filename string, r io.Reader, maxRows int) ([]Row, error) {
	var cells [][]string
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		cells, err = readWorkbook(r)
	case ".csv":
		cells, err = readCSV(r)
	default:
		return nil, ParseError{reason: fmt.Errorf("unsupported file format %q", filepath.Ext(filename))}
	}
	if err != nil {
		return nil, err
	}

	if len(cells) == 0 {
		return nil, ParseError{reason: errNoHeader}
	}

	columns, err := mapColumns(cells[0])
	if err != nil {
		return nil, err
	}

	var rows []Row
	for i, record := range cells[1:] {
		if blankRow(record) {
			continue
		}
		rows = append(rows, Row{
			Line:        i + 2, // header occupies row 1
			PatientID:   cell(record, columns[columnPatientID]),
			FirstName:   cell(record, columns[columnFirstName]),
			LastName:    cell(record, columns[columnLastName]),
			DateOfBirth: cell(record, columns[columnDateOfBirth]),
			Gender:      cell(record, columns[columnGender]),
		})
	}

	// The cap counts rows that will actually be processed, so trailing
	// blank padding in an exported sheet cannot push a file over the limit.
	if maxRows > 0 && len(rows) > maxRows {
		return nil, ParseError{reason: fmt.Errorf("file has %d data rows, limit is %d", len(rows), maxRows)}
	}
	return rows, nil
}

func readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, ParseError{reason: fmt.Errorf("unreadable workbook: %w", err)}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ParseError{reason: errors.New("workbook has no sheets")}
	}

	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, ParseError{reason: fmt.Errorf("reading sheet %q: %w", sheet, err)}
	}
	return cells, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	cells, err := reader.ReadAll()
	if err != nil {
		return nil, ParseError{reason: fmt.Errorf("unreadable csv: %w", err)}
	}
	return cells, nil
}

func mapColumns(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[normalizeHeader(name)] = i
	}

	columns := make(map[string]int, len(requiredColumns))
	var missing []string
	for _, name := range requiredColumns {
		i, ok := index[normalizeHeader(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		columns[name] = i
	}
	if len(missing) > 0 {
		return nil, ParseError{reason: fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))}
	}
	return columns, nil
}

func normalizeHeader(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func blankRow(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
