package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

var testColumns = []string{"Title", "PMID", "Number of Subjects Studied", "Error"}

func testRows() []map[string]any {
	return []map[string]any{
		{
			"Title": "Dapagliflozin in Patients with Heart Failure",
			"PMID":  "31622345",
			"Number of Subjects Studied": 120,
			"Error": "",
		},
		{
			"Title": "Error analyzing paper",
			"PMID":  "99999999",
			"Number of Subjects Studied": "",
			"Error": "openai: rate limited",
		},
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, testColumns, testRows()); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}

	header := rows[0]
	if len(header) != len(testColumns) {
		t.Fatalf("header has %d columns, want %d", len(header), len(testColumns))
	}
	for i, name := range testColumns {
		if header[i] != name {
			t.Fatalf("header[%d] = %q, want %q", i, header[i], name)
		}
	}

	if rows[1][0] != "Dapagliflozin in Patients with Heart Failure" {
		t.Fatalf("row 1 title = %q", rows[1][0])
	}
	if rows[1][2] != "120" {
		t.Fatalf("subject count cell = %q", rows[1][2])
	}
	if rows[2][3] != "openai: rate limited" {
		t.Fatalf("error cell = %q", rows[2][3])
	}

	var sawDisclaimer bool
	for _, row := range rows {
		if len(row) > 0 && row[0] == disclaimer {
			sawDisclaimer = true
		}
	}
	if !sawDisclaimer {
		t.Fatal("disclaimer row missing")
	}
}

func TestWriteXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, testColumns, nil); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) == 0 || rows[0][0] != "Title" {
		t.Fatal("header row must exist even with no records")
	}
}
