package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/SteveArevalo/CS499-CapStone/internal/models"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
)

// Format selects how a Table is written
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// ParseFormat validates a format name. An empty name means FormatTable.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", errors.Errorf("unsupported report format %q", name)
	}
}

// ContentType returns the HTTP media type for the format
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Table is the renderer-neutral form of a report
type Table struct {
	Columns []string
	Rows    [][]interface{}
}

// BreedAdoptionsTable builds the adoptions-by-breed table
func BreedAdoptionsTable(rows []models.BreedAdoption) Table {
	t := Table{Columns: []string{"breed", "adoptions"}, Rows: make([][]interface{}, 0, len(rows))}
	for _, r := range rows {
		t.Rows = append(t.Rows, []interface{}{r.Breed, r.Adoptions})
	}
	return t
}

// MonthlyAdoptionsTable builds the seasonal adoption table
func MonthlyAdoptionsTable(rows []models.MonthlyAdoption) Table {
	t := Table{Columns: []string{"month", "adoptions"}, Rows: make([][]interface{}, 0, len(rows))}
	for _, r := range rows {
		t.Rows = append(t.Rows, []interface{}{r.Month, r.Adoptions})
	}
	return t
}

// Records returns the table as one map per row keyed by column name
func (t Table) Records() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]interface{}, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// Render writes the table to w in the given format
func Render(w io.Writer, t Table, format Format) error {
	switch format {
	case FormatTable, "":
		return renderTable(w, t)
	case FormatCSV:
		return renderCSV(w, t)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(t.Records()), "failed to encode report")
	default:
		return errors.Errorf("unsupported report format %q", format)
	}
}

func renderTable(w io.Writer, t Table) error {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(t.Columns)
	tw.SetAutoFormatHeaders(false)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, row := range t.Rows {
		tw.Append(cells(row))
	}
	tw.Render()
	return nil
}

func renderCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return errors.Wrap(err, "failed to write report header")
	}
	for _, row := range t.Rows {
		if err := cw.Write(cells(row)); err != nil {
			return errors.Wrap(err, "failed to write report row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush report")
}

func cells(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprint(v)
	}
	return out
}
