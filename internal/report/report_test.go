package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/SteveArevalo/CS499-CapStone/internal/models"

	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"":      FormatTable,
		"table": FormatTable,
		" CSV ": FormatCSV,
		"json":  FormatJSON,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseFormat("xml")
	require.EqualError(t, err, `unsupported report format "xml"`)
}

func TestBreedAdoptionsTable(t *testing.T) {
	table := BreedAdoptionsTable([]models.BreedAdoption{{Breed: "A", Adoptions: 3}, {Breed: "B", Adoptions: 1}})
	require.Equal(t, []string{"breed", "adoptions"}, table.Columns)
	require.Equal(t, [][]interface{}{{"A", int64(3)}, {"B", int64(1)}}, table.Rows)
}

func TestMonthlyAdoptionsTableEmpty(t *testing.T) {
	table := MonthlyAdoptionsTable(nil)
	require.Equal(t, []string{"month", "adoptions"}, table.Columns)
	require.NotNil(t, table.Rows)
	require.Empty(t, table.Rows)
}

func TestRenderCSV(t *testing.T) {
	var buf bytes.Buffer
	table := MonthlyAdoptionsTable([]models.MonthlyAdoption{{Month: 1, Adoptions: 2}, {Month: 3, Adoptions: 1}})

	require.NoError(t, Render(&buf, table, FormatCSV))
	require.Equal(t, "month,adoptions\n1,2\n3,1\n", buf.String())
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	table := BreedAdoptionsTable([]models.BreedAdoption{{Breed: "Beagle", Adoptions: 7}})

	require.NoError(t, Render(&buf, table, FormatJSON))

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, []map[string]interface{}{{"breed": "Beagle", "adoptions": float64(7)}}, got)
}

func TestRenderJSONEmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, BreedAdoptionsTable(nil), FormatJSON))
	require.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	table := BreedAdoptionsTable([]models.BreedAdoption{{Breed: "Beagle", Adoptions: 7}})

	require.NoError(t, Render(&buf, table, FormatTable))
	out := buf.String()
	require.Contains(t, out, "breed")
	require.Contains(t, out, "adoptions")
	require.Contains(t, out, "Beagle")
	require.Contains(t, out, "7")
}

func TestRenderUnknownFormat(t *testing.T) {
	err := Render(&bytes.Buffer{}, Table{}, Format("xml"))
	require.Error(t, err)
}

func TestMonthSeriesFillsMissingMonths(t *testing.T) {
	series := MonthSeries([]models.MonthlyAdoption{{Month: 1, Adoptions: 2}, {Month: 3, Adoptions: 1}, {Month: 13, Adoptions: 9}})
	require.Equal(t, []float64{2, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0}, series)
}

func TestTerminalPlotter(t *testing.T) {
	var buf bytes.Buffer
	p := NewTerminalPlotter(&buf)

	require.NoError(t, p.PlotMonthlyAdoptions(nil))
	require.Empty(t, buf.String())

	require.NoError(t, p.PlotMonthlyAdoptions([]models.MonthlyAdoption{{Month: 6, Adoptions: 4}}))
	require.Contains(t, buf.String(), "Seasonal Adoption Trends by Month")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestTerminalPlotterWriteError(t *testing.T) {
	err := NewTerminalPlotter(failingWriter{}).PlotMonthlyAdoptions([]models.MonthlyAdoption{{Month: 6, Adoptions: 4}})
	require.ErrorContains(t, err, "failed to write chart")
}
