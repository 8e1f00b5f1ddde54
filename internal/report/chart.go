package report

import (
	"fmt"
	"io"

	"github.com/SteveArevalo/CS499-CapStone/internal/models"

	"github.com/guptarohit/asciigraph"
	"github.com/pkg/errors"
)

const chartCaption = "Seasonal Adoption Trends by Month (x: month 1-12, y: adoptions)"

// TerminalPlotter draws the seasonal series as an ASCII line chart
type TerminalPlotter struct {
	w      io.Writer
	height int
}

// NewTerminalPlotter creates a plotter writing to w
func NewTerminalPlotter(w io.Writer) *TerminalPlotter {
	return &TerminalPlotter{w: w, height: 10}
}

// PlotMonthlyAdoptions renders adoptions against month
func (p *TerminalPlotter) PlotMonthlyAdoptions(rows []models.MonthlyAdoption) error {
	if len(rows) == 0 {
		return nil
	}
	graph := asciigraph.Plot(MonthSeries(rows),
		asciigraph.Height(p.height),
		asciigraph.Caption(chartCaption),
	)
	if _, err := fmt.Fprintln(p.w, graph); err != nil {
		return errors.Wrap(err, "failed to write chart")
	}
	return nil
}

// MonthSeries returns twelve points, January first, with months that have
// no adoptions set to zero. Rows outside 1-12 are ignored.
func MonthSeries(rows []models.MonthlyAdoption) []float64 {
	series := make([]float64, 12)
	for _, r := range rows {
		if r.Month < 1 || r.Month > 12 {
			continue
		}
		series[r.Month-1] += float64(r.Adoptions)
	}
	return series
}
