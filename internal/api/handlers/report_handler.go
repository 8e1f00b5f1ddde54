package handlers

import (
	"bytes"
	"context"
	"net/http"

	"github.com/SteveArevalo/CS499-CapStone/internal/models"
	"github.com/SteveArevalo/CS499-CapStone/internal/report"

	"github.com/gin-gonic/gin"
)

// ReportService is the part of the shelter service used by ReportHandler
type ReportService interface {
	AdoptionsByBreed(ctx context.Context) ([]models.BreedAdoption, error)
	SeasonalTrends(ctx context.Context, showPlot bool) ([]models.MonthlyAdoption, error)
}

// ReportHandler serves the adoption reports
type ReportHandler struct {
	service ReportService
}

// NewReportHandler creates a new report handler
func NewReportHandler(service ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// HandleAdoptions returns adoption counts per breed
func (h *ReportHandler) HandleAdoptions(c *gin.Context) {
	format, err := report.ParseFormat(c.DefaultQuery("format", string(report.FormatJSON)))
	if err != nil {
		badRequest(c, err)
		return
	}

	rows, err := h.service.AdoptionsByBreed(c.Request.Context())
	if err != nil {
		writeError(c, err, rows)
		return
	}
	h.write(c, format, rows, report.BreedAdoptionsTable(rows))
}

// HandleSeasonal returns adoption counts per month
func (h *ReportHandler) HandleSeasonal(c *gin.Context) {
	format, err := report.ParseFormat(c.DefaultQuery("format", string(report.FormatJSON)))
	if err != nil {
		badRequest(c, err)
		return
	}

	rows, err := h.service.SeasonalTrends(c.Request.Context(), false)
	if err != nil {
		writeError(c, err, rows)
		return
	}
	h.write(c, format, rows, report.MonthlyAdoptionsTable(rows))
}

func (h *ReportHandler) write(c *gin.Context, format report.Format, rows interface{}, table report.Table) {
	if format == report.FormatJSON {
		c.JSON(http.StatusOK, rows)
		return
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, table, format); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// RegisterRoutes registers the handler's routes
func (h *ReportHandler) RegisterRoutes(router gin.IRouter) {
	reports := router.Group("/reports")
	reports.GET("/adoptions", h.HandleAdoptions)
	reports.GET("/seasonal", h.HandleSeasonal)
}
