package handlers

import (
	"context"
	"net/http"
	"time"

	"grocery-checkout/internal/database"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type SalesReporter interface {
	SalesSummary(ctx context.Context, start, end time.Time) (*database.SalesSummary, error)
}

type ReportHandler struct {
	reports SalesReporter
	log     zerolog.Logger
	now     func() time.Time
}

func NewReportHandler(reports SalesReporter, log zerolog.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, log: log, now: time.Now}
}

// --- GET: /api/admin/reports/sales?from=YYYY-MM-DD&to=YYYY-MM-DD ---
// Both dates are inclusive; the default is the last 30 days.
func (h *ReportHandler) GetSalesReport(c *gin.Context) {
	today := h.now().UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -29)
	end := today

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			badRequest(c, "from must be YYYY-MM-DD")
			return
		}
		start = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			badRequest(c, "to must be YYYY-MM-DD")
			return
		}
		end = t
	}
	if end.Before(start) {
		badRequest(c, "to is before from")
		return
	}

	summary, err := h.reports.SalesSummary(c.Request.Context(), start, end.AddDate(0, 0, 1))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
