package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) reportDate(c *gin.Context) string {
	if d := strings.TrimSpace(c.Query("date")); d != "" {
		return d
	}
	return h.today()
}

// Reports returns the roster for a day with each student's status.
func (h *Handler) Reports(c *gin.Context) {
	date := h.reportDate(c)
	rows, err := h.reports.Build(c.Request.Context(), date)
	if err != nil {
		if errors.Is(err, attendance.ErrInvalidDate) {
			fail(c, http.StatusBadRequest, "Invalid date, use YYYY-MM-DD")
			return
		}
		fail(c, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	dates, err := h.reports.Dates(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "dates": dates, "records": rows})
}

// DownloadReport sends the day's report as an xlsx attachment.
func (h *Handler) DownloadReport(c *gin.Context) {
	date := h.reportDate(c)
	data, err := h.reports.ExportBytes(c.Request.Context(), date)
	if err != nil {
		if errors.Is(err, attendance.ErrInvalidDate) {
			fail(c, http.StatusBadRequest, "Invalid date, use YYYY-MM-DD")
			return
		}
		fail(c, http.StatusInternalServerError, "Error generating report: "+err.Error())
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.Filename(date)))
	c.Data(http.StatusOK, xlsxContentType, data)
}
