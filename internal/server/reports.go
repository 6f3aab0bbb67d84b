package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	reportingdomain "github.com/smallbiznis/workbook/internal/reporting/domain"
	"github.com/smallbiznis/workbook/internal/reporting/export"
)

func (s *Server) TimeSummary(c *gin.Context) {
	c.Set("report", reportingdomain.ReportTimeSummary)
	var req reportingdomain.TimeSummaryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	report, err := s.reportingSvc.TimeSummary(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respondReport(c, reportingdomain.ReportTimeSummary, report)
}

func (s *Server) TaskStatistics(c *gin.Context) {
	c.Set("report", reportingdomain.ReportTaskStatistics)
	var req reportingdomain.TaskStatisticsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	report, err := s.reportingSvc.TaskStatistics(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respondReport(c, reportingdomain.ReportTaskStatistics, report)
}

func (s *Server) ProjectProgress(c *gin.Context) {
	c.Set("report", reportingdomain.ReportProjectProgress)
	var req reportingdomain.ProjectRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	report, err := s.reportingSvc.ProjectProgress(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respondReport(c, reportingdomain.ReportProjectProgress, report)
}

func (s *Server) ProjectBudget(c *gin.Context) {
	c.Set("report", reportingdomain.ReportProjectBudget)
	var req reportingdomain.ProjectRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	report, err := s.reportingSvc.ProjectBudget(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respondReport(c, reportingdomain.ReportProjectBudget, report)
}

func (s *Server) TeamUtilization(c *gin.Context) {
	c.Set("report", reportingdomain.ReportTeamUtilization)
	var req reportingdomain.TimeFilterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	report, err := s.reportingSvc.TeamUtilization(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respondReport(c, reportingdomain.ReportTeamUtilization, report)
}

func (s *Server) DailyTotals(c *gin.Context) {
	c.Set("report", reportingdomain.ReportDailyTotals)
	var req reportingdomain.DailyTotalsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	report, err := s.reportingSvc.DailyTotals(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respondReport(c, reportingdomain.ReportDailyTotals, report)
}

func (s *Server) InvoicesPayments(c *gin.Context) {
	c.Set("report", reportingdomain.ReportInvoicesPayments)
	var req reportingdomain.InvoiceRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	report, err := s.reportingSvc.InvoicesPayments(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respondReport(c, reportingdomain.ReportInvoicesPayments, report)
}

// respondReport writes report as JSON, or as a workbook when format=xlsx.
func (s *Server) respondReport(c *gin.Context, name string, report any) {
	if !wantsXLSX(c) {
		c.JSON(http.StatusOK, report)
		return
	}

	sheets, err := export.Sheets(report)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, sheets...); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(name, s.clock.Now())))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}
