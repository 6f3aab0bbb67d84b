package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	payrolldomain "github.com/smallbiznis/workbook/internal/payroll/domain"
)

func (s *Server) PreviewPayroll(c *gin.Context) {
	userIDs, err := querySnowflakeIDs(c, "user_ids")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	preview, err := s.payrollSvc.Calculate(c.Request.Context(), payrolldomain.PreviewRequest{
		StartDate: queryDate(c, "start_date"),
		EndDate:   queryDate(c, "end_date"),
		UserIDs:   userIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, preview)
}

func (s *Server) CreatePayrollBatch(c *gin.Context) {
	var req payrolldomain.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	detail, err := s.payrollSvc.CreateBatch(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, detail)
}

func (s *Server) ListPayrollBatches(c *gin.Context) {
	var req payrolldomain.ListBatchesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payrollSvc.ListBatches(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetPayrollBatch(c *gin.Context) {
	id, err := pathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	detail, err := s.payrollSvc.GetBatch(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (s *Server) ProcessPayrollBatch(c *gin.Context) {
	id, err := pathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.payrollSvc.ProcessBatch(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
