package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	timesheetdomain "github.com/smallbiznis/workbook/internal/timesheet/domain"
)

type timesheetTransitionRequest struct {
	Note string `json:"note"`
}

// TransitionTimesheet moves the sheet in the path to status to. The body is
// optional and only carries a note.
func (s *Server) TransitionTimesheet(to timesheetdomain.Status) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathSnowflakeID(c, "id")
		if err != nil {
			AbortWithError(c, err)
			return
		}

		var req timesheetTransitionRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			AbortWithError(c, invalidRequestError())
			return
		}

		sheet, err := s.timesheetSvc.Transition(c.Request.Context(), timesheetdomain.TransitionRequest{
			TimesheetID: id,
			To:          to,
			Note:        req.Note,
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, sheet)
	}
}
