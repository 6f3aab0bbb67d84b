package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/workbook/internal/authorization"
	"github.com/smallbiznis/workbook/internal/reporting/scope"
	"github.com/smallbiznis/workbook/internal/tenantcontext"
)

const formatXLSX = "xlsx"

func actorSubject(actor tenantcontext.Actor) string {
	return fmt.Sprintf("user:%s", actor.UserID.String())
}

func (s *Server) authorizeTenantAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// authorizeReport needs report.view, and report.export too when the caller
// asks for a spreadsheet.
func (s *Server) authorizeReport(object string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeWithContext(c, object, authorization.ActionReportView); err != nil {
			AbortWithError(c, err)
			return
		}
		if wantsXLSX(c) {
			if err := s.authorizeWithContext(c, object, authorization.ActionReportExport); err != nil {
				AbortWithError(c, err)
				return
			}
		}
		c.Next()
	}
}

func (s *Server) authorizeWithContext(c *gin.Context, object string, action string) error {
	tenantID, ok := tenantFromRequest(c)
	if !ok {
		return scope.ErrMissingTenant
	}
	actor, ok := tenantcontext.ActorFromContext(c.Request.Context())
	if !ok || actor.UserID == 0 {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}

	err := s.authzSvc.Authorize(c.Request.Context(), actorSubject(actor), tenantID.String(), object, action)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, authorization.ErrInvalidActor):
		return ErrUnauthorized
	case errors.Is(err, authorization.ErrForbidden):
		return ErrForbidden
	default:
		return err
	}
}

func wantsXLSX(c *gin.Context) bool {
	return strings.EqualFold(strings.TrimSpace(c.Query("format")), formatXLSX)
}
