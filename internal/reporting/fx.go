package reporting

import (
	reportingservice "github.com/smallbiznis/workbook/internal/reporting/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reporting.service",
	fx.Provide(reportingservice.NewService),
)
