package ratelimit

import (
	payrolldomain "github.com/smallbiznis/workbook/internal/payroll/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(
		NewReportLimiter,
		NewBatchLock,
		func(b *BatchLock) payrolldomain.BatchLocker { return b },
	),
)
