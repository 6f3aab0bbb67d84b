package payroll

import (
	paymentdomain "github.com/smallbiznis/workbook/internal/payment/domain"
	payrolldomain "github.com/smallbiznis/workbook/internal/payroll/domain"
	"github.com/smallbiznis/workbook/internal/payroll/repository"
	payrollservice "github.com/smallbiznis/workbook/internal/payroll/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payroll.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(repo paymentdomain.Repository) payrolldomain.PaymentWriter { return repo }),
	fx.Provide(payrollservice.NewService),
)
