package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workbook/internal/cache"
	"github.com/smallbiznis/workbook/internal/clock"
	"github.com/smallbiznis/workbook/internal/config"
	"github.com/smallbiznis/workbook/internal/migration"
	"github.com/smallbiznis/workbook/internal/observability"
	"github.com/smallbiznis/workbook/internal/payment"
	"github.com/smallbiznis/workbook/internal/payroll"
	payrolldomain "github.com/smallbiznis/workbook/internal/payroll/domain"
	"github.com/smallbiznis/workbook/internal/server"
	"github.com/smallbiznis/workbook/internal/tenantcontext"
	"github.com/smallbiznis/workbook/pkg/civil"
	"github.com/smallbiznis/workbook/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:          "workbook",
	Short:        "Tenant scoped time, project and payroll reporting",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			infrastructure(),
			cache.Module,
			migration.Module,
			server.Module,
		)
		app.Run()
		return app.Err()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context(), fx.Options(infrastructure(), migration.Module))
	},
}

var payrollCmd = &cobra.Command{
	Use:   "payroll",
	Short: "Payroll tools",
}

var payrollPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print the payroll preview for a period as JSON",
	Example: `  workbook payroll preview --tenant 1790000000000000000 --start 2024-01-01 --end 2024-01-31
  workbook payroll preview --tenant 1790000000000000000 --start 2024-01-01 --end 2024-01-31 --users 11,12`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantRaw, _ := cmd.Flags().GetString("tenant")
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")
		usersRaw, _ := cmd.Flags().GetString("users")

		tenantID, err := snowflake.ParseString(strings.TrimSpace(tenantRaw))
		if err != nil || tenantID == 0 {
			return fmt.Errorf("invalid --tenant %q", tenantRaw)
		}
		userIDs, err := parseIDs(usersRaw)
		if err != nil {
			return err
		}

		var svc payrolldomain.Service
		return runOnce(cmd.Context(), fx.Options(
			infrastructure(),
			payment.Module,
			payroll.Module,
			fx.Populate(&svc),
		), func(ctx context.Context) error {
			ctx = tenantcontext.WithTenantID(ctx, tenantID)
			preview, err := svc.Calculate(ctx, payrolldomain.PreviewRequest{
				StartDate: civil.Date(strings.TrimSpace(start)),
				EndDate:   civil.Date(strings.TrimSpace(end)),
				UserIDs:   userIDs,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(preview)
		})
	},
}

func init() {
	payrollPreviewCmd.Flags().String("tenant", "", "tenant id")
	payrollPreviewCmd.Flags().String("start", "", "period start (YYYY-MM-DD)")
	payrollPreviewCmd.Flags().String("end", "", "period end (YYYY-MM-DD)")
	payrollPreviewCmd.Flags().String("users", "", "comma separated user ids, all users when empty")
	_ = payrollPreviewCmd.MarkFlagRequired("tenant")
	_ = payrollPreviewCmd.MarkFlagRequired("start")
	_ = payrollPreviewCmd.MarkFlagRequired("end")

	payrollCmd.AddCommand(payrollPreviewCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd, payrollCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
}

// runOnce starts the app, runs each step and stops it again.
func runOnce(ctx context.Context, opts fx.Option, steps ...func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app := fx.New(opts)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	var stepErr error
	for _, step := range steps {
		if stepErr = step(ctx); stepErr != nil {
			break
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && stepErr == nil {
		return err
	}
	return stepErr
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

func parseIDs(raw string) ([]snowflake.ID, error) {
	var out []snowflake.ID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := snowflake.ParseString(part)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid user id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}
