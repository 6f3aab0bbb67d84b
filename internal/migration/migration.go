package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	invoicedomain "github.com/smallbiznis/workbook/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/workbook/internal/payment/domain"
	payrolldomain "github.com/smallbiznis/workbook/internal/payroll/domain"
	projectdomain "github.com/smallbiznis/workbook/internal/project/domain"
	tenantdomain "github.com/smallbiznis/workbook/internal/tenant/domain"
	timeentrydomain "github.com/smallbiznis/workbook/internal/timeentry/domain"
	timesheetdomain "github.com/smallbiznis/workbook/internal/timesheet/domain"
	userdomain "github.com/smallbiznis/workbook/internal/user/domain"
	"gorm.io/gorm"
)

// Models lists every table the service reads or writes. sqlite databases are
// created from it; postgres uses the embedded SQL migrations.
func Models() []any {
	return []any{
		&tenantdomain.Tenant{},
		&tenantdomain.Settings{},
		&userdomain.User{},
		&userdomain.Membership{},
		&projectdomain.Project{},
		&projectdomain.Task{},
		&timeentrydomain.TimeEntry{},
		&timesheetdomain.Timesheet{},
		&invoicedomain.Invoice{},
		&payrolldomain.Batch{},
		&payrolldomain.Line{},
		&paymentdomain.Payment{},
	}
}

// Source opens the embedded migration files.
func Source() (source.Driver, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return src, nil
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	src, err := Source()
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Migrate brings conn up to date for its dialect.
func Migrate(conn *gorm.DB) error {
	switch conn.Dialector.Name() {
	case "postgres":
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	case "sqlite":
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("migrations: unsupported dialect %q", conn.Dialector.Name())
	}
}
