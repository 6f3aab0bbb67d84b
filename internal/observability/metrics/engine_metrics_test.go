package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifyReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: fmt.Errorf("report: %w", context.DeadlineExceeded), want: ReasonDeadlineExceeded},
		{name: "not_found", err: gorm.ErrRecordNotFound, want: ReasonNotFound},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: ReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: ReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: ReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: ReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIncBatchTransition(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newEngineMetrics(registry, Config{ServiceName: "workbook", Environment: "test"})

	metrics.IncBatchTransition("draft", "processing")
	metrics.IncBatchTransition("draft", "processing")

	got := testutil.ToFloat64(metrics.batchTransitions.WithLabelValues("draft", "processing"))
	if got != 2 {
		t.Fatalf("expected 2 transitions, got %v", got)
	}
}
