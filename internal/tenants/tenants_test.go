package tenants

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"

	"github.com/IDLEcreative/Omniops-sub014/internal/cache"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func configRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"tenant_id", "similarity_threshold", "default_limit", "max_limit",
		"max_iterations", "token_budget", "search_cache_ttl_seconds",
		"billable_min_turns", "billable_min_duration_seconds",
	})
}

func TestGetLoadsFromDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM omniops.tenant_configs").
		WithArgs("t1").
		WillReturnRows(configRows().AddRow("t1", 0.2, 5, 20, 3, 16000, 120, 2, 30))

	store := NewStore(db, nil, testLogger())
	cfg, err := store.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.SimilarityThreshold != 0.2 || cfg.MaxLimit != 20 || cfg.MaxIterations != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.SearchCacheTTL != 2*time.Minute {
		t.Fatalf("unexpected search cache ttl: %v", cfg.SearchCacheTTL)
	}
	if cfg.BillableMinTurns != 2 || cfg.BillableMinDuration != 30*time.Second {
		t.Fatalf("unexpected billing thresholds: %+v", cfg)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetMissingTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM omniops.tenant_configs").
		WithArgs("ghost").
		WillReturnRows(configRows())

	store := NewStore(db, nil, testLogger())
	if _, err := store.Get(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetReadsThroughCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	// Only one database round trip expected for two Gets.
	mock.ExpectQuery("FROM omniops.tenant_configs").
		WithArgs("t1").
		WillReturnRows(configRows().AddRow("t1", 0.15, 10, 50, 5, 24000, 60, 1, 10))

	store := NewStore(db, cache.NewManager(testLogger()), testLogger())
	ctx := context.Background()

	first, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	second, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if first != second {
		t.Fatalf("cached config differs: %+v vs %+v", first, second)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestNullColumnsLeaveZeroValues(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM omniops.tenant_configs").
		WithArgs("t1").
		WillReturnRows(configRows().AddRow("t1", nil, nil, nil, nil, nil, nil, nil, nil))

	store := NewStore(db, nil, testLogger())
	cfg, err := store.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.SimilarityThreshold != 0 || cfg.MaxLimit != 0 || cfg.TokenBudget != 0 {
		t.Fatalf("expected zero values for NULL columns: %+v", cfg)
	}
}
