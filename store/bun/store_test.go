//go:build integration

package bunstore_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/id"
	"github.com/xraph/jobrun/job"
	bunstore "github.com/xraph/jobrun/store/bun"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// setupTestStore creates a Postgres container and returns a connected Bun Store.
func setupTestStore(t *testing.T) *bunstore.Store {
	t.Helper()

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("jobrun_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	store := bunstore.New(db, bunstore.WithLogger(slog.Default()))
	if migErr := store.Migrate(ctx); migErr != nil {
		t.Fatalf("migrate: %v", migErr)
	}
	return store
}

func TestStore(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	inst := job.NewInstance(job.NewDescriptor("report", job.WithTimeout(30*time.Second)), base)
	if err := s.SaveInstance(ctx, inst); err != nil {
		t.Fatalf("SaveInstance: %v", err)
	}
	if err := inst.Start("node-1", "trc_1", base); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := inst.Finish(job.Success("ok").WithRetryCount(1), base.Add(2*time.Second)); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := s.SaveInstance(ctx, inst); err != nil {
		t.Fatalf("SaveInstance (update): %v", err)
	}

	got, err := s.GetInstance(ctx, inst.ID)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if got.Status != job.StatusSucceeded || got.RetryCount != 1 || got.ExecutionNode != "node-1" {
		t.Errorf("unexpected instance %+v", got)
	}
	if got.Duration == nil || *got.Duration != 2*time.Second {
		t.Errorf("Duration = %v", got.Duration)
	}
	if got.Descriptor.Timeout != 30*time.Second {
		t.Errorf("descriptor timeout = %v", got.Descriptor.Timeout)
	}

	if _, err := s.GetInstance(ctx, id.NewInstanceID()); !errors.Is(err, jobrun.ErrInstanceNotFound) {
		t.Errorf("expected ErrInstanceNotFound, got %v", err)
	}

	pending := job.NewInstance(job.NewDescriptor("report"), base.Add(time.Minute))
	_ = s.SaveInstance(ctx, pending)

	list, err := s.ListInstances(ctx, job.ListOpts{JobName: "report"})
	if err != nil {
		t.Fatalf("ListInstances: %v", err)
	}
	if len(list) != 2 || list[0].ID.String() != pending.ID.String() {
		t.Fatalf("unexpected list %v", list)
	}

	n, err := s.Prune(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d, want 1", n)
	}
}
