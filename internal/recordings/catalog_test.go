package recordings

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jfrlite/jfrlite/internal/database"
)

func exerciseCatalog(t *testing.T, c Catalog) {
	t.Helper()
	ctx := context.Background()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := c.Replace(ctx, "t1", []Recording{
		{Name: "b", State: StateRunning, StartTime: start, Duration: time.Minute},
		{Name: "a", State: StateStopped, SizeBytes: 1024},
	})
	if err != nil {
		t.Fatalf("Replace returned error: %v", err)
	}

	list, err := c.List(ctx, "t1")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list) != 2 || list[0].Name != "a" || list[1].Name != "b" {
		t.Fatalf("List() = %+v, want a, b", list)
	}
	if list[1].TargetID != "t1" || !list[1].StartTime.Equal(start) || list[1].Duration != time.Minute {
		t.Errorf("recording b not stored faithfully: %+v", list[1])
	}

	if err := c.Replace(ctx, "t1", []Recording{{Name: "b", State: StateFinished}}); err != nil {
		t.Fatalf("Replace returned error: %v", err)
	}
	if _, err := c.Get(ctx, "t1", "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected a to be dropped, got %v", err)
	}
	got, err := c.Get(ctx, "t1", "b")
	if err != nil || got.State != StateFinished {
		t.Errorf("Get(b) = %+v, %v", got, err)
	}

	if err := c.Upsert(ctx, Recording{TargetID: "t2", Name: "x", State: StateNew}); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if err := c.Upsert(ctx, Recording{Name: "nameless-target"}); err == nil {
		t.Error("expected error for recording without target")
	}

	if err := c.DeleteTarget(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTarget returned error: %v", err)
	}
	if list, _ := c.List(ctx, "t1"); len(list) != 0 {
		t.Errorf("expected no recordings after delete, got %+v", list)
	}
	if list, _ := c.List(ctx, "t2"); len(list) != 1 {
		t.Errorf("other target affected by delete: %+v", list)
	}
}

func TestMemoryCatalog(t *testing.T) {
	exerciseCatalog(t, NewMemoryCatalog())
}

func TestPostgresCatalog(t *testing.T) {
	url := os.Getenv("JFR_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("JFR_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM recordings"); err != nil {
		t.Fatalf("failed to reset table: %v", err)
	}
	exerciseCatalog(t, NewPostgresCatalog(pool))
}
