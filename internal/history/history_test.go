package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/opsdash/internal/apperr"
	"github.com/starford/opsdash/internal/testutil"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DriverSQLite, testutil.TempDBPath(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var base = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open("mysql", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := testutil.TempDBPath(t)
	db, err := Open(DriverSQLite, path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Record(context.Background(), Run{Checksum: "a", TakenAt: base}); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("schema must be re-appliable: %v", err)
	}
	defer db.Close()
	runs, err := db.List(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("runs = %d, want 1", len(runs))
	}
}

func TestRecordAndLatest(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.Latest(ctx); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Latest on empty store = %v, want ErrNotFound", err)
	}

	in := Run{
		SnapshotID:     "snap-1",
		Source:         "csv:tasks.csv",
		TakenAt:        base,
		Checksum:       "abc",
		Total:          10,
		Open:           3,
		Working:        2,
		Done:           4,
		Archived:       1,
		Overdue:        2,
		CompletionRate: 40,
	}
	rec, err := db.Record(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID == "" {
		t.Fatal("Record should assign an id")
	}

	got, err := db.Latest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != rec.ID || got.Checksum != "abc" || got.Total != 10 || got.Overdue != 2 {
		t.Errorf("Latest = %+v", got)
	}
	if got.CompletionRate != 40 {
		t.Errorf("completion_rate = %v, want 40", got.CompletionRate)
	}
	if !got.TakenAt.Equal(base) {
		t.Errorf("taken_at = %v, want %v", got.TakenAt, base)
	}
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	for i, cs := range []string{"a", "b", "c"} {
		if _, err := db.Record(ctx, Run{Checksum: cs, TakenAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := db.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].Checksum != "c" || runs[1].Checksum != "b" {
		t.Errorf("order = %s,%s, want c,b", runs[0].Checksum, runs[1].Checksum)
	}

	all, err := db.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}
}

func TestList_EmptyIsNonNil(t *testing.T) {
	db := testDB(t)
	runs, err := db.List(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if runs == nil {
		t.Error("List should return an empty slice, not nil")
	}
}

func TestPrune(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	for i := range 5 {
		if _, err := db.Record(ctx, Run{Checksum: string(rune('a' + i)), TakenAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := db.Prune(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("pruned = %d, want 3", n)
	}
	runs, _ := db.List(ctx, 0)
	if len(runs) != 2 || runs[0].Checksum != "e" || runs[1].Checksum != "d" {
		t.Errorf("remaining = %+v", runs)
	}

	if n, _ := db.Prune(ctx, 0); n != 0 {
		t.Errorf("Prune(0) removed %d rows", n)
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("rebind = %q", got)
	}
	lite := &DB{driver: DriverSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}
