package table

import (
	"errors"
	"testing"
)

func TestResolve_SuffixedAndExact(t *testing.T) {
	tb := New([]string{"Status___abc123", "Project"}, nil)

	if got := tb.Resolve("Status"); got != "Status___abc123" {
		t.Errorf("Resolve(Status) = %q, want Status___abc123", got)
	}
	if got := tb.Resolve("Project"); got != "Project" {
		t.Errorf("Resolve(Project) = %q, want Project", got)
	}
}

func TestResolve_NoMatchFallsBackToName(t *testing.T) {
	tb := New([]string{"A", "B"}, nil)

	if got := tb.Resolve("X"); got != "X" {
		t.Errorf("Resolve(X) = %q, want X", got)
	}
	if tb.Exists("X") {
		t.Error("Exists(X) = true, want false")
	}
}

func TestResolve_ExactBeatsSuffix(t *testing.T) {
	tb := New([]string{"Status___1", "Status"}, nil)
	if got := tb.Resolve("Status"); got != "Status" {
		t.Errorf("Resolve = %q, want exact match", got)
	}
}

func TestResolve_FirstSuffixInColumnOrder(t *testing.T) {
	tb := New([]string{"Owner", "Status___zz", "Status___aa"}, nil)
	if got := tb.Resolve("Status"); got != "Status___zz" {
		t.Errorf("Resolve = %q, want first in column order", got)
	}
}

func TestResolve_PrefixNeedsSeparator(t *testing.T) {
	tb := New([]string{"StatusCode"}, nil)
	if tb.Exists("Status") {
		t.Error("StatusCode must not satisfy Status")
	}
}

func TestValue_MissingColumn(t *testing.T) {
	tb := New([]string{"Project"}, []Row{{"Project": "x"}})

	_, err := tb.Value(0, "Status")
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("err = %v, want ErrMissingColumn", err)
	}
	if _, err := tb.Column("Status"); !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("Column err = %v, want ErrMissingColumn", err)
	}

	v, err := tb.Value(0, "Project")
	if err != nil || v != "x" {
		t.Errorf("Value = %q, %v", v, err)
	}
}

func TestFromRecords_DedupesRepeatedHeaders(t *testing.T) {
	tb := FromRecords([][]string{
		{"Task", "Status", "Status", " Project "},
		{"t1", "Open", "legacy", "Ops"},
		{"t2", "Done"},
	})

	cols := tb.Columns()
	want := []string{"Task", "Status", "Status___2", "Project"}
	if len(cols) != len(want) {
		t.Fatalf("columns = %v", cols)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Errorf("columns[%d] = %q, want %q", i, cols[i], want[i])
		}
	}

	if tb.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tb.Len())
	}
	v, _ := tb.Value(1, "Project")
	if v != "" {
		t.Errorf("short row should pad with empty cells, got %q", v)
	}
	v, _ = tb.Value(0, "Status")
	if v != "Open" {
		t.Errorf("Status = %q, want Open", v)
	}
}

func TestFromRecords_DedupeSkipsTakenSuffix(t *testing.T) {
	tb := FromRecords([][]string{
		{"Status", "Status", "Status___2"},
		{"a", "b", "c"},
	})

	cols := tb.Columns()
	want := []string{"Status", "Status___3", "Status___2"}
	for i := range want {
		if i >= len(cols) || cols[i] != want[i] {
			t.Fatalf("columns = %v, want %v", cols, want)
		}
	}
	for i, col := range want {
		v, err := tb.Value(0, col)
		if err != nil || v != string(rune('a'+i)) {
			t.Errorf("%s = %q (%v), want %q", col, v, err, string(rune('a'+i)))
		}
	}
}

func TestFromRecords_HeaderOnlyIsEmpty(t *testing.T) {
	tb := FromRecords([][]string{{"Status"}})
	if tb.Len() != 0 {
		t.Errorf("Len = %d, want 0", tb.Len())
	}
	if tb.Exists("Status") {
		t.Error("header-only input should produce an empty table")
	}
}

func TestNew_CopiesRows(t *testing.T) {
	rows := []Row{{"Status": "Open"}}
	tb := New([]string{"Status"}, rows)
	rows[0]["Status"] = "Done"

	v, _ := tb.Value(0, "Status")
	if v != "Open" {
		t.Errorf("table mutated through caller slice: %q", v)
	}
}

func TestFirst(t *testing.T) {
	tb := New([]string{"Person___x"}, nil)
	name, ok := tb.First("Assigned To", "Person", "assignee")
	if !ok || name != "Person" {
		t.Errorf("First = %q, %v", name, ok)
	}
	if _, ok := tb.First("Nope"); ok {
		t.Error("First should report no match")
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	in := [][]string{{"A", "B"}, {"1", "2"}}
	out := FromRecords(in).Records()
	if len(out) != 2 || out[1][1] != "2" || out[0][0] != "A" {
		t.Errorf("Records = %v", out)
	}
}
