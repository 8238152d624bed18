package source

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/option"
)

func testSheets(t *testing.T, handler http.HandlerFunc) *Sheets {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	s, err := NewSheets(context.Background(), SheetsOptions{SpreadsheetID: "sheet-1"}, logger,
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewSheets: %v", err)
	}
	return s
}

func TestSheets_FetchWorksheet(t *testing.T) {
	s := testSheets(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/values/") || !strings.Contains(r.URL.Path, DefaultWorksheet) {
			http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"range":"Otter_Tasks!A1:C3","majorDimension":"ROWS",
			"values":[["Status","Project","Count"],["Open","Ops",3],["Done"]]}`)
	})

	records, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %v", records)
	}
	if records[1][2] != "3" {
		t.Errorf("numeric cell = %q, want \"3\"", records[1][2])
	}
	if len(records[2]) != 1 || records[2][0] != "Done" {
		t.Errorf("ragged row = %v", records[2])
	}
}

func TestSheets_FallsBackToFirstSheet(t *testing.T) {
	s := testSheets(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "/values/") && strings.Contains(r.URL.Path, "Sheet1"):
			_, _ = io.WriteString(w, `{"values":[["Status"],["Working"]]}`)
		case strings.Contains(r.URL.Path, "/values/"):
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"code":400,"message":"Unable to parse range"}}`)
		default:
			_, _ = io.WriteString(w, `{"sheets":[{"properties":{"title":"Sheet1"}}]}`)
		}
	})

	records, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 2 || records[1][0] != "Working" {
		t.Errorf("records = %v", records)
	}
}

func TestSheets_FetchFailure(t *testing.T) {
	s := testSheets(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"message":"denied"}}`)
	})
	if _, err := s.Fetch(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestNewSheets_RequiresID(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if _, err := NewSheets(context.Background(), SheetsOptions{}, logger); err == nil {
		t.Error("expected error for empty spreadsheet id")
	}
}

func TestA1Sheet(t *testing.T) {
	if got := a1Sheet("Bob's Tasks"); got != "'Bob''s Tasks'" {
		t.Errorf("a1Sheet = %q", got)
	}
}
