package api

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strings"
)

// ExportHandler streams the current snapshot as CSV.
type ExportHandler struct {
	svc Dashboard
}

// NewExportHandler creates an export handler over svc.
func NewExportHandler(svc Dashboard) *ExportHandler {
	return &ExportHandler{svc: svc}
}

// ServeCSV handles GET /api/export.csv. The snapshot checksum is the ETag, so
// clients polling with If-None-Match get 304 until the sheet changes.
func (h *ExportHandler) ServeCSV(w http.ResponseWriter, r *http.Request) {
	meta, records, err := h.svc.Export(r.Context())
	if err != nil {
		writeError(w, "export", err)
		return
	}

	etag := `"` + meta.Checksum + `"`
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Trim(match, `"`) == meta.Checksum {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	filename := "tasks-" + meta.FetchedAt.UTC().Format("20060102-150405") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		slog.Error("export write failed", slog.String("error", err.Error()))
	}
}
