package http

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sitepass/subscription-whitelist/internal/domain/export"
	"github.com/sitepass/subscription-whitelist/internal/handler/http/response"
)

type ExportHandler interface {
	Export(w http.ResponseWriter, r *http.Request)
}

type exportHandlerImpl struct {
	exportService export.ExportService
	clock         func() time.Time
}

func NewExportHandler(exportService export.ExportService, clock func() time.Time) ExportHandler {
	if clock == nil {
		clock = time.Now
	}
	return &exportHandlerImpl{
		exportService: exportService,
		clock:         clock,
	}
}

// Export streams a table as CSV
// GET /api/v1/admin/export/{type} - Admin
func (h *exportHandlerImpl) Export(w http.ResponseWriter, r *http.Request) {
	t := export.Type(chi.URLParam(r, "type"))

	rows, err := h.exportService.Rows(r.Context(), t)
	if err != nil {
		response.HandleError(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s-%s.csv", t, h.clock().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		slog.ErrorContext(r.Context(), "export write failed", "type", t, "error", err)
	}
}
