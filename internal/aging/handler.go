package aging

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/buildbook/buildbook/internal/money"
	"github.com/buildbook/buildbook/internal/platform/httpx"
)

// Handler exposes the aging report.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes under /companies/{companyID}/aging.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.report)
	r.Get("/export.csv", h.exportCSV)
}

func (h *Handler) load(r *http.Request) (int64, Report, error) {
	companyID, err := httpx.PathID(r, "companyID")
	if err != nil {
		return 0, Report{}, err
	}
	asOf, err := httpx.QueryDate(r, "as_of", h.service.loc)
	if err != nil {
		return 0, Report{}, err
	}
	report, err := h.service.Report(r.Context(), companyID, asOf)
	return companyID, report, err
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	companyID, report, err := h.load(r)
	if err != nil {
		h.logger.Error("aging report", slog.Any("error", err), slog.Int64("company_id", companyID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	companyID, report, err := h.load(r)
	if err != nil {
		h.logger.Error("aging export", slog.Any("error", err), slog.Int64("company_id", companyID))
		httpx.RespondError(w, err)
		return
	}
	write, kind := WriteClientsCSV, "clients"
	if r.URL.Query().Get("view") == "invoices" {
		write, kind = WriteInvoicesCSV, "invoices"
	}
	var buf bytes.Buffer
	if err := write(&buf, report); err != nil {
		h.logger.Error("aging export", slog.Any("error", err), slog.Int64("company_id", companyID))
		httpx.RespondError(w, err)
		return
	}
	filename := fmt.Sprintf("aging-%s-%s.csv", kind, report.AsOf.Format(money.DateLayout))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
