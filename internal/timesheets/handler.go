package timesheets

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/buildbook/buildbook/internal/money"
	"github.com/buildbook/buildbook/internal/platform/httpx"
)

type entryRequest struct {
	ProjectID  int64           `json:"project_id" validate:"required,gt=0"`
	WorkerName string          `json:"worker_name" validate:"required,max=200"`
	WorkDate   string          `json:"work_date" validate:"required,datetime=2006-01-02"`
	Hours      decimal.Decimal `json:"hours"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	Billable   bool            `json:"billable"`
	Notes      string          `json:"notes" validate:"max=1000"`
}

// Handler exposes timesheet endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers routes under /companies/{companyID}/timesheets.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.log)
	r.Get("/report", h.report)
}

func (h *Handler) log(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.PathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req entryRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, _ := time.ParseInLocation(money.DateLayout, req.WorkDate, h.service.loc)
	e, err := h.service.Log(r.Context(), Entry{
		CompanyID:  companyID,
		ProjectID:  req.ProjectID,
		WorkerName: req.WorkerName,
		WorkDate:   date,
		Hours:      req.Hours,
		HourlyRate: req.HourlyRate,
		Billable:   req.Billable,
		Notes:      req.Notes,
	})
	if err != nil {
		h.logger.Warn("log timesheet entry", slog.Any("error", err), slog.Int64("company_id", companyID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

// report serves JSON, or CSV when format=csv.
func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.PathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	f := Filter{CompanyID: companyID}
	if f.From, err = httpx.QueryDate(r, "from", h.service.loc); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if f.To, err = httpx.QueryDate(r, "to", h.service.loc); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		if f.ProjectID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			httpx.RespondError(w, httpx.FieldErrors{"project_id": "must be an integer"})
			return
		}
	}
	report, err := h.service.Report(r.Context(), f)
	if err != nil {
		h.logger.Error("timesheet report", slog.Any("error", err), slog.Int64("company_id", companyID))
		httpx.RespondError(w, err)
		return
	}
	if r.URL.Query().Get("format") != "csv" {
		httpx.JSON(w, http.StatusOK, report)
		return
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, report); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "timesheets-"+rangeLabel(f)+".csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func rangeLabel(f Filter) string {
	label := func(t time.Time) string {
		if t.IsZero() {
			return "all"
		}
		return t.Format(money.DateLayout)
	}
	return label(f.From) + "_" + label(f.To)
}
