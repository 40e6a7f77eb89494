package expenses

import (
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

type createRequest struct {
	ProjectID        *int64           `json:"project_id" validate:"omitempty,gt=0"`
	Vendor           string           `json:"vendor" validate:"required,max=200"`
	Description      string           `json:"description" validate:"max=1000"`
	Amount           decimal.Decimal  `json:"amount"`
	Category         string           `json:"category" validate:"required"`
	PaymentMethod    string           `json:"payment_method" validate:"omitempty,oneof=cash check credit_card debit_card ach wire other"`
	PaymentStatus    string           `json:"payment_status" validate:"omitempty,oneof=pending paid scheduled cancelled"`
	ExpenseDate      string           `json:"expense_date" validate:"omitempty,datetime=2006-01-02"`
	BillableToClient bool             `json:"billable_to_client"`
	MarkupPercentage *decimal.Decimal `json:"markup_percentage"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type invoicedRequest struct {
	InvoiceID  int64   `json:"invoice_id" validate:"required,gt=0"`
	ExpenseIDs []int64 `json:"expense_ids" validate:"required,min=1,dive,gt=0"`
}

// Handler exposes expense endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers expense routes under /companies/{companyID}/expenses.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/summary", h.summary)
	r.Post("/invoiced", h.markInvoiced)
	r.Get("/{id}", h.get)
	r.Put("/{id}/status", h.setStatus)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Warn(msg, slog.Any("error", err), slog.String("path", r.URL.Path))
	httpx.RespondError(w, err)
}

func (h *Handler) filter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	f := ListFilter{Status: PaymentStatus(q.Get("status"))}
	errs := httpx.FieldErrors{}
	if raw := q.Get("project_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs["project_id"] = "must be an integer"
		}
		f.ProjectID = id
	}
	if raw := q.Get("billable"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errs["billable"] = "must be true or false"
		}
		f.Billable = &b
	}
	f.Uninvoiced = q.Get("uninvoiced") == "true"
	var err error
	if f.From, err = httpx.QueryDate(r, "from", h.service.loc); err != nil {
		errs["from"] = "must be a date (YYYY-MM-DD)"
	}
	if f.To, err = httpx.QueryDate(r, "to", h.service.loc); err != nil {
		errs["to"] = "must be a date (YYYY-MM-DD)"
	}
	if len(errs) > 0 {
		return ListFilter{}, errs
	}
	return f, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.PathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	f, err := h.filter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.List(r.Context(), companyID, f)
	if err != nil {
		h.fail(w, r, "list expenses", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"expenses": rows})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.PathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	f, err := h.filter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sum, err := h.service.Summary(r.Context(), companyID, f)
	if err != nil {
		h.fail(w, r, "summarize expenses", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.PathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var date time.Time
	if req.ExpenseDate != "" {
		date, _ = time.ParseInLocation(money.DateLayout, req.ExpenseDate, h.service.loc)
	}
	e, err := h.service.Create(r.Context(), CreateInput{
		CompanyID:        companyID,
		ProjectID:        req.ProjectID,
		Vendor:           req.Vendor,
		Description:      req.Description,
		Amount:           req.Amount,
		Category:         Category(req.Category),
		PaymentMethod:    PaymentMethod(req.PaymentMethod),
		PaymentStatus:    PaymentStatus(req.PaymentStatus),
		ExpenseDate:      date,
		BillableToClient: req.BillableToClient,
		MarkupPercentage: req.MarkupPercentage,
	})
	if err != nil {
		h.fail(w, r, "create expense", err)
		return
	}
	h.logger.Info("expense created", slog.Int64("expense_id", e.ID), slog.Int64("company_id", companyID))
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.PathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.service.Get(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, r, "get expense", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.PathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req statusRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.service.SetStatus(r.Context(), companyID, id, PaymentStatus(req.Status))
	if err != nil {
		h.fail(w, r, "set expense status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) markInvoiced(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.PathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req invoicedRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.MarkInvoiced(r.Context(), companyID, req.InvoiceID, req.ExpenseIDs); err != nil {
		h.fail(w, r, "mark expenses invoiced", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
