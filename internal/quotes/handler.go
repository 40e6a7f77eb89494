package quotes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buildbook/buildbook/internal/money"
	"github.com/buildbook/buildbook/internal/platform/httpx"
)

type itemRequest struct {
	ItemType    string          `json:"item_type" validate:"required,oneof=labor material equipment subcontractor overhead profit"`
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit" validate:"max=20"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	IsTaxable   bool            `json:"is_taxable"`
	IsOptional  bool            `json:"is_optional"`
	Category    string          `json:"category" validate:"max=100"`
	Notes       string          `json:"notes" validate:"max=1000"`
}

type headerRequest struct {
	ClientID   int64            `json:"client_id" validate:"required,gt=0"`
	ClientName string           `json:"client_name" validate:"required,max=200"`
	ProjectID  *int64           `json:"project_id" validate:"omitempty,gt=0"`
	Title      string           `json:"title" validate:"max=200"`
	ValidUntil string           `json:"valid_until" validate:"omitempty,datetime=2006-01-02"`
	Notes      string           `json:"notes" validate:"max=2000"`
	TaxRate    *decimal.Decimal `json:"tax_rate"`
}

type createRequest struct {
	headerRequest
	Items []itemRequest `json:"items" validate:"dive"`
}

type updateItemsRequest struct {
	TaxRate *decimal.Decimal `json:"tax_rate"`
	Items   []itemRequest    `json:"items" validate:"dive"`
}

type reorderRequest struct {
	ItemIDs []uuid.UUID `json:"item_ids" validate:"required"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft sent accepted declined"`
}

type sectionRequest struct {
	Name  string        `json:"name" validate:"required,max=100"`
	Items []itemRequest `json:"items" validate:"dive"`
}

type templateRequest struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Description string           `json:"description" validate:"max=1000"`
	TaxRate     decimal.Decimal  `json:"tax_rate"`
	Sections    []sectionRequest `json:"sections" validate:"required,min=1,dive"`
}

func toItemInputs(reqs []itemRequest) []ItemInput {
	out := make([]ItemInput, len(reqs))
	for i, r := range reqs {
		out[i] = ItemInput{
			ItemType:    ItemType(r.ItemType),
			Description: r.Description,
			Quantity:    r.Quantity,
			Unit:        r.Unit,
			UnitPrice:   r.UnitPrice,
			IsTaxable:   r.IsTaxable,
			IsOptional:  r.IsOptional,
			Category:    r.Category,
			Notes:       r.Notes,
		}
	}
	return out
}

func (r headerRequest) toHeader(companyID int64) Header {
	h := Header{
		CompanyID:  companyID,
		ClientID:   r.ClientID,
		ClientName: r.ClientName,
		ProjectID:  r.ProjectID,
		Title:      r.Title,
		Notes:      r.Notes,
		TaxRate:    r.TaxRate,
	}
	if r.ValidUntil != "" {
		if t, err := time.Parse(money.DateLayout, r.ValidUntil); err == nil {
			h.ValidUntil = &t
		}
	}
	return h
}

// Handler exposes quote and template endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers quote routes under /companies/{companyID}/quotes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Get("/{id}/groups", h.groups)
	r.Put("/{id}/items", h.updateItems)
	r.Put("/{id}/order", h.reorder)
	r.Put("/{id}/status", h.setStatus)

	r.Route("/templates", func(r chi.Router) {
		r.Get("/", h.listTemplates)
		r.Post("/", h.createTemplate)
		r.Get("/{templateID}", h.getTemplate)
		r.Post("/{templateID}/quotes", h.fromTemplate)
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Warn(msg, slog.Any("error", err), slog.String("path", r.URL.Path))
	httpx.RespondError(w, err)
}

func (h *Handler) ids(r *http.Request, name string) (int64, int64, error) {
	companyID, err := httpx.PathID(r, "companyID")
	if err != nil {
		return 0, 0, err
	}
	id, err := httpx.PathID(r, name)
	if err != nil {
		return 0, 0, err
	}
	return companyID, id, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.PathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	qs, err := h.service.List(r.Context(), companyID)
	if err != nil {
		h.fail(w, r, "list quotes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"quotes": qs})
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
	q, err := h.service.Create(r.Context(), req.toHeader(companyID), toItemInputs(req.Items))
	if err != nil {
		h.fail(w, r, "create quote", err)
		return
	}
	h.logger.Info("quote created", slog.Int64("quote_id", q.ID), slog.Int64("company_id", companyID))
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.ids(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Get(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, r, "get quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) groups(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.ids(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Get(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, r, "group quote items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"groups":         Group(q.Items),
		"subtotal":       q.Subtotal,
		"tax_amount":     q.TaxAmount,
		"total_amount":   q.TotalAmount,
		"optional_total": q.OptionalTotal,
	})
}

func (h *Handler) updateItems(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.ids(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateItemsRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.UpdateItems(r.Context(), companyID, id, req.TaxRate, toItemInputs(req.Items))
	if err != nil {
		h.fail(w, r, "update quote items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) reorder(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.ids(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reorderRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Reorder(r.Context(), companyID, id, req.ItemIDs)
	if err != nil {
		h.fail(w, r, "reorder quote items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.ids(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req statusRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.SetStatus(r.Context(), companyID, id, Status(req.Status))
	if err != nil {
		h.fail(w, r, "set quote status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.PathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ts, err := h.service.ListTemplates(r.Context(), companyID)
	if err != nil {
		h.fail(w, r, "list quote templates", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"templates": ts})
}

func (h *Handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.PathID(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req templateRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	t := Template{CompanyID: companyID, Name: req.Name, Description: req.Description, TaxRate: req.TaxRate}
	for _, sec := range req.Sections {
		section := TemplateSection{Name: sec.Name}
		for _, in := range toItemInputs(sec.Items) {
			section.Items = append(section.Items, TemplateItem{
				ItemType:    in.ItemType,
				Description: in.Description,
				Quantity:    in.Quantity,
				Unit:        in.Unit,
				UnitPrice:   in.UnitPrice,
				IsTaxable:   in.IsTaxable,
				IsOptional:  in.IsOptional,
				Category:    in.Category,
				Notes:       in.Notes,
			})
		}
		t.Sections = append(t.Sections, section)
	}
	created, err := h.service.CreateTemplate(r.Context(), t)
	if err != nil {
		h.fail(w, r, "create quote template", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.ids(r, "templateID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.GetTemplate(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, r, "get quote template", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) fromTemplate(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.ids(r, "templateID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req headerRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.CreateFromTemplate(r.Context(), id, req.toHeader(companyID))
	if err != nil {
		h.fail(w, r, "create quote from template", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}
