package invoices

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/buildbook/buildbook/internal/platform/httpx"
)

// Handler exposes invoice endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers invoice routes under /companies/{companyID}/invoices.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}/lines", h.updateLines)
	r.Delete("/{id}", h.delete)

	r.Post("/{id}/send", h.send)
	r.Post("/{id}/viewed", h.markViewed)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/void", h.void)
	r.Post("/{id}/payments", h.recordPayment)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Warn(msg, slog.Any("error", err), slog.String("path", r.URL.Path))
	httpx.RespondError(w, err)
}

func (h *Handler) ids(r *http.Request) (int64, int64, error) {
	companyID, err := httpx.PathID(r, "companyID")
	if err != nil {
		return 0, 0, err
	}
	id, err := httpx.PathID(r, "id")
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
	filter := ListFilter{Status: Status(r.URL.Query().Get("status")), Limit: 200}
	if raw := r.URL.Query().Get("client_id"); raw != "" {
		filter.ClientID, _ = strconv.ParseInt(raw, 10, 64)
	}
	invs, err := h.service.List(r.Context(), companyID, filter)
	if err != nil {
		h.fail(w, r, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invs})
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
	inv, err := h.service.Create(r.Context(), CreateInput{
		CompanyID:    companyID,
		ClientID:     req.ClientID,
		ClientName:   req.ClientName,
		ClientEmail:  req.ClientEmail,
		ProjectID:    req.ProjectID,
		IssueDate:    parseDate(req.IssueDate, h.service.loc),
		DueDate:      parseDate(req.DueDate, h.service.loc),
		TaxRate:      req.TaxRate,
		PaymentTerms: req.PaymentTerms,
		Notes:        req.Notes,
		Lines:        toLineInputs(req.Lines),
	})
	if err != nil {
		h.fail(w, r, "create invoice", err)
		return
	}
	h.logger.Info("invoice created", slog.Int64("invoice_id", inv.ID), slog.String("number", inv.Number))
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.ids(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Get(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, r, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) updateLines(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.ids(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateLinesRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.UpdateLines(r.Context(), companyID, id, req.TaxRate, toLineInputs(req.Lines))
	if err != nil {
		h.fail(w, r, "update invoice lines", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.ids(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), companyID, id); err != nil {
		h.fail(w, r, "delete invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, "send invoice", h.service.Send)
}

func (h *Handler) markViewed(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, "mark invoice viewed", h.service.MarkViewed)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, "cancel invoice", h.service.Cancel)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, "void invoice", h.service.Void)
}

type transitionFunc func(ctx context.Context, companyID, id int64) (Invoice, error)

func (h *Handler) runTransition(w http.ResponseWriter, r *http.Request, msg string, fn transitionFunc) {
	companyID, id, err := h.ids(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := fn(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, r, msg, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	companyID, id, err := h.ids(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req paymentRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = r.Header.Get("Idempotency-Key")
	}
	inv, err := h.service.RecordPayment(r.Context(), companyID, id, PaymentInput{
		Amount:         req.Amount,
		PaidOn:         parseDate(req.PaidOn, h.service.loc),
		Method:         req.Method,
		Reference:      req.Reference,
		IdempotencyKey: key,
	})
	if err != nil {
		h.fail(w, r, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}
