package quotes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/buildbook/buildbook/internal/shared"
)

type memoryRepo struct {
	quotes     map[int64]Quote
	templates  map[int64]Template
	nextQuote  int64
	nextTpl    int64
	failInsert error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{quotes: map[int64]Quote{}, templates: map[int64]Template{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	quotes := make(map[int64]Quote, len(m.quotes))
	for k, v := range m.quotes {
		quotes[k] = v
	}
	templates := make(map[int64]Template, len(m.templates))
	for k, v := range m.templates {
		templates[k] = v
	}
	if err := fn(ctx, m); err != nil {
		m.quotes, m.templates = quotes, templates
		return err
	}
	return nil
}

func (m *memoryRepo) GetQuote(_ context.Context, companyID, id int64) (Quote, error) {
	q, ok := m.quotes[id]
	if !ok || q.CompanyID != companyID {
		return Quote{}, shared.ErrNotFound
	}
	q.Items = append([]LineItem(nil), q.Items...)
	return q, nil
}

func (m *memoryRepo) ListQuotes(_ context.Context, companyID int64) ([]Quote, error) {
	var out []Quote
	for id := int64(1); id <= m.nextQuote; id++ {
		if q, ok := m.quotes[id]; ok && q.CompanyID == companyID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetTemplate(_ context.Context, companyID, id int64) (Template, error) {
	t, ok := m.templates[id]
	if !ok || t.CompanyID != companyID {
		return Template{}, shared.ErrNotFound
	}
	return t, nil
}

func (m *memoryRepo) ListTemplates(_ context.Context, companyID int64) ([]Template, error) {
	var out []Template
	for _, t := range m.templates {
		if t.CompanyID == companyID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryRepo) InsertQuote(_ context.Context, q Quote) (int64, error) {
	if m.failInsert != nil {
		return 0, m.failInsert
	}
	m.nextQuote++
	q.ID = m.nextQuote
	m.quotes[q.ID] = q
	return q.ID, nil
}

func (m *memoryRepo) UpdateQuote(_ context.Context, q Quote) error {
	m.quotes[q.ID] = q
	return nil
}

func (m *memoryRepo) ReplaceItems(_ context.Context, quoteID int64, items []LineItem) error {
	q := m.quotes[quoteID]
	q.Items = append([]LineItem(nil), items...)
	m.quotes[quoteID] = q
	return nil
}

func (m *memoryRepo) GetQuoteForUpdate(ctx context.Context, companyID, id int64) (Quote, error) {
	return m.GetQuote(ctx, companyID, id)
}

func (m *memoryRepo) IncrementTemplateUse(_ context.Context, _ int64, id int64) error {
	t := m.templates[id]
	t.UseCount++
	m.templates[id] = t
	return nil
}

func (m *memoryRepo) InsertTemplate(_ context.Context, t Template) (int64, error) {
	m.nextTpl++
	t.ID = m.nextTpl
	m.templates[t.ID] = t
	return t.ID, nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.WithNow(func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) })
	return svc, repo
}

func TestCreateFromTemplateCountsUseOnce(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	tpl := sampleTemplate()
	tpl.ID = 0
	tpl.CompanyID = 1
	created, err := svc.CreateTemplate(ctx, tpl)
	require.NoError(t, err)
	require.Zero(t, created.UseCount)

	q, err := svc.CreateFromTemplate(ctx, created.ID, Header{CompanyID: 1, ClientID: 3, ClientName: "Oak St", Title: "Guest bath"})
	require.NoError(t, err)
	require.Equal(t, "Guest bath", q.Title)
	require.Len(t, q.Items, 3)
	require.Equal(t, 1, repo.templates[created.ID].UseCount)
	require.Len(t, repo.quotes[q.ID].Items, 3)

	_, err = svc.Get(ctx, 1, q.ID)
	require.NoError(t, err)
	require.Equal(t, 1, repo.templates[created.ID].UseCount, "reading does not count as a use")

	repo.failInsert = errors.New("disk full")
	_, err = svc.CreateFromTemplate(ctx, created.ID, Header{CompanyID: 1, ClientID: 3})
	require.Error(t, err)
	require.Equal(t, 1, repo.templates[created.ID].UseCount)

	_, err = svc.CreateFromTemplate(ctx, created.ID, Header{CompanyID: 2, ClientID: 3})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServiceUpdateAndReorder(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	q, err := svc.Create(ctx, Header{CompanyID: 1, ClientID: 2, ClientName: "Pine Ave", Title: "Deck"}, []ItemInput{
		{ItemType: ItemMaterial, Description: "Boards", Quantity: d("30"), UnitPrice: d("8"), Category: "Materials"},
		{ItemType: ItemLabor, Description: "Install", Quantity: d("16"), UnitPrice: d("55"), Category: "Labor"},
	})
	require.NoError(t, err)
	require.Equal(t, "1120.00", q.TotalAmount.StringFixed(2))

	reordered, err := svc.Reorder(ctx, 1, q.ID, []uuid.UUID{q.Items[1].ID, q.Items[0].ID})
	require.NoError(t, err)
	require.Equal(t, "Install", reordered.Items[0].Description)
	require.Equal(t, 0, reordered.Items[0].SortOrder)
	require.Equal(t, "1120.00", reordered.TotalAmount.StringFixed(2))

	_, err = svc.Reorder(ctx, 1, q.ID, []uuid.UUID{q.Items[1].ID})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Header{CompanyID: 1, ClientID: 2, Title: "Bad"}, []ItemInput{{ItemType: "magic", Quantity: d("1"), UnitPrice: d("1")}})
	require.ErrorIs(t, err, shared.ErrValidation)

	sent, err := svc.SetStatus(ctx, 1, q.ID, StatusSent)
	require.NoError(t, err)
	require.Equal(t, StatusSent, sent.Status)
	_, err = svc.UpdateItems(ctx, 1, q.ID, nil, nil)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	_, err = svc.SetStatus(ctx, 1, q.ID, StatusSent)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestHandlerTemplateFlow(t *testing.T) {
	svc, repo := newTestService()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	router := chi.NewRouter()
	router.Route("/companies/{companyID}/quotes", h.MountRoutes)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	rr := do(http.MethodPost, "/companies/1/quotes/templates", `{
		"name": "Kitchen refresh", "tax_rate": "5",
		"sections": [{"name": "Cabinets", "items": [
			{"item_type": "material", "description": "Doors", "quantity": "12", "unit_price": "80"},
			{"item_type": "labor", "description": "Soft close", "quantity": "1", "unit_price": "150", "is_optional": true}
		]}]
	}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(http.MethodPost, "/companies/1/quotes/templates/1/quotes", `{"client_id": 5, "client_name": "Elm"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"total_amount":"1008"`)
	require.Contains(t, rr.Body.String(), `"optional_total":"150"`)
	require.Equal(t, 1, repo.templates[1].UseCount)

	rr = do(http.MethodGet, "/companies/1/quotes/1/groups", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"category":"Cabinets"`)

	rr = do(http.MethodPost, "/companies/1/quotes/templates", `{"name": "Empty", "sections": []}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(http.MethodGet, "/companies/1/quotes/templates/9", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}
