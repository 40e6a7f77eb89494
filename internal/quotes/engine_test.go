package quotes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildbook/buildbook/internal/shared"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func item(category string, qty, price string, optional bool, order int) LineItem {
	return LineItem{
		ID:         uuid.New(),
		ItemType:   ItemMaterial,
		Quantity:   d(qty),
		UnitPrice:  d(price),
		IsOptional: optional,
		Category:   category,
		SortOrder:  order,
	}
}

func TestPriceExcludesOptionalItems(t *testing.T) {
	q, err := Price(Quote{
		TaxRate: d("8"),
		Items: []LineItem{
			item("Framing", "10", "50", false, 0),
			item("Upgrades", "1", "1000", true, 1),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "500.00", q.Subtotal.StringFixed(2))
	assert.Equal(t, "40.00", q.TaxAmount.StringFixed(2))
	assert.Equal(t, "540.00", q.TotalAmount.StringFixed(2))
	assert.Equal(t, "1000.00", q.OptionalTotal.StringFixed(2))
	assert.Equal(t, "1000.00", q.Items[1].TotalPrice.StringFixed(2))

	q.Items[1].IsOptional = false
	toggled, err := Price(q)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", toggled.Items[1].TotalPrice.StringFixed(2))
	assert.Equal(t, "1500.00", toggled.Subtotal.StringFixed(2))
	assert.Equal(t, "1620.00", toggled.TotalAmount.StringFixed(2))
	assert.True(t, toggled.OptionalTotal.IsZero())
}

func TestPriceKeepsZeroQuantityAndRejectsNegatives(t *testing.T) {
	q, err := Price(Quote{Items: []LineItem{item("", "0", "75", false, 0)}})
	require.NoError(t, err)
	require.Len(t, q.Items, 1)
	assert.True(t, q.Items[0].TotalPrice.IsZero())

	_, err = Price(Quote{Items: []LineItem{item("", "1", "5", false, 0), item("", "-2", "5", false, 1)}})
	var lineErr *shared.InvalidLineItemError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, 1, lineErr.Index)

	_, err = Price(Quote{TaxRate: d("101")})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestGroupUsesFirstSeenOrder(t *testing.T) {
	items := []LineItem{
		item("Roofing", "1", "100", false, 2),
		item("Demolition", "2", "10", false, 0),
		item("", "1", "5", false, 1),
		item("Roofing", "1", "40", true, 3),
		item("Demolition", "1", "1", false, 4),
	}
	groups := Group(items)
	require.Len(t, groups, 3)
	assert.Equal(t, "Demolition", groups[0].Category)
	assert.Equal(t, Uncategorized, groups[1].Category)
	assert.Equal(t, "Roofing", groups[2].Category)

	require.Len(t, groups[0].Items, 2)
	assert.Equal(t, 0, groups[0].Items[0].SortOrder)
	assert.Equal(t, 4, groups[0].Items[1].SortOrder)

	priced, err := Price(Quote{Items: items})
	require.NoError(t, err)
	groups = Group(priced.Items)
	assert.Equal(t, "21.00", groups[0].Subtotal.StringFixed(2))
	assert.Equal(t, "100.00", groups[2].Subtotal.StringFixed(2))
	assert.Equal(t, "40.00", groups[2].OptionalTotal.StringFixed(2))
}

func sampleTemplate() Template {
	return Template{
		ID:      4,
		Name:    "Bathroom remodel",
		TaxRate: d("7.5"),
		Sections: []TemplateSection{
			{ID: uuid.New(), Name: "Finishes", SortOrder: 1, Items: []TemplateItem{
				{ID: uuid.New(), ItemType: ItemMaterial, Description: "Tile", Quantity: d("40"), UnitPrice: d("12.50")},
				{ID: uuid.New(), ItemType: ItemMaterial, Description: "Heated floor", Quantity: d("1"), UnitPrice: d("900"), IsOptional: true, Category: "Upgrades"},
			}},
			{ID: uuid.New(), Name: "Demo", SortOrder: 0, Items: []TemplateItem{
				{ID: uuid.New(), ItemType: ItemLabor, Description: "Tear out", Quantity: d("8"), UnitPrice: d("65")},
			}},
		},
	}
}

func TestInstantiateDeepCopies(t *testing.T) {
	tpl := sampleTemplate()
	templateIDs := map[uuid.UUID]bool{}
	for _, sec := range tpl.Sections {
		for _, it := range sec.Items {
			templateIDs[it.ID] = true
		}
	}

	q, err := Instantiate(tpl, Header{CompanyID: 1, ClientID: 2, ClientName: "Oak St"})
	require.NoError(t, err)
	require.Len(t, q.Items, 3)
	assert.Equal(t, "Bathroom remodel", q.Title)
	assert.Equal(t, StatusDraft, q.Status)
	require.NotNil(t, q.TemplateID)
	assert.Equal(t, int64(4), *q.TemplateID)

	assert.Equal(t, "Tear out", q.Items[0].Description)
	assert.Equal(t, "Demo", q.Items[0].Category)
	assert.Equal(t, "Finishes", q.Items[1].Category)
	assert.Equal(t, "Upgrades", q.Items[2].Category)
	seen := map[uuid.UUID]bool{}
	for i, it := range q.Items {
		assert.Equal(t, i, it.SortOrder)
		assert.False(t, templateIDs[it.ID], "item id reused from template")
		assert.False(t, seen[it.ID])
		seen[it.ID] = true
	}

	assert.Equal(t, "1020.00", q.Subtotal.StringFixed(2))
	assert.Equal(t, "76.50", q.TaxAmount.StringFixed(2))
	assert.Equal(t, "1096.50", q.TotalAmount.StringFixed(2))
	assert.Equal(t, "900.00", q.OptionalTotal.StringFixed(2))

	q.Items[0].Quantity = d("99")
	assert.Equal(t, "8", tpl.Sections[1].Items[0].Quantity.String())
	assert.Equal(t, "Finishes", tpl.Sections[0].Name)
	assert.Empty(t, tpl.Sections[0].Items[0].Category)
}

func TestReorder(t *testing.T) {
	a := item("Roofing", "1", "100", false, 0)
	b := item("Demolition", "2", "10", false, 1)
	c := item("", "3", "5", true, 2)
	priced, err := Price(Quote{Items: []LineItem{a, b, c}})
	require.NoError(t, err)

	out, err := Reorder(priced.Items, []uuid.UUID{c.ID, a.ID, b.ID})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{c.ID, a.ID, b.ID}, []uuid.UUID{out[0].ID, out[1].ID, out[2].ID})
	for i, it := range out {
		assert.Equal(t, i, it.SortOrder)
	}
	assert.Equal(t, "15.00", out[0].TotalPrice.StringFixed(2))
	assert.Equal(t, "Roofing", out[1].Category)

	_, err = Reorder(priced.Items, []uuid.UUID{a.ID, b.ID})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = Reorder(priced.Items, []uuid.UUID{a.ID, a.ID, b.ID})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = Reorder(priced.Items, []uuid.UUID{a.ID, b.ID, uuid.New()})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, 0, priced.Items[0].SortOrder)
}
