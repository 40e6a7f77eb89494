package quotes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buildbook/buildbook/internal/money"
	"github.com/buildbook/buildbook/internal/pricing"
	"github.com/buildbook/buildbook/internal/shared"
)

// Price recomputes every line total and the quote totals. Optional items
// are priced but kept out of the subtotal, tax and total.
func Price(q Quote) (Quote, error) {
	out := q
	out.Items = append([]LineItem(nil), q.Items...)
	lines := make([]pricing.Line, len(out.Items))
	for i, it := range out.Items {
		lines[i] = pricing.Line{Quantity: it.Quantity, Rate: it.UnitPrice, Optional: it.IsOptional}
	}
	summary, err := pricing.Summarize(lines, q.TaxRate)
	if err != nil {
		return Quote{}, err
	}
	for i := range out.Items {
		out.Items[i].TotalPrice = summary.Amounts[i]
	}
	out.Subtotal = summary.Subtotal
	out.TaxAmount = summary.TaxAmount
	out.TotalAmount = summary.Total
	out.OptionalTotal = summary.OptionalTotal
	return out, nil
}

// BuildItems turns user input into lines with fresh ids and contiguous sort order.
func BuildItems(inputs []ItemInput) ([]LineItem, error) {
	items := make([]LineItem, len(inputs))
	for i, in := range inputs {
		if !in.ItemType.Valid() {
			return nil, fmt.Errorf("%w: line item %d: unknown item type %q", shared.ErrValidation, i+1, in.ItemType)
		}
		if err := pricing.ValidateLine(i, in.Quantity, in.UnitPrice); err != nil {
			return nil, err
		}
		items[i] = LineItem{
			ID:          uuid.New(),
			ItemType:    in.ItemType,
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			Unit:        in.Unit,
			UnitPrice:   in.UnitPrice,
			TotalPrice:  pricing.Amount(in.Quantity, in.UnitPrice),
			IsTaxable:   in.IsTaxable,
			IsOptional:  in.IsOptional,
			Category:    strings.TrimSpace(in.Category),
			Notes:       in.Notes,
			SortOrder:   i,
		}
	}
	return items, nil
}

// Group partitions items by category in first-seen order. Items keep their
// sort order within a group.
func Group(items []LineItem) []CategoryGroup {
	ordered := append([]LineItem(nil), items...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].SortOrder < ordered[j].SortOrder })

	var groups []CategoryGroup
	index := map[string]int{}
	for _, it := range ordered {
		name := it.Category
		if strings.TrimSpace(name) == "" {
			name = Uncategorized
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, CategoryGroup{Category: name, Subtotal: decimal.Zero, OptionalTotal: decimal.Zero})
		}
		g := &groups[i]
		g.Items = append(g.Items, it)
		if it.IsOptional {
			g.OptionalTotal = g.OptionalTotal.Add(it.TotalPrice)
		} else {
			g.Subtotal = g.Subtotal.Add(it.TotalPrice)
		}
	}
	for i := range groups {
		groups[i].Subtotal = money.Round(groups[i].Subtotal)
		groups[i].OptionalTotal = money.Round(groups[i].OptionalTotal)
	}
	return groups
}

// Instantiate builds a priced draft quote from a template. Every item is
// copied with a new id; the template is not modified.
func Instantiate(t Template, h Header) (Quote, error) {
	sections := append([]TemplateSection(nil), t.Sections...)
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].SortOrder < sections[j].SortOrder })

	var items []LineItem
	for _, sec := range sections {
		for _, ti := range sec.Items {
			category := ti.Category
			if strings.TrimSpace(category) == "" {
				category = sec.Name
			}
			items = append(items, LineItem{
				ID:          uuid.New(),
				ItemType:    ti.ItemType,
				Description: ti.Description,
				Quantity:    ti.Quantity,
				Unit:        ti.Unit,
				UnitPrice:   ti.UnitPrice,
				IsTaxable:   ti.IsTaxable,
				IsOptional:  ti.IsOptional,
				Category:    category,
				Notes:       ti.Notes,
				SortOrder:   len(items),
			})
		}
	}
	title := strings.TrimSpace(h.Title)
	if title == "" {
		title = t.Name
	}
	taxRate := t.TaxRate
	if h.TaxRate != nil {
		taxRate = *h.TaxRate
	}
	templateID := t.ID
	return Price(Quote{
		CompanyID:  h.CompanyID,
		ClientID:   h.ClientID,
		ClientName: h.ClientName,
		ProjectID:  h.ProjectID,
		TemplateID: &templateID,
		Title:      title,
		Status:     StatusDraft,
		ValidUntil: h.ValidUntil,
		Notes:      h.Notes,
		TaxRate:    taxRate,
		Items:      items,
	})
}

// Reorder renumbers items contiguously from 0 following orderedIDs, which
// must name every item exactly once.
func Reorder(items []LineItem, orderedIDs []uuid.UUID) ([]LineItem, error) {
	if len(orderedIDs) != len(items) {
		return nil, fmt.Errorf("%w: reorder lists %d items, quote has %d", shared.ErrValidation, len(orderedIDs), len(items))
	}
	byID := make(map[uuid.UUID]LineItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	out := make([]LineItem, len(orderedIDs))
	for i, id := range orderedIDs {
		it, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown or repeated line item %s", shared.ErrValidation, id)
		}
		delete(byID, id)
		it.SortOrder = i
		out[i] = it
	}
	return out, nil
}

// ValidateTemplate checks a template before it is stored.
func ValidateTemplate(t Template) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: template name required", shared.ErrValidation)
	}
	if err := money.ValidatePercentage("tax_rate", t.TaxRate); err != nil {
		return err
	}
	n := 0
	for _, sec := range t.Sections {
		for _, it := range sec.Items {
			if !it.ItemType.Valid() {
				return fmt.Errorf("%w: section %q: unknown item type %q", shared.ErrValidation, sec.Name, it.ItemType)
			}
			if err := pricing.ValidateLine(n, it.Quantity, it.UnitPrice); err != nil {
				return err
			}
			n++
		}
	}
	return nil
}
