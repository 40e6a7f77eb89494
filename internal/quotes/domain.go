// Package quotes prices estimates, groups their line items by category and
// instantiates new quotes from reusable templates.
package quotes

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemType classifies a quote line.
type ItemType string

const (
	ItemLabor         ItemType = "labor"
	ItemMaterial      ItemType = "material"
	ItemEquipment     ItemType = "equipment"
	ItemSubcontractor ItemType = "subcontractor"
	ItemOverhead      ItemType = "overhead"
	ItemProfit        ItemType = "profit"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	switch t {
	case ItemLabor, ItemMaterial, ItemEquipment, ItemSubcontractor, ItemOverhead, ItemProfit:
		return true
	}
	return false
}

// Status is the quote approval state.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Uncategorized names the group of items without a category.
const Uncategorized = "Uncategorized"

// LineItem is one priced quote line.
type LineItem struct {
	ID          uuid.UUID       `json:"id"`
	ItemType    ItemType        `json:"item_type"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	IsTaxable   bool            `json:"is_taxable"`
	IsOptional  bool            `json:"is_optional"`
	Category    string          `json:"category"`
	Notes       string          `json:"notes,omitempty"`
	SortOrder   int             `json:"sort_order"`
}

// Quote is an estimate sent to a client.
type Quote struct {
	ID            int64           `json:"id"`
	CompanyID     int64           `json:"company_id"`
	ClientID      int64           `json:"client_id"`
	ClientName    string          `json:"client_name"`
	ProjectID     *int64          `json:"project_id,omitempty"`
	TemplateID    *int64          `json:"template_id,omitempty"`
	Title         string          `json:"title"`
	Status        Status          `json:"status"`
	ValidUntil    *time.Time      `json:"valid_until,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	OptionalTotal decimal.Decimal `json:"optional_total"`
	Items         []LineItem      `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CategoryGroup is a presentation bucket of line items.
type CategoryGroup struct {
	Category      string          `json:"category"`
	Items         []LineItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	OptionalTotal decimal.Decimal `json:"optional_total"`
}

// TemplateItem is a line skeleton inside a template section.
type TemplateItem struct {
	ID          uuid.UUID       `json:"id"`
	ItemType    ItemType        `json:"item_type"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	IsTaxable   bool            `json:"is_taxable"`
	IsOptional  bool            `json:"is_optional"`
	Category    string          `json:"category,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

// TemplateSection groups template items under a heading.
type TemplateSection struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	SortOrder int            `json:"sort_order"`
	Items     []TemplateItem `json:"items"`
}

// Template is a reusable quote skeleton.
type Template struct {
	ID          int64             `json:"id"`
	CompanyID   int64             `json:"company_id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	TaxRate     decimal.Decimal   `json:"tax_rate"`
	UseCount    int               `json:"use_count"`
	Sections    []TemplateSection `json:"sections"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ItemInput is a user-entered quote line.
type ItemInput struct {
	ItemType    ItemType
	Description string
	Quantity    decimal.Decimal
	Unit        string
	UnitPrice   decimal.Decimal
	IsTaxable   bool
	IsOptional  bool
	Category    string
	Notes       string
}

// Header carries the client-facing fields of a new quote.
type Header struct {
	CompanyID  int64
	ClientID   int64
	ClientName string
	ProjectID  *int64
	Title      string
	ValidUntil *time.Time
	Notes      string
	TaxRate    *decimal.Decimal
}
