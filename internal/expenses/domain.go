// Package expenses tracks job costs, their payment status and the amount
// re-billed to clients including markup.
package expenses

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category classifies an expense.
type Category string

const (
	CategoryMaterials        Category = "materials"
	CategoryLabor            Category = "labor"
	CategorySubcontractors   Category = "subcontractors"
	CategoryEquipment        Category = "equipment"
	CategoryEquipmentRental  Category = "equipment_rental"
	CategoryPermits          Category = "permits"
	CategoryUtilities        Category = "utilities"
	CategoryInsurance        Category = "insurance"
	CategoryProfessionalFees Category = "professional_fees"
	CategoryTravel           Category = "travel"
	CategoryOffice           Category = "office"
	CategoryMarketing        Category = "marketing"
	CategoryOther            Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryMaterials, CategoryLabor, CategorySubcontractors, CategoryEquipment,
	CategoryEquipmentRental, CategoryPermits, CategoryUtilities, CategoryInsurance,
	CategoryProfessionalFees, CategoryTravel, CategoryOffice, CategoryMarketing, CategoryOther,
}

var titleCaser = cases.Title(language.English)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Label returns the display name, e.g. "Equipment Rental".
func (c Category) Label() string {
	return titleCaser.String(strings.ReplaceAll(string(c), "_", " "))
}

// PaymentMethod records how an expense was or will be paid.
type PaymentMethod string

const (
	MethodCash       PaymentMethod = "cash"
	MethodCheck      PaymentMethod = "check"
	MethodCreditCard PaymentMethod = "credit_card"
	MethodDebitCard  PaymentMethod = "debit_card"
	MethodACH        PaymentMethod = "ach"
	MethodWire       PaymentMethod = "wire"
	MethodOther      PaymentMethod = "other"
)

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCheck, MethodCreditCard, MethodDebitCard, MethodACH, MethodWire, MethodOther:
		return true
	}
	return false
}

// PaymentStatus is the vendor-side payment state.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusPaid      PaymentStatus = "paid"
	StatusScheduled PaymentStatus = "scheduled"
	StatusCancelled PaymentStatus = "cancelled"
)

// Statuses lists payment statuses in report order.
var Statuses = []PaymentStatus{StatusPending, StatusScheduled, StatusPaid, StatusCancelled}

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusScheduled, StatusCancelled:
		return true
	}
	return false
}

// Expense is a recorded cost.
type Expense struct {
	ID               int64            `json:"id"`
	CompanyID        int64            `json:"company_id"`
	ProjectID        *int64           `json:"project_id,omitempty"`
	Vendor           string           `json:"vendor"`
	Description      string           `json:"description"`
	Amount           decimal.Decimal  `json:"amount"`
	Category         Category         `json:"category"`
	CategoryLabel    string           `json:"category_label"`
	PaymentMethod    PaymentMethod    `json:"payment_method"`
	PaymentStatus    PaymentStatus    `json:"payment_status"`
	ExpenseDate      time.Time        `json:"expense_date"`
	BillableToClient bool             `json:"billable_to_client"`
	MarkupPercentage *decimal.Decimal `json:"markup_percentage,omitempty"`
	BillableAmount   decimal.Decimal  `json:"billable_amount"`
	Invoiced         bool             `json:"invoiced"`
	InvoiceID        *int64           `json:"invoice_id,omitempty"`
	PaidAt           *time.Time       `json:"paid_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// CreateInput carries the fields of a new expense.
type CreateInput struct {
	CompanyID        int64
	ProjectID        *int64
	Vendor           string
	Description      string
	Amount           decimal.Decimal
	Category         Category
	PaymentMethod    PaymentMethod
	PaymentStatus    PaymentStatus
	ExpenseDate      time.Time
	BillableToClient bool
	MarkupPercentage *decimal.Decimal
}

// ListFilter narrows expense listings.
type ListFilter struct {
	ProjectID  int64
	Status     PaymentStatus
	Billable   *bool
	Uninvoiced bool
	From       time.Time
	To         time.Time
}
