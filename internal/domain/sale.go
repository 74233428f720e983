package domain

import (
	"time"
)

const (
	// DefaultClient is stored when the user did not name a client.
	DefaultClient = "Cliente"
	// DefaultPaymentMethod is stored when the user did not name a payment method.
	DefaultPaymentMethod = "Efectivo"
	// DateLayout is the calendar date format used on the wire and in storage.
	DateLayout = "2006-01-02"
)

// SaleRecord represents one sale line item in a user's ledger.
// JSON keys follow the assistant wire format ("price" is the unit price).
type SaleRecord struct {
	ID            string  `json:"id"`
	Product       string  `json:"product"`
	Amount        float64 `json:"amount"`
	UnitPrice     float64 `json:"price"`
	TotalPrice    float64 `json:"totalPrice"`
	Client        string  `json:"client"`
	PaymentMethod string  `json:"paymentMethod"`
	Date          string  `json:"date"`

	// Set only after a confirmed or high-confidence entity normalization.
	NormalizedProduct string `json:"normalizedProduct,omitempty"`
	NormalizedClient  string `json:"normalizedClient,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Field names one user-editable attribute of a SaleRecord.
type Field string

const (
	FieldProduct       Field = "product"
	FieldAmount        Field = "amount"
	FieldUnitPrice     Field = "price"
	FieldTotalPrice    Field = "totalPrice"
	FieldClient        Field = "client"
	FieldPaymentMethod Field = "paymentMethod"
	FieldDate          Field = "date"
)

// EditableFields lists every field an update may touch, in display order.
var EditableFields = []Field{
	FieldProduct,
	FieldAmount,
	FieldUnitPrice,
	FieldTotalPrice,
	FieldClient,
	FieldPaymentMethod,
	FieldDate,
}

// IsNumeric reports whether the field holds a number.
func (f Field) IsNumeric() bool {
	return f == FieldAmount || f == FieldUnitPrice || f == FieldTotalPrice
}

// Equal reports whether two records hold the same value for field f.
func (s SaleRecord) Equal(other SaleRecord, f Field) bool {
	switch f {
	case FieldProduct:
		return s.Product == other.Product
	case FieldAmount:
		return s.Amount == other.Amount
	case FieldUnitPrice:
		return s.UnitPrice == other.UnitPrice
	case FieldTotalPrice:
		return s.TotalPrice == other.TotalPrice
	case FieldClient:
		return s.Client == other.Client
	case FieldPaymentMethod:
		return s.PaymentMethod == other.PaymentMethod
	case FieldDate:
		return s.Date == other.Date
	}
	return true
}

// CopyField copies the value of field f from src into s.
func (s *SaleRecord) CopyField(src SaleRecord, f Field) {
	switch f {
	case FieldProduct:
		s.Product = src.Product
	case FieldAmount:
		s.Amount = src.Amount
	case FieldUnitPrice:
		s.UnitPrice = src.UnitPrice
	case FieldTotalPrice:
		s.TotalPrice = src.TotalPrice
	case FieldClient:
		s.Client = src.Client
	case FieldPaymentMethod:
		s.PaymentMethod = src.PaymentMethod
	case FieldDate:
		s.Date = src.Date
	}
}

// DisplayProduct returns the normalized product name when one was confirmed.
func (s SaleRecord) DisplayProduct() string {
	if s.NormalizedProduct != "" {
		return s.NormalizedProduct
	}
	return s.Product
}

// DisplayClient returns the normalized client name when one was confirmed.
func (s SaleRecord) DisplayClient() string {
	if s.NormalizedClient != "" {
		return s.NormalizedClient
	}
	return s.Client
}
