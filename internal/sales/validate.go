// Package sales turns loosely typed assistant output into well-formed sale records.
package sales

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/perla/internal/domain"
	"github.com/google/uuid"
)

// Validate normalizes and type-checks raw into a fully populated SaleRecord.
// It never returns a partially populated record: on failure the error is a
// *ValidationError matching ErrMissingField, ErrInvalidNumber or ErrNotAnObject.
func Validate(raw interface{}, now time.Time) (*domain.SaleRecord, error) {
	obj, ok := raw.(map[string]interface{})
	if !ok || obj == nil {
		return nil, &ValidationError{Kind: KindNotAnObject, Value: raw}
	}

	product, ok := getStringField(obj, "product", "name")
	if !ok {
		return nil, &ValidationError{Kind: KindMissingField, Field: "product"}
	}
	if _, ok := lookup(obj, "amount", "quantity"); !ok {
		return nil, &ValidationError{Kind: KindMissingField, Field: "amount"}
	}
	if _, ok := lookup(obj, "price", "unitPrice"); !ok {
		return nil, &ValidationError{Kind: KindMissingField, Field: "price"}
	}

	amount, _, err := getFloat64Field(obj, "amount", "quantity")
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, &ValidationError{Kind: KindInvalidNumber, Field: "amount", Value: amount}
	}
	price, _, err := getFloat64Field(obj, "price", "unitPrice")
	if err != nil {
		return nil, err
	}
	total, hasTotal, err := getFloat64Field(obj, "totalPrice")
	if err != nil {
		return nil, err
	}
	if !hasTotal {
		total = amount * price
	}

	rec := &domain.SaleRecord{
		Product:    product,
		Amount:     amount,
		UnitPrice:  price,
		TotalPrice: total,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if id, ok := getStringField(obj, "id"); ok {
		rec.ID = id
	} else {
		rec.ID = NewID(now)
	}

	rec.Client = DefaultString(obj, "client", domain.DefaultClient)
	rec.PaymentMethod = DefaultString(obj, "paymentMethod", domain.DefaultPaymentMethod)
	rec.Date = normalizeDate(obj, now)

	if v, ok := getStringField(obj, "normalizedProduct"); ok {
		rec.NormalizedProduct = v
	}
	if v, ok := getStringField(obj, "normalizedClient"); ok {
		rec.NormalizedClient = v
	}

	return rec, nil
}

// ValidateAll validates every raw record. It fails as a whole on the first
// invalid record so callers never credit a partial batch.
func ValidateAll(raws []map[string]interface{}, now time.Time) ([]domain.SaleRecord, error) {
	out := make([]domain.SaleRecord, 0, len(raws))
	for i, raw := range raws {
		rec, err := Validate(raw, now)
		if err != nil {
			return nil, fmt.Errorf("sale %d: %w", i, err)
		}
		out = append(out, *rec)
	}
	return out, nil
}

// Merge overlays the non-null keys of raw onto original and validates the result.
// The id and creation time of original always win.
func Merge(original domain.SaleRecord, raw map[string]interface{}, now time.Time) (*domain.SaleRecord, error) {
	m := ToMap(original)
	for k, v := range raw {
		if v == nil {
			continue
		}
		switch k {
		case "id":
			continue
		case "name":
			k = "product"
		case "quantity":
			k = "amount"
		case "unitPrice":
			k = "price"
		}
		m[k] = v
	}

	rec, err := Validate(m, now)
	if err != nil {
		return nil, err
	}
	rec.ID = original.ID
	rec.CreatedAt = original.CreatedAt
	return rec, nil
}

// ToMap renders a record with the same keys the assistant uses.
func ToMap(s domain.SaleRecord) map[string]interface{} {
	m := map[string]interface{}{
		"id":            s.ID,
		"product":       s.Product,
		"amount":        s.Amount,
		"price":         s.UnitPrice,
		"totalPrice":    s.TotalPrice,
		"client":        s.Client,
		"paymentMethod": s.PaymentMethod,
		"date":          s.Date,
	}
	if s.NormalizedProduct != "" {
		m["normalizedProduct"] = s.NormalizedProduct
	}
	if s.NormalizedClient != "" {
		m["normalizedClient"] = s.NormalizedClient
	}
	return m
}

// NewID returns an opaque sale id made of a millisecond timestamp and a random suffix.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("sale-%d-%s", now.UnixMilli(), suffix)
}

// DefaultString returns the trimmed string at key, or def when absent or blank.
func DefaultString(m map[string]interface{}, key, def string) string {
	if v, ok := getStringField(m, key); ok {
		return v
	}
	return def
}

func normalizeDate(m map[string]interface{}, now time.Time) string {
	today := now.Format(domain.DateLayout)
	s, ok := getStringField(m, "date")
	if !ok {
		return today
	}
	if len(s) >= len(domain.DateLayout) {
		if d, err := time.Parse(domain.DateLayout, s[:len(domain.DateLayout)]); err == nil {
			return d.Format(domain.DateLayout)
		}
	}
	return today
}
