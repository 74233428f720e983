// Package bigquery holds the BigQuery row shapes of the ledger tables and
// their conversions to the domain types.
package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/perla/internal/domain"
)

const (
	// SalesTable stores one row per (owner_id, sale_id).
	SalesTable = "sales"
	// SuggestionsTable stores user feedback.
	SuggestionsTable = "suggestions"
)

// SaleRow represents a sale record in BigQuery.
type SaleRow struct {
	OwnerID string `bigquery:"owner_id"`
	SaleID  string `bigquery:"sale_id"`

	Product       string  `bigquery:"product"`
	Amount        float64 `bigquery:"amount"`
	UnitPrice     float64 `bigquery:"unit_price"`
	TotalPrice    float64 `bigquery:"total_price"`
	Client        string  `bigquery:"client"`
	PaymentMethod string  `bigquery:"payment_method"`

	SaleDate bigquery.NullDate `bigquery:"sale_date"`

	NormalizedProduct bigquery.NullString `bigquery:"normalized_product"`
	NormalizedClient  bigquery.NullString `bigquery:"normalized_client"`

	CreatedTS time.Time              `bigquery:"created_ts"`
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}

// SuggestionRow represents a suggestion record in BigQuery.
type SuggestionRow struct {
	SuggestionID string    `bigquery:"suggestion_id"`
	OwnerID      string    `bigquery:"owner_id"`
	Text         string    `bigquery:"text"`
	CreatedTS    time.Time `bigquery:"created_ts"`
}

// NewSaleRow converts a domain record. A date that does not parse is stored
// as NULL.
func NewSaleRow(ownerID string, rec domain.SaleRecord, now time.Time) *SaleRow {
	row := &SaleRow{
		OwnerID:           ownerID,
		SaleID:            rec.ID,
		Product:           rec.Product,
		Amount:            rec.Amount,
		UnitPrice:         rec.UnitPrice,
		TotalPrice:        rec.TotalPrice,
		Client:            rec.Client,
		PaymentMethod:     rec.PaymentMethod,
		NormalizedProduct: nullString(rec.NormalizedProduct),
		NormalizedClient:  nullString(rec.NormalizedClient),
		CreatedTS:         rec.CreatedAt.UTC(),
		UpdatedTS:         bigquery.NullTimestamp{Timestamp: now.UTC(), Valid: true},
	}
	if rec.CreatedAt.IsZero() {
		row.CreatedTS = now.UTC()
	}
	if d, err := civil.ParseDate(rec.Date); err == nil {
		row.SaleDate = bigquery.NullDate{Date: d, Valid: true}
	}
	return row
}

// Record converts the row back to a domain record.
func (r *SaleRow) Record() domain.SaleRecord {
	rec := domain.SaleRecord{
		ID:                r.SaleID,
		Product:           r.Product,
		Amount:            r.Amount,
		UnitPrice:         r.UnitPrice,
		TotalPrice:        r.TotalPrice,
		Client:            r.Client,
		PaymentMethod:     r.PaymentMethod,
		NormalizedProduct: r.NormalizedProduct.StringVal,
		NormalizedClient:  r.NormalizedClient.StringVal,
		CreatedAt:         r.CreatedTS,
	}
	if r.SaleDate.Valid {
		rec.Date = r.SaleDate.Date.String()
	}
	if r.UpdatedTS.Valid {
		rec.UpdatedAt = r.UpdatedTS.Timestamp
	}
	return rec
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
