package bigquery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/perla/internal/domain"
)

func TestSaleRow_RoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := domain.SaleRecord{
		ID:                "s1",
		Product:           "alfajor",
		Amount:            2,
		UnitPrice:         1500,
		TotalPrice:        3000,
		Client:            "Marcos",
		PaymentMethod:     "Tarjeta",
		Date:              "2024-05-01",
		NormalizedProduct: "alfajores",
		CreatedAt:         created,
	}

	row := NewSaleRow("o1", rec, now)
	assert.Equal(t, "o1", row.OwnerID)
	assert.True(t, row.SaleDate.Valid)
	assert.True(t, row.NormalizedProduct.Valid)
	assert.False(t, row.NormalizedClient.Valid)
	assert.Equal(t, created, row.CreatedTS)

	back := row.Record()
	rec.UpdatedAt = now
	assert.Equal(t, rec, back)
}

func TestNewSaleRow_Defaults(t *testing.T) {
	now := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	row := NewSaleRow("o1", domain.SaleRecord{ID: "s1", Date: "ayer"}, now)

	assert.False(t, row.SaleDate.Valid, "unparseable dates are stored as NULL")
	assert.Equal(t, now, row.CreatedTS)
	assert.Equal(t, "", row.Record().Date)
}
