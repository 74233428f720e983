package bigquery

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	bq "github.com/dvloznov/perla/internal/bigquery"
	"github.com/dvloznov/perla/internal/domain"
)

func TestTableRef(t *testing.T) {
	assert.Equal(t, "`proj.perla.sales`", tableRef("proj", "perla", bq.SalesTable))
}

func TestUpsertSaleQuery_CoversEveryParameter(t *testing.T) {
	row := bq.NewSaleRow("o1", domain.SaleRecord{ID: "s1", Date: "2024-05-01"}, time.Now())
	query := upsertSaleQuery("`p.d.sales`")

	assert.True(t, strings.HasPrefix(strings.TrimSpace(query), "MERGE `p.d.sales` T"))
	for _, p := range saleParameters(row) {
		assert.Contains(t, query, "@"+p.Name+" AS "+p.Name)
	}
	assert.NotContains(t, query, "created_ts = S.created_ts", "created_ts is only written on insert")
}

func TestListSalesQuery_ScopedToOwner(t *testing.T) {
	query := listSalesQuery("`p.d.sales`")
	assert.Contains(t, query, "WHERE owner_id = @owner_id")
	assert.Contains(t, query, "ORDER BY created_ts DESC")
}
