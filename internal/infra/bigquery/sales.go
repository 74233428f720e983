// Package bigquery is the cloud ledger store.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	bq "github.com/dvloznov/perla/internal/bigquery"
	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/ledger"
)

// BigQuerySalesRepository stores every owner's sales in one dataset. It holds
// a shared client to avoid opening a connection per operation.
type BigQuerySalesRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	now       func() time.Time
}

// NewBigQuerySalesRepository creates a repository with its own client.
func NewBigQuerySalesRepository(ctx context.Context, projectID, datasetID string) (*BigQuerySalesRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQuerySalesRepository: creating client: %w", err)
	}
	return NewBigQuerySalesRepositoryWithClient(client, projectID, datasetID), nil
}

// NewBigQuerySalesRepositoryWithClient wraps an existing client.
func NewBigQuerySalesRepositoryWithClient(client *bigquery.Client, projectID, datasetID string) *BigQuerySalesRepository {
	return &BigQuerySalesRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		now:       time.Now,
	}
}

// Close closes the BigQuery client connection.
func (r *BigQuerySalesRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *BigQuerySalesRepository) table(name string) string {
	return tableRef(r.projectID, r.datasetID, name)
}

func tableRef(projectID, datasetID, name string) string {
	return "`" + projectID + "." + datasetID + "." + name + "`"
}

// ListSales returns the owner's sales, most recent first.
func (r *BigQuerySalesRepository) ListSales(ctx context.Context, ownerID string) ([]domain.SaleRecord, error) {
	q := r.client.Query(listSalesQuery(r.table(bq.SalesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListSales: reading query: %w", err)
	}

	var sales []domain.SaleRecord
	for {
		var row bq.SaleRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListSales: iterating: %w", err)
		}
		sales = append(sales, row.Record())
	}
	return sales, nil
}

// UpsertSale merges rec on (owner_id, sale_id). created_ts is kept from the
// first insert.
func (r *BigQuerySalesRepository) UpsertSale(ctx context.Context, ownerID string, rec domain.SaleRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("UpsertSale: sale id is required")
	}
	row := bq.NewSaleRow(ownerID, rec, r.now())

	q := r.client.Query(upsertSaleQuery(r.table(bq.SalesTable)))
	q.Parameters = saleParameters(row)

	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("UpsertSale: sale %s: %w", rec.ID, err)
	}
	return nil
}

// DeleteSales removes the given ids. Unknown ids are ignored.
func (r *BigQuerySalesRepository) DeleteSales(ctx context.Context, ownerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	q := r.client.Query(`
		DELETE FROM ` + r.table(bq.SalesTable) + `
		WHERE owner_id = @owner_id AND sale_id IN UNNEST(@sale_ids)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "sale_ids", Value: ids},
	}

	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("DeleteSales: %w", err)
	}
	return nil
}

// SaveSuggestion streams one suggestion row into the suggestions table.
func (r *BigQuerySalesRepository) SaveSuggestion(ctx context.Context, ownerID, text string) error {
	row := &bq.SuggestionRow{
		SuggestionID: uuid.NewString(),
		OwnerID:      ownerID,
		Text:         text,
		CreatedTS:    r.now().UTC(),
	}
	inserter := r.client.Dataset(r.datasetID).Table(bq.SuggestionsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("SaveSuggestion: inserting row: %w", err)
	}
	return nil
}

func listSalesQuery(table string) string {
	return `
		SELECT
			owner_id,
			sale_id,
			product,
			amount,
			unit_price,
			total_price,
			client,
			payment_method,
			sale_date,
			normalized_product,
			normalized_client,
			created_ts,
			updated_ts
		FROM ` + table + `
		WHERE owner_id = @owner_id
		ORDER BY created_ts DESC, sale_id DESC
	`
}

func upsertSaleQuery(table string) string {
	return `
		MERGE ` + table + ` T
		USING (SELECT
			@owner_id AS owner_id,
			@sale_id AS sale_id,
			@product AS product,
			@amount AS amount,
			@unit_price AS unit_price,
			@total_price AS total_price,
			@client AS client,
			@payment_method AS payment_method,
			@sale_date AS sale_date,
			@normalized_product AS normalized_product,
			@normalized_client AS normalized_client,
			@created_ts AS created_ts,
			@updated_ts AS updated_ts
		) S
		ON T.owner_id = S.owner_id AND T.sale_id = S.sale_id
		WHEN MATCHED THEN UPDATE SET
			product = S.product,
			amount = S.amount,
			unit_price = S.unit_price,
			total_price = S.total_price,
			client = S.client,
			payment_method = S.payment_method,
			sale_date = S.sale_date,
			normalized_product = S.normalized_product,
			normalized_client = S.normalized_client,
			updated_ts = S.updated_ts
		WHEN NOT MATCHED THEN INSERT ROW
	`
}

func saleParameters(row *bq.SaleRow) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "owner_id", Value: row.OwnerID},
		{Name: "sale_id", Value: row.SaleID},
		{Name: "product", Value: row.Product},
		{Name: "amount", Value: row.Amount},
		{Name: "unit_price", Value: row.UnitPrice},
		{Name: "total_price", Value: row.TotalPrice},
		{Name: "client", Value: row.Client},
		{Name: "payment_method", Value: row.PaymentMethod},
		{Name: "sale_date", Value: row.SaleDate},
		{Name: "normalized_product", Value: row.NormalizedProduct},
		{Name: "normalized_client", Value: row.NormalizedClient},
		{Name: "created_ts", Value: row.CreatedTS},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}
}

func runAndWait(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

var (
	_ ledger.Store           = (*BigQuerySalesRepository)(nil)
	_ ledger.SuggestionStore = (*BigQuerySalesRepository)(nil)
)
