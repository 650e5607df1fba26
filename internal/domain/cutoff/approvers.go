package cutoff

import (
	"context"

	"payrolld/internal/platform/querier"
)

// Directory is the database-backed ApproverDirectory. Rows in
// approval_levels assign accounts to chain levels per tenant.
type Directory struct {
	DB querier.Querier
}

func NewDirectory(db querier.Querier) *Directory {
	return &Directory{DB: db}
}

func (d *Directory) ApproversByLevel(ctx context.Context, tenantID string, level int) ([]string, error) {
	rows, err := d.DB.Query(ctx, `
    SELECT account_id
    FROM approval_levels
    WHERE tenant_id = $1 AND level = $2
    ORDER BY account_id
  `, tenantID, level)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		accounts = append(accounts, id)
	}
	return accounts, rows.Err()
}

func (d *Directory) ApprovalChain(ctx context.Context, tenantID string) (map[int][]string, error) {
	rows, err := d.DB.Query(ctx, `
    SELECT level, account_id
    FROM approval_levels
    WHERE tenant_id = $1
    ORDER BY level, account_id
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chain := make(map[int][]string)
	for rows.Next() {
		var level int
		var id string
		if err := rows.Scan(&level, &id); err != nil {
			return nil, err
		}
		chain[level] = append(chain[level], id)
	}
	return chain, rows.Err()
}
