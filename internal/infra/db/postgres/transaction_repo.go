package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"universal-loyalty-ledger/internal/domain/model"
	"universal-loyalty-ledger/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*TransactionRepo)(nil)

// TransactionRepo persists the append-only ledger. There is deliberately no
// UPDATE or DELETE statement in this file.
type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

func (r *TransactionRepo) Append(ctx context.Context, tx repository.Tx, t *model.PointsTransaction) error {
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO points_transactions (
  transfer_id, universal_id, partner_id, external_customer_id,
  points, transaction_type, purpose, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);
`
	_, err = execSQL(ctx, r.pool, tx, q,
		t.TransferID, t.UniversalID, t.PartnerID, t.ExternalCustomerID,
		t.Points, string(t.Type), t.Purpose, meta, t.Timestamp,
	)
	return err
}

func (r *TransactionRepo) ListByCustomer(ctx context.Context, tx repository.Tx, partnerID, externalCustomerID string, limit int) ([]*model.PointsTransaction, error) {
	const q = `
SELECT transfer_id, universal_id, partner_id, external_customer_id,
       points, transaction_type, purpose, metadata, created_at
  FROM points_transactions
 WHERE partner_id=$1 AND external_customer_id=$2
 ORDER BY transfer_id DESC
 LIMIT $3;
`
	rows, err := querySQL(ctx, r.pool, tx, q, partnerID, externalCustomerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PointsTransaction
	for rows.Next() {
		var (
			t    model.PointsTransaction
			typ  string
			meta []byte
		)
		if err := rows.Scan(&t.TransferID, &t.UniversalID, &t.PartnerID, &t.ExternalCustomerID,
			&t.Points, &typ, &t.Purpose, &meta, &t.Timestamp); err != nil {
			return nil, mapStorageErr(err)
		}
		t.Type = model.TransactionType(typ)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &t.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, &t)
	}
	return out, mapStorageErr(rows.Err())
}

// SumByUniversalID replays one identity's slice of the ledger. Shadow-era
// entries live under the provisional universal id, so a migrated customer's
// sum matches its balance without double counting the accrual history.
func (r *TransactionRepo) SumByUniversalID(ctx context.Context, tx repository.Tx, universalID string) (int64, error) {
	const q = `
SELECT COALESCE(SUM(points), 0)
  FROM points_transactions
 WHERE universal_id=$1;
`
	row, err := pickRow(ctx, r.pool, tx, q, universalID)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, mapStorageErr(err)
	}
	return sum, nil
}
