package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"universal-loyalty-ledger/internal/domain"
	"universal-loyalty-ledger/internal/domain/model"
	"universal-loyalty-ledger/internal/domain/ports/repository"
)

var _ repository.CustomerRepository = (*CustomerRepo)(nil)

type CustomerRepo struct {
	pool *pgxpool.Pool
}

func NewCustomerRepo(pool *pgxpool.Pool) *CustomerRepo {
	return &CustomerRepo{pool: pool}
}

const customerColumns = `
id, universal_id, partner_id, external_customer_id, name, email, wallet_ref,
points_balance, onboarding_code, deep_link, created_at, last_activity_at`

func (r *CustomerRepo) Save(ctx context.Context, tx repository.Tx, c *model.Customer) error {
	const q = `
INSERT INTO customers (
  id, universal_id, partner_id, external_customer_id, name, email, wallet_ref,
  points_balance, onboarding_code, deep_link, created_at, last_activity_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (partner_id, external_customer_id) DO UPDATE SET
  name = EXCLUDED.name,
  email = EXCLUDED.email,
  wallet_ref = EXCLUDED.wallet_ref,
  last_activity_at = EXCLUDED.last_activity_at;
`
	_, err := execSQL(ctx, r.pool, tx, q,
		c.ID, c.UniversalID, c.PartnerID, c.ExternalCustomerID, c.Name, c.Email, c.WalletRef,
		c.PointsBalance, c.OnboardingCode, c.DeepLink, c.CreatedAt, c.LastActivityAt,
	)
	return err
}

func (r *CustomerRepo) FindByExternalID(ctx context.Context, tx repository.Tx, partnerID, externalCustomerID string) (*model.Customer, error) {
	const q = `SELECT ` + customerColumns + ` FROM customers WHERE partner_id=$1 AND external_customer_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, partnerID, externalCustomerID)
	if err != nil {
		return nil, err
	}
	return scanCustomer(row)
}

func (r *CustomerRepo) FindByUniversalID(ctx context.Context, tx repository.Tx, universalID string) (*model.Customer, error) {
	const q = `SELECT ` + customerColumns + ` FROM customers WHERE universal_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, universalID)
	if err != nil {
		return nil, err
	}
	return scanCustomer(row)
}

// AdjustBalance is the only balance mutation path. The guard in the WHERE
// clause makes overdraft structurally impossible even if a caller skipped its
// own balance check.
func (r *CustomerRepo) AdjustBalance(ctx context.Context, tx repository.Tx, customerID string, delta int64) (int64, error) {
	const q = `
UPDATE customers
   SET points_balance = points_balance + $2,
       last_activity_at = now()
 WHERE id = $1 AND points_balance + $2 >= 0
RETURNING points_balance;
`
	row, err := pickRow(ctx, r.pool, tx, q, customerID, delta)
	if err != nil {
		return 0, err
	}
	var balance int64
	if err := row.Scan(&balance); err != nil {
		if err == pgx.ErrNoRows {
			// Row exists but the guard rejected the delta, or the id is gone.
			return 0, domain.ErrInsufficientBalance
		}
		return 0, mapStorageErr(err)
	}
	return balance, nil
}

func (r *CustomerRepo) CountByPartner(ctx context.Context, tx repository.Tx, partnerID string) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM customers WHERE partner_id=$1;`, partnerID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapStorageErr(err)
	}
	return n, nil
}

func scanCustomer(row pgx.Row) (*model.Customer, error) {
	var c model.Customer
	err := row.Scan(
		&c.ID, &c.UniversalID, &c.PartnerID, &c.ExternalCustomerID, &c.Name, &c.Email, &c.WalletRef,
		&c.PointsBalance, &c.OnboardingCode, &c.DeepLink, &c.CreatedAt, &c.LastActivityAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, mapStorageErr(err)
	}
	return &c, nil
}
