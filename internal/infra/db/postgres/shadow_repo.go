package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"universal-loyalty-ledger/internal/domain/model"
	"universal-loyalty-ledger/internal/domain/ports/repository"
)

var _ repository.ShadowAccountRepository = (*ShadowAccountRepo)(nil)

type ShadowAccountRepo struct {
	pool *pgxpool.Pool
}

func NewShadowAccountRepo(pool *pgxpool.Pool) *ShadowAccountRepo {
	return &ShadowAccountRepo{pool: pool}
}

const shadowColumns = `
id, universal_id, partner_id, external_customer_id, points, claim_code,
pending_activation, created_at, last_activity, claimed_at`

func (r *ShadowAccountRepo) Save(ctx context.Context, tx repository.Tx, s *model.ShadowAccount) error {
	const q = `
INSERT INTO shadow_accounts (
  id, universal_id, partner_id, external_customer_id, points, claim_code,
  pending_activation, created_at, last_activity, claimed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  points = EXCLUDED.points,
  pending_activation = EXCLUDED.pending_activation,
  last_activity = EXCLUDED.last_activity,
  claimed_at = EXCLUDED.claimed_at;
`
	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UniversalID, s.PartnerID, s.ExternalCustomerID, s.Points, s.ClaimCode,
		s.PendingActivation, s.CreatedAt, s.LastActivity, s.ClaimedAt,
	)
	return err
}

func (r *ShadowAccountRepo) FindByExternalID(ctx context.Context, tx repository.Tx, partnerID, externalCustomerID string) (*model.ShadowAccount, error) {
	const q = `SELECT ` + shadowColumns + ` FROM shadow_accounts WHERE partner_id=$1 AND external_customer_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, partnerID, externalCustomerID)
	if err != nil {
		return nil, err
	}
	return scanShadow(row)
}

func (r *ShadowAccountRepo) FindByClaimCode(ctx context.Context, tx repository.Tx, claimCode string) (*model.ShadowAccount, error) {
	// One opaque token comparison; no prefix or similarity matching.
	const q = `SELECT ` + shadowColumns + ` FROM shadow_accounts WHERE claim_code=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, claimCode)
	if err != nil {
		return nil, err
	}
	return scanShadow(row)
}

func (r *ShadowAccountRepo) ListByPartner(ctx context.Context, tx repository.Tx, partnerID string) ([]*model.ShadowAccount, error) {
	const q = `SELECT ` + shadowColumns + ` FROM shadow_accounts WHERE partner_id=$1 ORDER BY created_at;`
	rows, err := querySQL(ctx, r.pool, tx, q, partnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.ShadowAccount
	for rows.Next() {
		var s model.ShadowAccount
		if err := rows.Scan(&s.ID, &s.UniversalID, &s.PartnerID, &s.ExternalCustomerID, &s.Points, &s.ClaimCode,
			&s.PendingActivation, &s.CreatedAt, &s.LastActivity, &s.ClaimedAt); err != nil {
			return nil, mapStorageErr(err)
		}
		out = append(out, &s)
	}
	return out, mapStorageErr(rows.Err())
}

func scanShadow(row pgx.Row) (*model.ShadowAccount, error) {
	var s model.ShadowAccount
	err := row.Scan(
		&s.ID, &s.UniversalID, &s.PartnerID, &s.ExternalCustomerID, &s.Points, &s.ClaimCode,
		&s.PendingActivation, &s.CreatedAt, &s.LastActivity, &s.ClaimedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Lookup misses are not errors for shadow accounts; the use case
			// decides whether absence means "create" or "invalid code".
			return nil, nil
		}
		return nil, mapStorageErr(err)
	}
	return &s, nil
}
