package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"universal-loyalty-ledger/internal/domain"
	"universal-loyalty-ledger/internal/domain/model"
	"universal-loyalty-ledger/internal/domain/ports/repository"
)

var _ repository.PartnerRepository = (*PartnerRepo)(nil)

type PartnerRepo struct {
	pool *pgxpool.Pool
}

func NewPartnerRepo(pool *pgxpool.Pool) *PartnerRepo {
	return &PartnerRepo{pool: pool}
}

func (r *PartnerRepo) Save(ctx context.Context, tx repository.Tx, p *model.Partner) error {
	const q = `
INSERT INTO partners (id, name, credential_digest, deep_link_template, active, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  deep_link_template = EXCLUDED.deep_link_template,
  active = EXCLUDED.active;
`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Name, p.CredentialDigest, p.DeepLinkTemplate, p.Active, p.CreatedAt)
	return err
}

func (r *PartnerRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Partner, error) {
	const q = `
SELECT id, name, credential_digest, deep_link_template, active, created_at
  FROM partners WHERE id=$1;
`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var p model.Partner
	if err := row.Scan(&p.ID, &p.Name, &p.CredentialDigest, &p.DeepLinkTemplate, &p.Active, &p.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPartnerNotFound
		}
		return nil, mapStorageErr(err)
	}
	return &p, nil
}

func (r *PartnerRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Partner, error) {
	const q = `
SELECT id, name, credential_digest, deep_link_template, active, created_at
  FROM partners ORDER BY created_at;
`
	rows, err := querySQL(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Partner
	for rows.Next() {
		var p model.Partner
		if err := rows.Scan(&p.ID, &p.Name, &p.CredentialDigest, &p.DeepLinkTemplate, &p.Active, &p.CreatedAt); err != nil {
			return nil, mapStorageErr(err)
		}
		out = append(out, &p)
	}
	return out, mapStorageErr(rows.Err())
}
