package repository

import (
	"context"

	"universal-loyalty-ledger/internal/domain/model"
)

// PartnerRepository is the port for partner registration records.
type PartnerRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Partner) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Partner, error)
	List(ctx context.Context, tx Tx) ([]*model.Partner, error)
}
