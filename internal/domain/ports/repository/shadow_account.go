package repository

import (
	"context"

	"universal-loyalty-ledger/internal/domain/model"
)

// ShadowAccountRepository is the port for provisional claim-code-gated
// balances. Lookup misses return (nil, nil); FindByClaimCode returns claimed
// rows too, state checks belong to the use case.
type ShadowAccountRepository interface {
	Save(ctx context.Context, tx Tx, s *model.ShadowAccount) error
	FindByExternalID(ctx context.Context, tx Tx, partnerID, externalCustomerID string) (*model.ShadowAccount, error)
	FindByClaimCode(ctx context.Context, tx Tx, claimCode string) (*model.ShadowAccount, error)
	ListByPartner(ctx context.Context, tx Tx, partnerID string) ([]*model.ShadowAccount, error)
}
