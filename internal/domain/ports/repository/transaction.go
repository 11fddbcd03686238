package repository

import (
	"context"

	"universal-loyalty-ledger/internal/domain/model"
)

// TransactionRepository is the port for the append-only ledger. Entries are
// inserted exactly once and never updated or deleted.
type TransactionRepository interface {
	Append(ctx context.Context, tx Tx, t *model.PointsTransaction) error
	ListByCustomer(ctx context.Context, tx Tx, partnerID, externalCustomerID string, limit int) ([]*model.PointsTransaction, error)
	// SumByUniversalID replays the ledger for one identity; used by invariant
	// checks and reconciliation, not by the request path.
	SumByUniversalID(ctx context.Context, tx Tx, universalID string) (int64, error)
}
