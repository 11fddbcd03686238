package repository

import (
	"context"

	"universal-loyalty-ledger/internal/domain/model"
)

// CustomerRepository is the port for durable customer rows. Save upserts on
// (partner_id, external_customer_id); balance mutations go through
// AdjustBalance so the read-modify-write stays on one row.
type CustomerRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Customer) error
	FindByExternalID(ctx context.Context, tx Tx, partnerID, externalCustomerID string) (*model.Customer, error)
	FindByUniversalID(ctx context.Context, tx Tx, universalID string) (*model.Customer, error)
	// AdjustBalance applies a signed delta to points_balance and refreshes
	// last_activity_at, returning the new balance. Implementations must make
	// the update conditional so the balance can never go negative.
	AdjustBalance(ctx context.Context, tx Tx, customerID string, delta int64) (int64, error)
	CountByPartner(ctx context.Context, tx Tx, partnerID string) (int, error)
}
