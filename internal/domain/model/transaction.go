package model

import (
	"crypto/rand"
	"time"

	"universal-loyalty-ledger/internal/domain"

	"github.com/oklog/ulid/v2"
)

// TransactionType enumerates the kinds of ledger entries.
type TransactionType string

const (
	TransactionAward             TransactionType = "AWARD"
	TransactionRedeem            TransactionType = "REDEEM"
	TransactionShadowAward       TransactionType = "SHADOW_AWARD"
	TransactionShadowRedeem      TransactionType = "SHADOW_REDEEM"
	TransactionAccountActivation TransactionType = "ACCOUNT_ACTIVATION"
	TransactionPointsMigration   TransactionType = "POINTS_MIGRATION"
)

// PointsTransaction is an immutable ledger entry. Points are signed: positive
// for awards and migrations in, negative for redemptions. The materialized
// balance on the customer row is a cached projection of these entries.
type PointsTransaction struct {
	TransferID         string
	UniversalID        string
	PartnerID          string
	ExternalCustomerID string
	Points             int64
	Type               TransactionType
	Purpose            string
	Metadata           map[string]string
	Timestamp          time.Time
}

// NewPointsTransaction mints a ledger entry with a fresh ULID transfer id.
// ULIDs sort lexicographically by creation time, which keeps the raw ledger
// scannable in append order.
func NewPointsTransaction(universalID, partnerID, externalCustomerID string, points int64, t TransactionType, purpose string, metadata map[string]string) (*PointsTransaction, error) {
	if universalID == "" || partnerID == "" || externalCustomerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	// ACCOUNT_ACTIVATION is a zero-point marker entry; every other type must
	// move points.
	if points == 0 && t != TransactionAccountActivation {
		return nil, domain.ErrInvalidAmount
	}
	now := time.Now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PointsTransaction{
		TransferID:         id.String(),
		UniversalID:        universalID,
		PartnerID:          partnerID,
		ExternalCustomerID: externalCustomerID,
		Points:             points,
		Type:               t,
		Purpose:            purpose,
		Metadata:           metadata,
		Timestamp:          now,
	}, nil
}
