package model

import (
	"strings"
	"time"

	"universal-loyalty-ledger/internal/domain"

	"github.com/google/uuid"
)

// ShadowAccount holds accrued points for a customer who has not yet
// established a durable identity. The claim code is the only handle a
// customer has on the balance; once redeemed the account is retired and the
// row kept as an immutable historical record.
type ShadowAccount struct {
	ID                 string
	UniversalID        string // provisional; replaced by the durable customer's id at claim time
	PartnerID          string
	ExternalCustomerID string
	Points             int64
	ClaimCode          string
	PendingActivation  bool
	CreatedAt          time.Time
	LastActivity       time.Time
	ClaimedAt          *time.Time
}

func NewShadowAccount(partnerID, externalCustomerID, claimCode string, points int64) (*ShadowAccount, error) {
	if partnerID == "" || strings.TrimSpace(externalCustomerID) == "" || claimCode == "" {
		return nil, domain.ErrInvalidArgument
	}
	if points <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	now := time.Now().UTC()
	return &ShadowAccount{
		ID:                 uuid.NewString(),
		UniversalID:        uuid.NewString(),
		PartnerID:          partnerID,
		ExternalCustomerID: externalCustomerID,
		Points:             points,
		ClaimCode:          claimCode,
		PendingActivation:  true,
		CreatedAt:          now,
		LastActivity:       now,
	}, nil
}

func (s *ShadowAccount) IsZero() bool { return s == nil || s.ID == "" }
func (s *ShadowAccount) Touch()       { s.LastActivity = time.Now().UTC() }

// Claim retires the account: balance is zeroed to prevent double-claim and
// the pending flag cleared. Returns the balance that was migrated.
func (s *ShadowAccount) Claim() int64 {
	migrated := s.Points
	s.Points = 0
	s.PendingActivation = false
	now := time.Now().UTC()
	s.ClaimedAt = &now
	s.LastActivity = now
	return migrated
}
