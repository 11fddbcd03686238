package model

import (
	"strings"
	"time"

	"universal-loyalty-ledger/internal/domain"

	"github.com/google/uuid"
)

// Customer represents one partner's relationship with one end user. The pair
// (PartnerID, ExternalCustomerID) is unique; UniversalID is assigned once at
// onboarding and reused for the customer's lifetime.
type Customer struct {
	ID                 string
	UniversalID        string
	PartnerID          string
	ExternalCustomerID string
	Name               string
	Email              string
	WalletRef          string
	PointsBalance      int64
	OnboardingCode     string // cached artifact payload (data URI)
	DeepLink           string // cached artifact payload
	CreatedAt          time.Time
	LastActivityAt     time.Time
}

func NewCustomer(partnerID, externalCustomerID, name, email string) (*Customer, error) {
	if partnerID == "" || strings.TrimSpace(externalCustomerID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Customer{
		ID:                 uuid.NewString(),
		UniversalID:        uuid.NewString(),
		PartnerID:          partnerID,
		ExternalCustomerID: externalCustomerID,
		Name:               name,
		Email:              email,
		PointsBalance:      0,
		CreatedAt:          now,
		LastActivityAt:     now,
	}, nil
}

func (c *Customer) IsZero() bool { return c == nil || c.ID == "" }
func (c *Customer) Touch()       { c.LastActivityAt = time.Now().UTC() }
