package model

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"universal-loyalty-ledger/internal/domain"

	"github.com/google/uuid"
)

// DefaultDeepLinkTemplate is used when a partner registers without its own
// deep-link base. The universal id is appended as a query parameter.
const DefaultDeepLinkTemplate = "loyalty://onboard"

// Partner is a registered business permitted to award and redeem points for
// its customers. Partners are never deleted, only deactivated.
type Partner struct {
	ID               string
	Name             string
	CredentialDigest string // hex SHA-256 of the api credential; plaintext is never stored
	DeepLinkTemplate string
	Active           bool
	CreatedAt        time.Time
}

func NewPartner(name, deepLinkTemplate string) (*Partner, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if deepLinkTemplate == "" {
		deepLinkTemplate = DefaultDeepLinkTemplate
	}
	return &Partner{
		ID:               uuid.NewString(),
		Name:             name,
		DeepLinkTemplate: deepLinkTemplate,
		Active:           true,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// DigestCredential hashes an api credential for storage and comparison.
func DigestCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// MatchesCredential compares a presented credential against the stored digest
// in constant time.
func (p *Partner) MatchesCredential(credential string) bool {
	got := DigestCredential(credential)
	return subtle.ConstantTimeCompare([]byte(got), []byte(p.CredentialDigest)) == 1
}

func (p *Partner) IsZero() bool { return p == nil || p.ID == "" }
