package usecase

import (
	"context"
	"errors"

	"universal-loyalty-ledger/internal/domain"
	"universal-loyalty-ledger/internal/domain/model"
	"universal-loyalty-ledger/internal/domain/ports/repository"
	"universal-loyalty-ledger/internal/infra/logging"
	"universal-loyalty-ledger/internal/infra/metrics"
	"universal-loyalty-ledger/internal/onboarding"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ IdentityUseCase = (*identityUC)(nil)

// IdentityUseCase resolves a partner-scoped external customer id to one
// universal customer record, creating the record on first contact.
type IdentityUseCase interface {
	// Onboard is idempotent: repeated calls for the same pair return the
	// existing row unchanged, same universal id included.
	Onboard(ctx context.Context, partnerID, externalCustomerID, name, email string) (*model.Customer, error)
	FindByExternalID(ctx context.Context, partnerID, externalCustomerID string) (*model.Customer, error)
	FindByUniversalID(ctx context.Context, universalID string) (*model.Customer, error)
	Exists(ctx context.Context, partnerID, externalCustomerID string) (bool, error)
	// OnboardTx runs the same resolution inside a caller-owned transaction.
	// Used by the shadow-account claim path so customer creation and balance
	// migration commit as one unit.
	OnboardTx(ctx context.Context, tx repository.Tx, partnerID, externalCustomerID, name, email string) (*model.Customer, error)
}

type identityUC struct {
	partners  repository.PartnerRepository
	customers repository.CustomerRepository
	artifacts *onboarding.Generator
	tm        repository.TransactionManager
	log       *zerolog.Logger
}

func NewIdentityUseCase(
	partners repository.PartnerRepository,
	customers repository.CustomerRepository,
	artifacts *onboarding.Generator,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *identityUC {
	return &identityUC{
		partners:  partners,
		customers: customers,
		artifacts: artifacts,
		tm:        tm,
		log:       logger,
	}
}

func (u *identityUC) Onboard(ctx context.Context, partnerID, externalCustomerID, name, email string) (*model.Customer, error) {
	defer logging.TraceDuration(u.log, "IdentityUC.Onboard")()

	var customer *model.Customer
	// Find-then-insert must be one atomic unit so a raced double onboard
	// cannot mint two universal ids for the same pair.
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		c, err := u.OnboardTx(ctx, tx, partnerID, externalCustomerID, name, email)
		if err != nil {
			return err
		}
		customer = c
		return nil
	})
	return customer, err
}

func (u *identityUC) OnboardTx(ctx context.Context, tx repository.Tx, partnerID, externalCustomerID, name, email string) (*model.Customer, error) {
	if err := u.tm.Lock(ctx, tx, customerLockKey(partnerID, externalCustomerID)); err != nil {
		return nil, err
	}

	existing, err := u.customers.FindByExternalID(ctx, tx, partnerID, externalCustomerID)
	if err != nil && !errors.Is(err, domain.ErrCustomerNotFound) {
		return nil, err
	}
	if !existing.IsZero() {
		return existing, nil
	}

	partner, err := requireActivePartner(ctx, u.partners, tx, partnerID)
	if err != nil {
		return nil, err
	}

	c, err := model.NewCustomer(partnerID, externalCustomerID, name, email)
	if err != nil {
		return nil, err
	}

	// Artifacts are generated once at first resolution and cached on the row.
	// They are pure functions of the universal id, so a later regeneration in
	// another format never conflicts with what is stored here.
	code, err := u.artifacts.RenderCode(c.UniversalID, onboarding.FormatDataURI)
	if err != nil {
		return nil, err
	}
	c.OnboardingCode = code
	c.DeepLink = u.artifacts.DeepLink(c.UniversalID, partner.DeepLinkTemplate)

	if err := u.customers.Save(ctx, tx, c); err != nil {
		u.log.Error().Err(err).Str("partner_id", partnerID).Msg("failed to save customer")
		return nil, err
	}
	metrics.IncCustomerOnboarded(partner.Name)
	return c, nil
}

func (u *identityUC) FindByExternalID(ctx context.Context, partnerID, externalCustomerID string) (*model.Customer, error) {
	defer logging.TraceDuration(u.log, "IdentityUC.FindByExternalID")()
	return u.customers.FindByExternalID(ctx, repository.NoTX, partnerID, externalCustomerID)
}

func (u *identityUC) FindByUniversalID(ctx context.Context, universalID string) (*model.Customer, error) {
	defer logging.TraceDuration(u.log, "IdentityUC.FindByUniversalID")()
	return u.customers.FindByUniversalID(ctx, repository.NoTX, universalID)
}

func (u *identityUC) Exists(ctx context.Context, partnerID, externalCustomerID string) (bool, error) {
	defer logging.TraceDuration(u.log, "IdentityUC.Exists")()

	_, err := u.customers.FindByExternalID(ctx, repository.NoTX, partnerID, externalCustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
