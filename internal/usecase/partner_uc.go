package usecase

import (
	"context"
	"errors"

	"universal-loyalty-ledger/internal/domain"
	"universal-loyalty-ledger/internal/domain/model"
	"universal-loyalty-ledger/internal/domain/ports/repository"
	"universal-loyalty-ledger/internal/infra/logging"
	"universal-loyalty-ledger/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ PartnerUseCase = (*partnerUC)(nil)

// PartnerUseCase exposes partner registration and credential checks.
type PartnerUseCase interface {
	// Register persists a new partner and returns it together with the
	// plaintext api credential. The plaintext is not recoverable afterwards;
	// only its digest is stored.
	Register(ctx context.Context, name, deepLinkTemplate string) (*model.Partner, string, error)
	FindByID(ctx context.Context, partnerID string) (*model.Partner, error)
	// ValidateCredential fails closed: an unknown partner and a wrong
	// credential are indistinguishable to the caller.
	ValidateCredential(ctx context.Context, partnerID, credential string) bool
	Deactivate(ctx context.Context, partnerID string) error
	UpdateDeepLinkTemplate(ctx context.Context, partnerID, template string) error
	List(ctx context.Context) ([]*model.Partner, error)
}

type partnerUC struct {
	partners repository.PartnerRepository
	log      *zerolog.Logger
}

func NewPartnerUseCase(partners repository.PartnerRepository, logger *zerolog.Logger) *partnerUC {
	return &partnerUC{partners: partners, log: logger}
}

func (u *partnerUC) Register(ctx context.Context, name, deepLinkTemplate string) (*model.Partner, string, error) {
	defer logging.TraceDuration(u.log, "PartnerUC.Register")()

	p, err := model.NewPartner(name, deepLinkTemplate)
	if err != nil {
		return nil, "", err
	}
	credential, err := generateAPICredential()
	if err != nil {
		return nil, "", err
	}
	p.CredentialDigest = model.DigestCredential(credential)

	if err := u.partners.Save(ctx, repository.NoTX, p); err != nil {
		u.log.Error().Err(err).Str("partner", logging.Redact(name, false)).Msg("failed to register partner")
		return nil, "", err
	}
	metrics.IncPartnerRegistered()
	u.log.Info().Str("partner_id", p.ID).Msg("partner registered")
	return p, credential, nil
}

func (u *partnerUC) FindByID(ctx context.Context, partnerID string) (*model.Partner, error) {
	defer logging.TraceDuration(u.log, "PartnerUC.FindByID")()
	return u.partners.FindByID(ctx, repository.NoTX, partnerID)
}

func (u *partnerUC) ValidateCredential(ctx context.Context, partnerID, credential string) bool {
	defer logging.TraceDuration(u.log, "PartnerUC.ValidateCredential")()

	p, err := u.partners.FindByID(ctx, repository.NoTX, partnerID)
	if err != nil || p.IsZero() || !p.Active {
		// Burn a digest anyway so a lookup miss costs the same as a mismatch.
		_ = model.DigestCredential(credential)
		metrics.IncCredentialCheck("miss")
		return false
	}
	if !p.MatchesCredential(credential) {
		metrics.IncCredentialCheck("mismatch")
		return false
	}
	metrics.IncCredentialCheck("ok")
	return true
}

func (u *partnerUC) Deactivate(ctx context.Context, partnerID string) error {
	defer logging.TraceDuration(u.log, "PartnerUC.Deactivate")()

	p, err := u.partners.FindByID(ctx, repository.NoTX, partnerID)
	if err != nil {
		return err
	}
	if !p.Active {
		return nil
	}
	p.Active = false
	return u.partners.Save(ctx, repository.NoTX, p)
}

func (u *partnerUC) UpdateDeepLinkTemplate(ctx context.Context, partnerID, template string) error {
	defer logging.TraceDuration(u.log, "PartnerUC.UpdateDeepLinkTemplate")()

	p, err := u.partners.FindByID(ctx, repository.NoTX, partnerID)
	if err != nil {
		return err
	}
	if template == "" {
		template = model.DefaultDeepLinkTemplate
	}
	p.DeepLinkTemplate = template
	return u.partners.Save(ctx, repository.NoTX, p)
}

func (u *partnerUC) List(ctx context.Context) ([]*model.Partner, error) {
	defer logging.TraceDuration(u.log, "PartnerUC.List")()
	return u.partners.List(ctx, repository.NoTX)
}

// requireActivePartner is shared by the ledger paths: the partner must exist
// and be active before any customer row is touched.
func requireActivePartner(ctx context.Context, partners repository.PartnerRepository, tx repository.Tx, partnerID string) (*model.Partner, error) {
	p, err := partners.FindByID(ctx, tx, partnerID)
	if err != nil {
		if errors.Is(err, domain.ErrPartnerNotFound) {
			return nil, domain.ErrPartnerNotFound
		}
		return nil, err
	}
	if !p.Active {
		return nil, domain.ErrPartnerInactive
	}
	return p, nil
}
