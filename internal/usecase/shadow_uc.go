package usecase

import (
	"context"
	"errors"
	"strings"

	"universal-loyalty-ledger/internal/domain"
	"universal-loyalty-ledger/internal/domain/model"
	"universal-loyalty-ledger/internal/domain/ports/repository"
	"universal-loyalty-ledger/internal/infra/logging"
	"universal-loyalty-ledger/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ ShadowUseCase = (*shadowUC)(nil)

// ShadowUseCase is the ledger path for customers without an established
// identity. Per (partner, external customer) pair the lifecycle is
// NONE -> SHADOW_ACTIVE -> CLAIMED, with no way back from CLAIMED.
type ShadowUseCase interface {
	// ShadowAward accrues points under a claim code, creating the shadow
	// account on first contact. The code never changes while pending.
	ShadowAward(ctx context.Context, partnerID, externalCustomerID string, points int64, metadata map[string]string) (*model.ShadowAccount, error)
	// ShadowRedeem spends accrued points before the account is claimed, e.g.
	// an in-store redemption against the provisional balance.
	ShadowRedeem(ctx context.Context, partnerID, externalCustomerID string, points int64, purpose string, metadata map[string]string) (*model.ShadowAccount, error)
	// ValidateClaimCode is read-only and mutates nothing. Claimed and unknown
	// codes are both reported as invalid.
	ValidateClaimCode(ctx context.Context, claimCode string) (*model.ShadowAccount, error)
	// Activate migrates the accrued balance into a durable customer record
	// and retires the shadow account, all as one unit.
	Activate(ctx context.Context, claimCode, walletRef, email string) (*model.Customer, int64, error)
	ListShadowAccounts(ctx context.Context, partnerID string) ([]*model.ShadowAccount, error)
}

type shadowUC struct {
	partners  repository.PartnerRepository
	customers repository.CustomerRepository
	shadows   repository.ShadowAccountRepository
	ledger    repository.TransactionRepository
	identity  IdentityUseCase
	tm        repository.TransactionManager
	log       *zerolog.Logger
}

func NewShadowUseCase(
	partners repository.PartnerRepository,
	customers repository.CustomerRepository,
	shadows repository.ShadowAccountRepository,
	ledger repository.TransactionRepository,
	identity IdentityUseCase,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *shadowUC {
	return &shadowUC{
		partners:  partners,
		customers: customers,
		shadows:   shadows,
		ledger:    ledger,
		identity:  identity,
		tm:        tm,
		log:       logger,
	}
}

func (u *shadowUC) ShadowAward(ctx context.Context, partnerID, externalCustomerID string, points int64, metadata map[string]string) (*model.ShadowAccount, error) {
	defer logging.TraceDuration(u.log, "ShadowUC.ShadowAward")()

	if points <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var account *model.ShadowAccount
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.tm.Lock(ctx, tx, customerLockKey(partnerID, externalCustomerID)); err != nil {
			return err
		}

		if _, err := requireActivePartner(ctx, u.partners, tx, partnerID); err != nil {
			return err
		}

		// A durable customer means this pair left the shadow path for good;
		// the caller should be using Award.
		_, err := u.customers.FindByExternalID(ctx, tx, partnerID, externalCustomerID)
		if err == nil {
			return domain.ErrAccountAlreadyActivated
		}
		if !errors.Is(err, domain.ErrCustomerNotFound) {
			return err
		}

		sh, err := u.shadows.FindByExternalID(ctx, tx, partnerID, externalCustomerID)
		if err != nil {
			return err
		}
		if sh.IsZero() {
			code, cerr := generateClaimCode()
			if cerr != nil {
				return cerr
			}
			sh, cerr = model.NewShadowAccount(partnerID, externalCustomerID, code, points)
			if cerr != nil {
				return cerr
			}
			metrics.IncShadowAccount("created")
		} else {
			if !sh.PendingActivation {
				return domain.ErrAccountAlreadyActivated
			}
			sh.Points += points
			sh.Touch()
		}

		txn, err := model.NewPointsTransaction(sh.UniversalID, partnerID, externalCustomerID, points, model.TransactionShadowAward, "", metadata)
		if err != nil {
			return err
		}
		if err := u.ledger.Append(ctx, tx, txn); err != nil {
			return err
		}
		if err := u.shadows.Save(ctx, tx, sh); err != nil {
			return err
		}
		account = sh
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AddPointsMoved("shadow_award", points)
	u.log.Info().
		Str("partner_id", partnerID).
		Int64("points", points).
		Int64("accrued", account.Points).
		Msg("shadow points accrued")
	return account, nil
}

func (u *shadowUC) ShadowRedeem(ctx context.Context, partnerID, externalCustomerID string, points int64, purpose string, metadata map[string]string) (*model.ShadowAccount, error) {
	defer logging.TraceDuration(u.log, "ShadowUC.ShadowRedeem")()

	if points <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if strings.TrimSpace(purpose) == "" {
		return nil, domain.ErrMissingPurpose
	}

	var account *model.ShadowAccount
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.tm.Lock(ctx, tx, customerLockKey(partnerID, externalCustomerID)); err != nil {
			return err
		}

		sh, err := u.shadows.FindByExternalID(ctx, tx, partnerID, externalCustomerID)
		if err != nil {
			return err
		}
		if sh.IsZero() {
			return domain.ErrCustomerNotFound
		}
		if !sh.PendingActivation {
			return domain.ErrAccountAlreadyActivated
		}
		if sh.Points < points {
			return domain.ErrInsufficientBalance
		}

		txn, err := model.NewPointsTransaction(sh.UniversalID, partnerID, externalCustomerID, -points, model.TransactionShadowRedeem, purpose, metadata)
		if err != nil {
			return err
		}
		if err := u.ledger.Append(ctx, tx, txn); err != nil {
			return err
		}
		sh.Points -= points
		sh.Touch()
		if err := u.shadows.Save(ctx, tx, sh); err != nil {
			return err
		}
		account = sh
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AddPointsMoved("shadow_redeem", points)
	return account, nil
}

func (u *shadowUC) ValidateClaimCode(ctx context.Context, claimCode string) (*model.ShadowAccount, error) {
	defer logging.TraceDuration(u.log, "ShadowUC.ValidateClaimCode")()

	sh, err := u.shadows.FindByClaimCode(ctx, repository.NoTX, claimCode)
	if err != nil {
		return nil, err
	}
	if sh.IsZero() || !sh.PendingActivation {
		// A claimed code reads as invalid; only Activate distinguishes the
		// already-used case.
		return nil, domain.ErrClaimCodeInvalid
	}
	return sh, nil
}

func (u *shadowUC) Activate(ctx context.Context, claimCode, walletRef, email string) (*model.Customer, int64, error) {
	defer logging.TraceDuration(u.log, "ShadowUC.Activate")()

	if strings.TrimSpace(walletRef) == "" {
		return nil, 0, domain.ErrInvalidArgument
	}

	var (
		customer *model.Customer
		migrated int64
	)
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		sh, err := u.shadows.FindByClaimCode(ctx, tx, claimCode)
		if err != nil {
			return err
		}
		if sh.IsZero() {
			return domain.ErrClaimCodeInvalid
		}
		if err := u.tm.Lock(ctx, tx, customerLockKey(sh.PartnerID, sh.ExternalCustomerID)); err != nil {
			return err
		}
		// Re-read under the lock: a concurrent Activate may have claimed the
		// code between the lookup and the lock.
		sh, err = u.shadows.FindByClaimCode(ctx, tx, claimCode)
		if err != nil || sh.IsZero() {
			return domain.ErrClaimCodeInvalid
		}
		if !sh.PendingActivation {
			return domain.ErrClaimCodeAlreadyUsed
		}

		// Creates the durable customer, or reuses it if Onboard was raced.
		c, err := u.identity.OnboardTx(ctx, tx, sh.PartnerID, sh.ExternalCustomerID, "", email)
		if err != nil {
			return err
		}
		c.WalletRef = walletRef
		if email != "" {
			c.Email = email
		}
		if err := u.customers.Save(ctx, tx, c); err != nil {
			return err
		}

		migrated = sh.Claim()
		if err := u.shadows.Save(ctx, tx, sh); err != nil {
			return err
		}

		// Zero-point marker recording that the identity was established.
		marker, err := model.NewPointsTransaction(c.UniversalID, c.PartnerID, c.ExternalCustomerID, 0, model.TransactionAccountActivation, "", map[string]string{"wallet_ref": walletRef})
		if err != nil {
			return err
		}
		if err := u.ledger.Append(ctx, tx, marker); err != nil {
			return err
		}

		if migrated > 0 {
			migration, err := model.NewPointsTransaction(c.UniversalID, c.PartnerID, c.ExternalCustomerID, migrated, model.TransactionPointsMigration, "", map[string]string{"shadow_universal_id": sh.UniversalID})
			if err != nil {
				return err
			}
			if err := u.ledger.Append(ctx, tx, migration); err != nil {
				return err
			}
			if _, err := u.customers.AdjustBalance(ctx, tx, c.ID, migrated); err != nil {
				return err
			}
			c.PointsBalance += migrated
		}

		customer = c
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	metrics.IncShadowAccount("claimed")
	// A fully redeemed account migrates nothing and appends no migration
	// entry, so the migration counters must not move either.
	if migrated > 0 {
		metrics.AddPointsMoved("migration", migrated)
	}
	u.log.Info().
		Str("partner_id", customer.PartnerID).
		Str("universal_id", customer.UniversalID).
		Int64("migrated", migrated).
		Msg("shadow account claimed")
	return customer, migrated, nil
}

func (u *shadowUC) ListShadowAccounts(ctx context.Context, partnerID string) ([]*model.ShadowAccount, error) {
	defer logging.TraceDuration(u.log, "ShadowUC.ListShadowAccounts")()
	return u.shadows.ListByPartner(ctx, repository.NoTX, partnerID)
}
