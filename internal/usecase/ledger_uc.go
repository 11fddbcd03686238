package usecase

import (
	"context"
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
var _ LedgerUseCase = (*ledgerUC)(nil)

// LedgerUseCase implements the points transaction log and the materialized
// per-partner balance. Every mutation appends exactly one immutable ledger
// entry and adjusts exactly one customer row, as a single atomic unit
// serialized per (partner, external customer) pair.
type LedgerUseCase interface {
	Award(ctx context.Context, partnerID, externalCustomerID string, points int64, metadata map[string]string) (*model.PointsTransaction, int64, error)
	Redeem(ctx context.Context, partnerID, externalCustomerID string, points int64, purpose string, metadata map[string]string) (*model.PointsTransaction, int64, error)
	GetBalance(ctx context.Context, partnerID, externalCustomerID string) (int64, error)
	History(ctx context.Context, partnerID, externalCustomerID string, limit int) ([]*model.PointsTransaction, error)
}

type ledgerUC struct {
	customers repository.CustomerRepository
	ledger    repository.TransactionRepository
	tm        repository.TransactionManager
	log       *zerolog.Logger
}

func NewLedgerUseCase(
	customers repository.CustomerRepository,
	ledger repository.TransactionRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *ledgerUC {
	return &ledgerUC{customers: customers, ledger: ledger, tm: tm, log: logger}
}

func (u *ledgerUC) Award(ctx context.Context, partnerID, externalCustomerID string, points int64, metadata map[string]string) (*model.PointsTransaction, int64, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.Award")()

	if points <= 0 {
		return nil, 0, domain.ErrInvalidAmount
	}

	var (
		txn        *model.PointsTransaction
		newBalance int64
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.tm.Lock(ctx, tx, customerLockKey(partnerID, externalCustomerID)); err != nil {
			return err
		}

		// Unknown customers are not auto-created here; the shadow path owns
		// that flow.
		c, err := u.customers.FindByExternalID(ctx, tx, partnerID, externalCustomerID)
		if err != nil {
			return err
		}

		txn, err = model.NewPointsTransaction(c.UniversalID, partnerID, externalCustomerID, points, model.TransactionAward, "", metadata)
		if err != nil {
			return err
		}
		if err := u.ledger.Append(ctx, tx, txn); err != nil {
			return err
		}
		newBalance, err = u.customers.AdjustBalance(ctx, tx, c.ID, points)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	metrics.AddPointsMoved("award", points)
	u.log.Info().
		Str("transfer_id", txn.TransferID).
		Str("partner_id", partnerID).
		Int64("points", points).
		Msg("points awarded")
	return txn, newBalance, nil
}

func (u *ledgerUC) Redeem(ctx context.Context, partnerID, externalCustomerID string, points int64, purpose string, metadata map[string]string) (*model.PointsTransaction, int64, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.Redeem")()

	if points <= 0 {
		return nil, 0, domain.ErrInvalidAmount
	}
	if strings.TrimSpace(purpose) == "" {
		return nil, 0, domain.ErrMissingPurpose
	}

	var (
		txn        *model.PointsTransaction
		newBalance int64
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.tm.Lock(ctx, tx, customerLockKey(partnerID, externalCustomerID)); err != nil {
			return err
		}

		c, err := u.customers.FindByExternalID(ctx, tx, partnerID, externalCustomerID)
		if err != nil {
			return err
		}
		if c.PointsBalance < points {
			return domain.ErrInsufficientBalance
		}

		txn, err = model.NewPointsTransaction(c.UniversalID, partnerID, externalCustomerID, -points, model.TransactionRedeem, purpose, metadata)
		if err != nil {
			return err
		}
		if err := u.ledger.Append(ctx, tx, txn); err != nil {
			return err
		}
		// AdjustBalance is conditional on the row still covering the amount,
		// so even a raced decrement cannot take the balance negative.
		newBalance, err = u.customers.AdjustBalance(ctx, tx, c.ID, -points)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	metrics.AddPointsMoved("redeem", points)
	u.log.Info().
		Str("transfer_id", txn.TransferID).
		Str("partner_id", partnerID).
		Int64("points", points).
		Str("purpose", purpose).
		Msg("points redeemed")
	return txn, newBalance, nil
}

func (u *ledgerUC) GetBalance(ctx context.Context, partnerID, externalCustomerID string) (int64, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.GetBalance")()

	c, err := u.customers.FindByExternalID(ctx, repository.NoTX, partnerID, externalCustomerID)
	if err != nil {
		return 0, err
	}
	return c.PointsBalance, nil
}

func (u *ledgerUC) History(ctx context.Context, partnerID, externalCustomerID string, limit int) ([]*model.PointsTransaction, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.History")()

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return u.ledger.ListByCustomer(ctx, repository.NoTX, partnerID, externalCustomerID, limit)
}
