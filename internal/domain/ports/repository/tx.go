package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager provides a thin abstraction to execute a function within
// a database transaction, passing the underlying transaction handle via `tx`.
//
// - Keeps use-case interfaces clean (no transaction types leaking out).
// - Allows repository methods that accept `tx` to run against a tx-bound
//   Exec/Query when one is in flight, and against the pool otherwise.
// - Repositories MUST gracefully accept a nil tx (non-transactional path).
//
// The concrete type of `tx` is infra-defined (pgx.Tx for Postgres).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
	// Lock serializes the transaction against every other transaction holding
	// the same key. Held until the surrounding transaction ends.
	Lock(ctx context.Context, tx Tx, key int64) error
}
