package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	defaultTxAttempts = 5
	defaultTxTimeout  = 15 * time.Second
)

type TxOption func(*UnitOfWork)

func WithTxAttempts(attempts int) TxOption {
	return func(u *UnitOfWork) {
		if attempts > 0 {
			u.attempts = attempts
		}
	}
}

// WithTxTimeout caps a transaction unless the caller's deadline is already shorter.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(u *UnitOfWork) {
		if timeout > 0 {
			u.timeout = timeout
		}
	}
}

type txContextKey struct{}

// WithTransaction binds tx to ctx so BaseRepository calls go through it.
func WithTransaction(ctx context.Context, tx *firestore.Transaction) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

func TransactionFrom(ctx context.Context) (*firestore.Transaction, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*firestore.Transaction)
	return tx, ok && tx != nil
}

// UnitOfWork runs callbacks inside a Firestore transaction carried on the context. Nested calls
// join the outer transaction.
type UnitOfWork struct {
	provider *Provider
	attempts int
	timeout  time.Duration
}

func NewUnitOfWork(provider *Provider, opts ...TxOption) *UnitOfWork {
	u := &UnitOfWork{provider: provider, attempts: defaultTxAttempts, timeout: defaultTxTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	return u
}

// RunInTx may invoke fn several times when Firestore retries on contention.
func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TransactionFrom(ctx); ok {
		return fn(ctx)
	}
	if u == nil || u.provider == nil {
		return errors.New("firestore: unit of work has no provider")
	}
	client, err := u.provider.Client(ctx)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > u.timeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	var fnErr error
	err = client.RunTransaction(ctx, func(txCtx context.Context, tx *firestore.Transaction) error {
		fnErr = fn(WithTransaction(txCtx, tx))
		return fnErr
	}, firestore.MaxAttempts(u.attempts))
	if fnErr != nil && errors.Is(err, fnErr) {
		// callback errors surface unwrapped so service sentinels stay comparable
		return fnErr
	}
	return WrapError("transaction", err)
}
