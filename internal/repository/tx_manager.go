package repository

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// TransactionManager manages database transactions via context injection.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
	// RunInSavepoint runs fn inside the transaction of ctx behind a savepoint:
	// an error from fn rolls back only fn's writes and the outer transaction
	// stays usable. Without a transaction in ctx it behaves like RunInTx.
	RunInSavepoint(ctx context.Context, fn func(txCtx context.Context) error) error
}

type transactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &transactionManager{db: db}
}

// RunInTx runs fn in a transaction. Repositories called with txCtx join it;
// a nested call reuses the outer transaction.
func (t *transactionManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (t *transactionManager) RunInSavepoint(ctx context.Context, fn func(txCtx context.Context) error) error {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	if !ok {
		return t.RunInTx(ctx, fn)
	}
	// gorm issues SAVEPOINT / ROLLBACK TO for a Transaction on an open tx.
	return tx.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, sp))
	})
}

// GetDB extracts the transaction DB from context if present, otherwise returns root DB.
func GetDB(ctx context.Context, rootDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return rootDB.WithContext(ctx)
}
