package domain

import (
	"context"
	"database/sql"
)

// Querier объединяет *sql.DB и *sql.Tx, чтобы репозитории могли работать
// как внутри транзакции, так и без нее.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx - открытая транзакция хранилища. *sql.Tx реализует интерфейс напрямую.
type Tx interface {
	Querier
	Commit() error
	Rollback() error
}

// DB - хранилище, умеющее открывать транзакции.
type DB interface {
	Querier
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)
}
