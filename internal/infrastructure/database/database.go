package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bank/internal/domain"

	_ "github.com/lib/pq"
)

// NewPostgresDB открывает пул соединений и проверяет доступность базы.
func NewPostgresDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// SQLDatabase адаптирует *sql.DB к domain.DB: BeginTx у *sql.DB возвращает
// конкретный *sql.Tx, а сервисам нужен интерфейс domain.Tx.
type SQLDatabase struct {
	*sql.DB
}

func NewSQLDatabase(db *sql.DB) *SQLDatabase {
	return &SQLDatabase{DB: db}
}

func (d *SQLDatabase) BeginTx(ctx context.Context, opts *sql.TxOptions) (domain.Tx, error) {
	return d.DB.BeginTx(ctx, opts)
}

var _ domain.DB = (*SQLDatabase)(nil)
