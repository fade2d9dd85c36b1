package accounts_repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bank/internal/domain"

	"github.com/lib/pq"
)

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *accountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := querier.ExecContext(ctx, query,
		account.ID, account.UserID, account.Balance, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return domain.ErrAccountAlreadyExists
		}
		return fmt.Errorf("failed to create account for user %s: %w", account.UserID, err)
	}
	return nil
}

func (r *accountRepository) GetAccountByIDForUpdateTx(ctx context.Context, querier domain.Querier, accountID string) (*domain.Account, error) {
	query := `
		SELECT id, user_id, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE -- Важно: блокируем строку до конца транзакции
	`
	return r.scanAccount(querier.QueryRowContext(ctx, query, accountID), accountID)
}

func (r *accountRepository) AddToBalanceTx(ctx context.Context, querier domain.Querier, accountID string, delta int64) (*domain.Account, error) {
	// Проверка достаточности средств выполняется по значению, видимому внутри
	// транзакции, а не по ранее прочитанному снимку.
	if delta < 0 {
		checkBalanceQuery := `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`
		var currentBalance int64
		err := querier.QueryRowContext(ctx, checkBalanceQuery, accountID).Scan(&currentBalance)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, domain.ErrAccountNotFound
			}
			return nil, fmt.Errorf("failed to check current balance for account %s: %w", accountID, err)
		}
		if currentBalance+delta < 0 {
			return nil, domain.ErrInsufficientBalance
		}
	}

	query := `
		UPDATE accounts
		SET balance = balance + $1, updated_at = $2
		WHERE id = $3
		RETURNING id, user_id, balance, created_at, updated_at
	`
	account := &domain.Account{}
	err := querier.QueryRowContext(ctx, query, delta, time.Now(), accountID).Scan(
		&account.ID,
		&account.UserID,
		&account.Balance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to update account balance for %s: %w", accountID, err)
	}
	return account, nil
}

func (r *accountRepository) scanAccount(row *sql.Row, accountID string) (*domain.Account, error) {
	account := &domain.Account{}
	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.Balance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account %s: %w", accountID, err)
	}
	return account, nil
}
