package transactions_repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"bank/internal/domain"

	"github.com/lib/pq"
)

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *transactionRepository {
	return &transactionRepository{db: db}
}

const transactionColumns = `id, type, status, source_account_id, destination_account_id, amount, user_note, system_note, created_at`

func (r *transactionRepository) CreateTransactionTx(ctx context.Context, querier domain.Querier, transaction *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, type, status, source_account_id, destination_account_id, amount, user_note, system_note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := querier.ExecContext(ctx, query,
		transaction.ID,
		transaction.Type,
		transaction.Status,
		transaction.SourceAccountID,
		nullString(transaction.DestinationAccountID),
		transaction.Amount,
		nullString(transaction.UserNote),
		nullString(transaction.SystemNote),
		transaction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) GetPendingByIDsTx(ctx context.Context, querier domain.Querier, ids []string) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = ANY($1) AND status = $2
	`
	rows, err := querier.QueryContext(ctx, query, pq.Array(ids), domain.TransactionStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (r *transactionRepository) FinalizeTransactionTx(ctx context.Context, querier domain.Querier, id string, status domain.TransactionStatus, systemNote *string) (*domain.Transaction, error) {
	// Условие status = PENDING делает переход в терминальный статус
	// одноразовым даже при конкурирующих попытках завершения.
	query := `
		UPDATE transactions
		SET status = $1, system_note = $2
		WHERE id = $3 AND status = $4
		RETURNING ` + transactionColumns + `
	`
	row := querier.QueryRowContext(ctx, query, status, nullString(systemNote), id, domain.TransactionStatusPending)
	transaction, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrTransactionNotPending
		}
		return nil, fmt.Errorf("failed to finalize transaction %s: %w", id, err)
	}
	return transaction, nil
}

func (r *transactionRepository) ListTransactionsTx(ctx context.Context, querier domain.Querier, order TransactionOrderQuery) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
	` + buildOrderBy(order)
	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (r *transactionRepository) ListAccountTransactionsTx(ctx context.Context, querier domain.Querier, accountID string, order TransactionOrderQuery) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE source_account_id = $1 OR destination_account_id = $1
	` + buildOrderBy(order)
	rows, err := querier.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for account %s: %w", accountID, err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// buildOrderBy собирает ORDER BY из белого списка полей; направления вне
// asc/desc игнорируются. Без явной сортировки - новые записи первыми.
func buildOrderBy(order TransactionOrderQuery) string {
	var clauses []string
	for _, field := range []struct {
		column    string
		direction string
	}{
		{"type", order.Type},
		{"amount", order.Amount},
		{"created_at", order.CreatedAt},
	} {
		switch strings.ToLower(field.direction) {
		case "asc":
			clauses = append(clauses, field.column+" ASC")
		case "desc":
			clauses = append(clauses, field.column+" DESC")
		}
	}
	if len(clauses) == 0 {
		return `ORDER BY created_at DESC`
	}
	return `ORDER BY ` + strings.Join(clauses, ", ")
}

func scanTransactions(rows *sql.Rows) ([]*domain.Transaction, error) {
	var transactions []*domain.Transaction
	for rows.Next() {
		transaction := &domain.Transaction{}
		var destinationID, userNote, systemNote sql.NullString
		err := rows.Scan(
			&transaction.ID,
			&transaction.Type,
			&transaction.Status,
			&transaction.SourceAccountID,
			&destinationID,
			&transaction.Amount,
			&userNote,
			&systemNote,
			&transaction.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transaction.DestinationAccountID = stringPtr(destinationID)
		transaction.UserNote = stringPtr(userNote)
		transaction.SystemNote = stringPtr(systemNote)
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

func scanTransaction(row *sql.Row) (*domain.Transaction, error) {
	transaction := &domain.Transaction{}
	var destinationID, userNote, systemNote sql.NullString
	err := row.Scan(
		&transaction.ID,
		&transaction.Type,
		&transaction.Status,
		&transaction.SourceAccountID,
		&destinationID,
		&transaction.Amount,
		&userNote,
		&systemNote,
		&transaction.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	transaction.DestinationAccountID = stringPtr(destinationID)
	transaction.UserNote = stringPtr(userNote)
	transaction.SystemNote = stringPtr(systemNote)
	return transaction, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
