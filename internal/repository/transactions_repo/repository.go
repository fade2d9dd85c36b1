package transactions_repo

import (
	"context"

	"bank/internal/domain"
)

// TransactionOrderQuery задает направление сортировки ("asc"/"desc") по
// отдельным полям журнала. Пустое значение - поле не участвует в сортировке.
type TransactionOrderQuery struct {
	Type      string
	Amount    string
	CreatedAt string
}

type TransactionRepository interface {
	CreateTransactionTx(ctx context.Context, querier domain.Querier, transaction *domain.Transaction) error
	// GetPendingByIDsTx возвращает только записи со статусом PENDING;
	// неизвестные и уже завершенные идентификаторы молча пропускаются.
	GetPendingByIDsTx(ctx context.Context, querier domain.Querier, ids []string) ([]*domain.Transaction, error)
	// FinalizeTransactionTx переводит PENDING-запись в терминальный статус
	// ровно один раз; повторный вызов возвращает domain.ErrTransactionNotPending.
	FinalizeTransactionTx(ctx context.Context, querier domain.Querier, id string, status domain.TransactionStatus, systemNote *string) (*domain.Transaction, error)
	ListTransactionsTx(ctx context.Context, querier domain.Querier, order TransactionOrderQuery) ([]*domain.Transaction, error)
	ListAccountTransactionsTx(ctx context.Context, querier domain.Querier, accountID string, order TransactionOrderQuery) ([]*domain.Transaction, error)
}
