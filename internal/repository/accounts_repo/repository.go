package accounts_repo

import (
	"context"

	"bank/internal/domain"
)

type AccountRepository interface {
	CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error
	// GetAccountByIDForUpdateTx блокирует строку счета до конца транзакции.
	GetAccountByIDForUpdateTx(ctx context.Context, querier domain.Querier, accountID string) (*domain.Account, error)
	// AddToBalanceTx изменяет баланс на delta (может быть отрицательной) и
	// возвращает domain.ErrInsufficientBalance, если итог стал бы меньше нуля.
	// Вызывается только для строки, уже заблокированной через FOR UPDATE.
	AddToBalanceTx(ctx context.Context, querier domain.Querier, accountID string, delta int64) (*domain.Account, error)
}
