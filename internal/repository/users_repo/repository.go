package users_repo

import (
	"context"

	"bank/internal/domain"
)

type UserRepository interface {
	CreateUserTx(ctx context.Context, querier domain.Querier, user *domain.User) error
	GetUserByIDTx(ctx context.Context, querier domain.Querier, userID string) (*domain.User, error)
	GetUserByUsernameTx(ctx context.Context, querier domain.Querier, username string) (*domain.User, error)
	GetUserByAccountIDTx(ctx context.Context, querier domain.Querier, accountID string) (*domain.User, error)
}
