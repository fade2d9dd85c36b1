package directory

import (
	"context"

	"bank/internal/domain"
	"bank/internal/repository/users_repo"
)

// Service проверяет и возвращает пользователей перед любой операцией над
// балансом: пользователь должен существовать и быть активированным.
// Методы принимают domain.Querier и поэтому встраиваются в транзакцию
// вызывающей стороны.
type Service interface {
	ResolveActiveUser(ctx context.Context, querier domain.Querier, userID string) (*domain.User, error)
	ResolveUserByAccount(ctx context.Context, querier domain.Querier, accountID string) (*domain.User, error)
}

type directoryService struct {
	userRepo users_repo.UserRepository
}

func NewService(userRepo users_repo.UserRepository) Service {
	return &directoryService{userRepo: userRepo}
}

func (s *directoryService) ResolveActiveUser(ctx context.Context, querier domain.Querier, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetUserByIDTx(ctx, querier, userID)
	if err != nil {
		return nil, err
	}
	if !user.Activated {
		return nil, domain.ErrUserDeactivated
	}
	return user, nil
}

func (s *directoryService) ResolveUserByAccount(ctx context.Context, querier domain.Querier, accountID string) (*domain.User, error) {
	user, err := s.userRepo.GetUserByAccountIDTx(ctx, querier, accountID)
	if err != nil {
		return nil, err
	}
	if !user.Activated {
		return nil, domain.ErrUserDeactivated
	}
	return user, nil
}
