package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bank/internal/app/directory"
	"bank/internal/auth"
	"bank/internal/domain"
	"bank/internal/repository/accounts_repo"
	"bank/internal/repository/outbox_repo"
	"bank/internal/repository/transactions_repo"
	"bank/internal/repository/users_repo"
	"bank/internal/util"

	"go.uber.org/zap"
)

// LedgerService - единственный владелец баланса счета: любое изменение
// проходит через транзакцию хранилища и создает ровно одну запись журнала.
type LedgerService interface {
	SignUp(ctx context.Context, username, password, name string, role domain.UserRole, openingBalance int64) (*domain.User, error)
	SignIn(ctx context.Context, username, password string) (*domain.User, error)
	GetActiveUser(ctx context.Context, userID string) (*domain.User, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
	Deposit(ctx context.Context, userID string, amount int64) (*domain.Account, *domain.Transaction, error)
	Withdraw(ctx context.Context, userID string, amount int64) (*domain.Account, *domain.Transaction, error)
	RequestTransfer(ctx context.Context, sourceAccountID, destinationAccountID string, amount int64, userNote string) (*domain.Transaction, error)
	ApproveTransactions(ctx context.Context, transactionIDs []string) (*ApprovalResult, error)
	ListTransactions(ctx context.Context, order transactions_repo.TransactionOrderQuery) ([]*domain.Transaction, error)
	ListUserTransactions(ctx context.Context, userID string, order transactions_repo.TransactionOrderQuery) ([]*domain.Transaction, error)
}

type ledgerService struct {
	db              domain.DB
	directory       directory.Service
	userRepo        users_repo.UserRepository
	accountRepo     accounts_repo.AccountRepository
	transactionRepo transactions_repo.TransactionRepository
	outboxRepo      outbox_repo.OutboxRepository
	logger          *zap.Logger
}

func NewLedgerService(
	db domain.DB,
	dir directory.Service,
	userRepo users_repo.UserRepository,
	accountRepo accounts_repo.AccountRepository,
	transactionRepo transactions_repo.TransactionRepository,
	outboxRepo outbox_repo.OutboxRepository,
	logger *zap.Logger,
) LedgerService {
	return &ledgerService{
		db:              db,
		directory:       dir,
		userRepo:        userRepo,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		outboxRepo:      outboxRepo,
		logger:          logger,
	}
}

func (s *ledgerService) SignUp(ctx context.Context, username, password, name string, role domain.UserRole, openingBalance int64) (*domain.User, error) {
	if role == domain.RoleCustomer && openingBalance <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Не удалось начать транзакцию для регистрации", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	_, err = s.userRepo.GetUserByUsernameTx(ctx, tx, username)
	if err == nil {
		tx.Rollback()
		return nil, domain.ErrUsernameTaken
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		tx.Rollback()
		return nil, fmt.Errorf("failed to check existing username: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           util.GenerateUUID(),
		Username:     username,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		Activated:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.CreateUserTx(ctx, tx, user); err != nil {
		tx.Rollback()
		return nil, err
	}

	if role == domain.RoleCustomer {
		account := &domain.Account{
			ID:        util.GenerateUUID(),
			UserID:    user.ID,
			Balance:   openingBalance,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.accountRepo.CreateAccountTx(ctx, tx, account); err != nil {
			tx.Rollback()
			return nil, err
		}
		user.Account = account
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Не удалось зафиксировать транзакцию регистрации", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Пользователь зарегистрирован",
		zap.String("user_id", user.ID),
		zap.String("role", string(role)))
	return user, nil
}

func (s *ledgerService) SignIn(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.userRepo.GetUserByUsernameTx(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if !auth.ComparePassword(user.PasswordHash, password) {
		return nil, domain.ErrWrongPassword
	}
	return user, nil
}

func (s *ledgerService) GetActiveUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.directory.ResolveActiveUser(ctx, s.db, userID)
}

func (s *ledgerService) GetBalance(ctx context.Context, userID string) (int64, error) {
	user, err := s.directory.ResolveActiveUser(ctx, s.db, userID)
	if err != nil {
		return 0, err
	}
	if user.Account == nil {
		return 0, domain.ErrAccountNotFound
	}
	return user.Account.Balance, nil
}

func (s *ledgerService) Deposit(ctx context.Context, userID string, amount int64) (*domain.Account, *domain.Transaction, error) {
	if amount <= 0 {
		return nil, nil, domain.ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Не удалось начать транзакцию для пополнения", zap.String("user_id", userID), zap.Error(err))
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	account, transaction, err := s.mutateBalanceTx(ctx, tx, userID, amount, domain.TransactionTypeDeposit)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Не удалось зафиксировать транзакцию пополнения", zap.String("user_id", userID), zap.Error(err))
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Пополнение выполнено",
		zap.String("user_id", userID),
		zap.String("transaction_id", transaction.ID),
		zap.Int64("amount", amount),
		zap.Int64("new_balance", account.Balance))
	return account, transaction, nil
}

func (s *ledgerService) Withdraw(ctx context.Context, userID string, amount int64) (*domain.Account, *domain.Transaction, error) {
	if amount <= 0 {
		return nil, nil, domain.ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Не удалось начать транзакцию для снятия", zap.String("user_id", userID), zap.Error(err))
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	account, transaction, err := s.mutateBalanceTx(ctx, tx, userID, amount, domain.TransactionTypeWithdraw)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Не удалось зафиксировать транзакцию снятия", zap.String("user_id", userID), zap.Error(err))
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Снятие выполнено",
		zap.String("user_id", userID),
		zap.String("transaction_id", transaction.ID),
		zap.Int64("amount", amount),
		zap.Int64("new_balance", account.Balance))
	return account, transaction, nil
}

// mutateBalanceTx выполняет общую часть пополнения и снятия: изменение
// баланса и запись журнала в одной транзакции хранилища. Достаточность
// средств проверяется репозиторием по значению, видимому под блокировкой
// строки, а не по внешнему снимку.
func (s *ledgerService) mutateBalanceTx(ctx context.Context, tx domain.Tx, userID string, amount int64, transactionType domain.TransactionType) (*domain.Account, *domain.Transaction, error) {
	user, err := s.directory.ResolveActiveUser(ctx, tx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user.Account == nil {
		return nil, nil, domain.ErrAccountNotFound
	}

	delta := amount
	if transactionType == domain.TransactionTypeWithdraw {
		delta = -amount
	}

	account, err := s.accountRepo.AddToBalanceTx(ctx, tx, user.Account.ID, delta)
	if err != nil {
		return nil, nil, err
	}

	transaction := &domain.Transaction{
		ID:              util.GenerateUUID(),
		Type:            transactionType,
		Status:          domain.TransactionStatusSuccess,
		SourceAccountID: account.ID,
		Amount:          amount,
		CreatedAt:       time.Now(),
	}
	if err := s.transactionRepo.CreateTransactionTx(ctx, tx, transaction); err != nil {
		return nil, nil, err
	}

	if err := s.enqueueEventTx(ctx, tx, transaction, ""); err != nil {
		return nil, nil, err
	}

	return account, transaction, nil
}

func (s *ledgerService) ListTransactions(ctx context.Context, order transactions_repo.TransactionOrderQuery) ([]*domain.Transaction, error) {
	return s.transactionRepo.ListTransactionsTx(ctx, s.db, order)
}

func (s *ledgerService) ListUserTransactions(ctx context.Context, userID string, order transactions_repo.TransactionOrderQuery) ([]*domain.Transaction, error) {
	user, err := s.directory.ResolveActiveUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user.Account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return s.transactionRepo.ListAccountTransactionsTx(ctx, s.db, user.Account.ID, order)
}
