package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"bank/internal/domain"
	"bank/internal/util"

	"go.uber.org/zap"
)

// ApprovalResult - итог пакетного подтверждения: каждый идентификатор
// обрабатывается независимо, поэтому частичный успех ожидаем.
type ApprovalResult struct {
	Succeeded []*domain.Transaction
	Failed    []*domain.Transaction
}

func (s *ledgerService) RequestTransfer(ctx context.Context, sourceAccountID, destinationAccountID string, amount int64, userNote string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if sourceAccountID == destinationAccountID {
		return nil, domain.ErrDuplicateParties
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Не удалось начать транзакцию для заявки на перевод", zap.String("source_account_id", sourceAccountID), zap.Error(err))
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	transaction, err := s.requestTransferTx(ctx, tx, sourceAccountID, destinationAccountID, amount, userNote)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Не удалось зафиксировать заявку на перевод", zap.String("source_account_id", sourceAccountID), zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Заявка на перевод создана",
		zap.String("transaction_id", transaction.ID),
		zap.String("source_account_id", sourceAccountID),
		zap.String("destination_account_id", destinationAccountID),
		zap.Int64("amount", amount))
	return transaction, nil
}

func (s *ledgerService) requestTransferTx(ctx context.Context, tx domain.Tx, sourceAccountID, destinationAccountID string, amount int64, userNote string) (*domain.Transaction, error) {
	sourceUser, err := s.directory.ResolveUserByAccount(ctx, tx, sourceAccountID)
	if err != nil {
		return nil, err
	}
	if _, err := s.directory.ResolveUserByAccount(ctx, tx, destinationAccountID); err != nil {
		return nil, err
	}

	if sourceUser.Account.Balance < amount {
		return nil, domain.ErrInsufficientBalance
	}

	// Баланс здесь не меняется: деньги двинутся только после подтверждения
	// менеджером, где достаточность средств проверяется повторно.
	transaction := &domain.Transaction{
		ID:                   util.GenerateUUID(),
		Type:                 domain.TransactionTypeTransfer,
		Status:               domain.TransactionStatusPending,
		SourceAccountID:      sourceAccountID,
		DestinationAccountID: &destinationAccountID,
		Amount:               amount,
		CreatedAt:            time.Now(),
	}
	if userNote != "" {
		transaction.UserNote = &userNote
	}
	if err := s.transactionRepo.CreateTransactionTx(ctx, tx, transaction); err != nil {
		return nil, err
	}
	return transaction, nil
}

func (s *ledgerService) ApproveTransactions(ctx context.Context, transactionIDs []string) (*ApprovalResult, error) {
	pending, err := s.transactionRepo.GetPendingByIDsTx(ctx, s.db, transactionIDs)
	if err != nil {
		return nil, err
	}

	pendingByID := make(map[string]*domain.Transaction, len(pending))
	for _, transaction := range pending {
		pendingByID[transaction.ID] = transaction
	}

	result := &ApprovalResult{}
	for _, id := range transactionIDs {
		transaction, ok := pendingByID[id]
		if !ok {
			s.logger.Warn("Транзакция пропущена: не найдена или уже завершена", zap.String("transaction_id", id))
			continue
		}

		approved, err := s.approveOne(ctx, transaction)
		if err == nil {
			result.Succeeded = append(result.Succeeded, approved)
			continue
		}

		s.logger.Warn("Перевод не подтвержден, транзакция помечается как FAILED",
			zap.String("transaction_id", transaction.ID),
			zap.Error(err))
		failed, failErr := s.failTransaction(ctx, transaction, err)
		if failErr != nil {
			s.logger.Error("Не удалось пометить транзакцию как FAILED",
				zap.String("transaction_id", transaction.ID),
				zap.Error(failErr))
			continue
		}
		result.Failed = append(result.Failed, failed)
	}

	s.logger.Info("Пакетное подтверждение завершено",
		zap.Int("requested", len(transactionIDs)),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

// approveOne подтверждает один перевод: перемещение денег и переход
// PENDING -> SUCCESS фиксируются одной транзакцией хранилища.
func (s *ledgerService) approveOne(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	if transaction.DestinationAccountID == nil {
		return nil, fmt.Errorf("transfer %s has no destination account", transaction.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	approved, err := s.approveOneTx(ctx, tx, transaction)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return approved, nil
}

func (s *ledgerService) approveOneTx(ctx context.Context, tx domain.Tx, transaction *domain.Transaction) (*domain.Transaction, error) {
	sourceAccountID := transaction.SourceAccountID
	destinationAccountID := *transaction.DestinationAccountID

	// Предусловия заявки проверяются заново: с момента ее создания балансы
	// и статусы пользователей могли измениться.
	if _, err := s.directory.ResolveUserByAccount(ctx, tx, sourceAccountID); err != nil {
		return nil, err
	}
	if _, err := s.directory.ResolveUserByAccount(ctx, tx, destinationAccountID); err != nil {
		return nil, err
	}

	// Обе строки блокируются в порядке возрастания идентификатора, чтобы два
	// встречных перевода между одной парой счетов не взяли блокировки
	// крест-накрест.
	lockOrder := []string{sourceAccountID, destinationAccountID}
	sort.Strings(lockOrder)
	locked := make(map[string]*domain.Account, 2)
	for _, accountID := range lockOrder {
		account, err := s.accountRepo.GetAccountByIDForUpdateTx(ctx, tx, accountID)
		if err != nil {
			return nil, err
		}
		locked[accountID] = account
	}

	if locked[sourceAccountID].Balance < transaction.Amount {
		return nil, domain.ErrInsufficientBalance
	}

	if _, err := s.accountRepo.AddToBalanceTx(ctx, tx, sourceAccountID, -transaction.Amount); err != nil {
		return nil, err
	}
	if _, err := s.accountRepo.AddToBalanceTx(ctx, tx, destinationAccountID, transaction.Amount); err != nil {
		return nil, err
	}

	approved, err := s.transactionRepo.FinalizeTransactionTx(ctx, tx, transaction.ID, domain.TransactionStatusSuccess, nil)
	if err != nil {
		return nil, err
	}
	if err := s.enqueueEventTx(ctx, tx, approved, ""); err != nil {
		return nil, err
	}
	return approved, nil
}

// failTransaction переводит заявку в FAILED с причиной в системной заметке.
// Баланс при этом не меняется; ошибка подтверждения не прерывает пакет.
func (s *ledgerService) failTransaction(ctx context.Context, transaction *domain.Transaction, cause error) (*domain.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	systemNote := cause.Error()
	failed, err := s.transactionRepo.FinalizeTransactionTx(ctx, tx, transaction.ID, domain.TransactionStatusFailed, &systemNote)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, domain.ErrTransactionNotPending) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to finalize transaction %s: %w", transaction.ID, err)
	}

	if err := s.enqueueEventTx(ctx, tx, failed, systemNote); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return failed, nil
}
