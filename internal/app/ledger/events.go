package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bank/internal/domain"
	"bank/internal/util"
)

const (
	EventTypeTransactionSettled = "TRANSACTION_SETTLED"
	EventTypeTransactionFailed  = "TRANSACTION_FAILED"
)

// TransactionEvent публикуется во внешний мир через outbox после фиксации
// транзакции хранилища, так что событие никогда не описывает откатившееся
// изменение.
type TransactionEvent struct {
	TransactionID        string    `json:"transaction_id"`
	Type                 string    `json:"type"`
	Status               string    `json:"status"`
	SourceAccountID      string    `json:"source_account_id"`
	DestinationAccountID string    `json:"destination_account_id,omitempty"`
	Amount               int64     `json:"amount"`
	Reason               string    `json:"reason,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
}

func (s *ledgerService) enqueueEventTx(ctx context.Context, tx domain.Tx, transaction *domain.Transaction, reason string) error {
	eventType := EventTypeTransactionSettled
	if transaction.Status == domain.TransactionStatusFailed {
		eventType = EventTypeTransactionFailed
	}

	event := TransactionEvent{
		TransactionID:   transaction.ID,
		Type:            string(transaction.Type),
		Status:          string(transaction.Status),
		SourceAccountID: transaction.SourceAccountID,
		Amount:          transaction.Amount,
		Reason:          reason,
		Timestamp:       time.Now(),
	}
	if transaction.DestinationAccountID != nil {
		event.DestinationAccountID = *transaction.DestinationAccountID
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction event: %w", err)
	}

	msg := &domain.OutboxMessage{
		ID:            util.GenerateUUID(),
		TransactionID: transaction.ID,
		EventType:     eventType,
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     time.Now(),
	}
	return s.outboxRepo.CreateMessageTx(ctx, tx, msg)
}
