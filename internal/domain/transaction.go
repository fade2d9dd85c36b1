package domain

import "time"

type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "DEPOSIT"
	TransactionTypeWithdraw TransactionType = "WITHDRAW"
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "PENDING"
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	TransactionStatusFailed  TransactionStatus = "FAILED"
)

// Transaction - запись в журнале движения средств. После перехода в SUCCESS
// или FAILED запись больше не изменяется; PENDING возможен только для TRANSFER.
type Transaction struct {
	ID              string
	Type            TransactionType
	Status          TransactionStatus
	SourceAccountID string
	// DestinationAccountID заполняется только для переводов.
	DestinationAccountID *string
	Amount               int64
	UserNote             *string
	SystemNote           *string
	CreatedAt            time.Time
}
