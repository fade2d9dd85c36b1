package auth

import "bank/internal/domain"

type Operation string

const (
	OpGetBalance          Operation = "accounts.get_balance"
	OpDeposit             Operation = "accounts.deposit"
	OpWithdraw            Operation = "accounts.withdraw"
	OpRequestTransfer     Operation = "transactions.request_transfer"
	OpApproveTransactions Operation = "transactions.approve"
	OpListTransactions    Operation = "transactions.list_all"
	OpListOwnTransactions Operation = "transactions.list_own"
)

// allowedOperations - явная замена динамической RBAC-проверки через
// декораторы: роль сверяется с операцией до вызова бизнес-логики.
var allowedOperations = map[domain.UserRole]map[Operation]bool{
	domain.RoleCustomer: {
		OpGetBalance:          true,
		OpDeposit:             true,
		OpWithdraw:            true,
		OpRequestTransfer:     true,
		OpListOwnTransactions: true,
	},
	domain.RoleManager: {
		OpApproveTransactions: true,
		OpListTransactions:    true,
	},
}

func Allow(role domain.UserRole, op Operation) bool {
	return allowedOperations[role][op]
}
