package auth

import (
	"testing"

	"bank/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestAllow(t *testing.T) {
	tests := []struct {
		role    domain.UserRole
		op      Operation
		allowed bool
	}{
		{domain.RoleCustomer, OpGetBalance, true},
		{domain.RoleCustomer, OpDeposit, true},
		{domain.RoleCustomer, OpWithdraw, true},
		{domain.RoleCustomer, OpRequestTransfer, true},
		{domain.RoleCustomer, OpListOwnTransactions, true},
		{domain.RoleCustomer, OpApproveTransactions, false},
		{domain.RoleCustomer, OpListTransactions, false},
		{domain.RoleManager, OpApproveTransactions, true},
		{domain.RoleManager, OpListTransactions, true},
		{domain.RoleManager, OpDeposit, false},
		{domain.RoleManager, OpWithdraw, false},
		{domain.RoleManager, OpRequestTransfer, false},
		{domain.RoleManager, OpGetBalance, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, Allow(tt.role, tt.op),
			"role %s, operation %s", tt.role, tt.op)
	}
}

func TestAllowUnknownRole(t *testing.T) {
	assert.False(t, Allow(domain.UserRole("AUDITOR"), OpGetBalance))
}
