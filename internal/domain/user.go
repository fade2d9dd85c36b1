package domain

import "time"

type UserRole string

const (
	RoleCustomer UserRole = "CUSTOMER"
	RoleManager  UserRole = "MANAGER"
)

type User struct {
	ID           string
	Username     string
	PasswordHash string
	Name         string
	Role         UserRole
	Activated    bool
	// Account заполняется только для клиентов; у менеджеров счета нет.
	Account   *Account
	CreatedAt time.Time
	UpdatedAt time.Time
}
