package domain

import "time"

// Account хранит баланс в минимальных единицах валюты (int64), чтобы
// исключить ошибки округления с плавающей точкой.
type Account struct {
	ID        string
	UserID    string
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
