package domain

import "errors"

var ErrUserNotFound = errors.New("user not found")
var ErrUserDeactivated = errors.New("user is deactivated")
var ErrUsernameTaken = errors.New("username is already taken")
var ErrWrongPassword = errors.New("password is incorrect")
var ErrAccountNotFound = errors.New("account not found")
var ErrAccountAlreadyExists = errors.New("account already exists")
var ErrInvalidAmount = errors.New("amount must be greater than zero")
var ErrInsufficientBalance = errors.New("insufficient balance")
var ErrDuplicateParties = errors.New("source and destination accounts are the same")
var ErrTransactionNotPending = errors.New("transaction is not pending")
