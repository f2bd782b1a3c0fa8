package service

import "errors"

// Ошибки валидации пользовательского ввода
var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidCard   = errors.New("invalid card number")
	ErrInvalidUserID = errors.New("invalid platform user id")
)

// Ошибки жизненного цикла заявок
var (
	ErrRequestNotFound = errors.New("request not found")
	ErrAlreadyDecided  = errors.New("request already decided")
)

// Ошибки балансов
var (
	ErrInsufficientTickets = errors.New("insufficient tickets")
	ErrInsufficientFunds   = errors.New("insufficient funds")
)
