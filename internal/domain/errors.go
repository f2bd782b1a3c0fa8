package domain

import "errors"

// Ошибки заявок
var (
	ErrRequestNotFound = errors.New("request not found")
	ErrAlreadyDecided  = errors.New("request already decided")
	ErrWrongStatus     = errors.New("request is not in expected status")
)

// Ошибки балансов
var (
	ErrInsufficientTickets = errors.New("insufficient tickets")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrBalanceNotFound     = errors.New("balance not found")
)

// Ошибки справочных данных
var (
	ErrPlatformNotFound = errors.New("platform not found")
	ErrCardNotFound     = errors.New("collection card not found")
	ErrAdminNotFound    = errors.New("admin not found")
	ErrNoActiveCard     = errors.New("no active collection card")
)
