package postgres

import "errors"

// Ошибки заявок
var (
	ErrRequestNotFound = errors.New("request not found")
	ErrWrongStatus     = errors.New("request is not in expected status")
)

// Ошибки балансов
var (
	ErrInsufficientTickets = errors.New("insufficient tickets")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrReferrerNotFound    = errors.New("referrer not found")
)

// Ошибки справочников
var (
	ErrPlatformNotFound = errors.New("platform not found")
	ErrPlatformExists   = errors.New("platform already exists")
	ErrCardNotFound     = errors.New("collection card not found")
	ErrNoActiveCard     = errors.New("no active collection card")
	ErrAdminNotFound    = errors.New("admin not found")
)
