package gateway

import (
	"errors"
	"fmt"
)

// Таксономия ошибок партнерских API
var (
	// ErrNotFound - пользователь или платформа неизвестны партнеру
	ErrNotFound = errors.New("gateway: user not found")
	// ErrUnauthorized - неверная подпись или учетные данные;
	// ошибка конфигурации, повтор бесполезен
	ErrUnauthorized = errors.New("gateway: unauthorized")
	// ErrTransient - сеть/таймаут/5xx; безопасно повторить ограниченное
	// число раз
	ErrTransient = errors.New("gateway: transient failure")
	// ErrConfiguration - секреты платформы не заполнены
	ErrConfiguration = errors.New("gateway: platform credentials missing")
)

// RemoteError представляет явный отказ партнера
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("gateway: partner rejected: %s", e.Message)
}

// NewRemoteError создает новую ошибку отказа партнера
func NewRemoteError(message string) *RemoteError {
	return &RemoteError{Message: message}
}
