package handlers

import (
	"context"
	"time"
)

// contextKey - приватный тип для ключей контекста, чтобы не пересекаться
// с чужими значениями
type contextKey string

// IdentityKey - ключ контекста с идентичностью аутентифицированного запроса
const IdentityKey contextKey = "identity"

// Identity описывает аутентифицированную сессию запроса.
// Кладется в контекст auth middleware после проверки cookie
type Identity struct {
	Username  string    // username учетки из токена
	TokenID   string    // jti токена, нужен для отзыва при logout
	ExpiresAt time.Time // когда сессия истекает
}

// IdentityFromContext достает Identity из контекста запроса.
// Возвращает nil для анонимных запросов
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(IdentityKey).(*Identity)
	return identity
}

// ContextWithIdentity кладет Identity в контекст
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}
