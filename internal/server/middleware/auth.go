package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/dndserver/internal/server/handlers"
	"github.com/iudanet/dndserver/internal/server/revoke"
	"github.com/iudanet/dndserver/internal/server/session"
	"github.com/iudanet/dndserver/internal/server/storage"
)

// SessionAuth проверяет сессионную cookie запросов.
// Цепочка проверок одна для всех маршрутов: открыть и проверить токен,
// спросить denylist, убедиться что учетка еще существует. Различается
// только реакция на провал - RequireAuth отвечает 401, OptionalAuth
// пропускает запрос дальше как анонимный
type SessionAuth struct {
	logger   *slog.Logger
	codec    *session.Codec
	denylist *revoke.Denylist
	accounts storage.AccountStorage
}

// NewSessionAuth создает middleware проверки сессий
func NewSessionAuth(
	logger *slog.Logger,
	codec *session.Codec,
	denylist *revoke.Denylist,
	accounts storage.AccountStorage,
) *SessionAuth {
	return &SessionAuth{
		logger:   logger,
		codec:    codec,
		denylist: denylist,
		accounts: accounts,
	}
}

// RequireAuth пропускает только аутентифицированные запросы,
// остальным отвечает 401 Unauthorized
func (a *SessionAuth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := a.resolve(r)
		if identity == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}

		ctx := handlers.ContextWithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth кладет идентичность в контекст, если она есть,
// но анонимные запросы тоже пропускает дальше
func (a *SessionAuth) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity := a.resolve(r); identity != nil {
			r = r.WithContext(handlers.ContextWithIdentity(r.Context(), identity))
		}
		next.ServeHTTP(w, r)
	})
}

// resolve превращает cookie запроса в Identity.
// Любой провал - просроченный, подделанный, отозванный токен или
// удаленная учетка - дает nil: запрос анонимный, деталей наружу нет
func (a *SessionAuth) resolve(r *http.Request) *handlers.Identity {
	cookie, err := r.Cookie(handlers.SessionCookieName)
	if err != nil {
		return nil
	}

	claims, err := a.codec.Validate(cookie.Value)
	if err != nil {
		// Истекший токен - штатный случай, подделка - повод насторожиться
		if errors.Is(err, session.ErrTokenExpired) {
			a.logger.Debug("expired session token", slog.String("remote_addr", r.RemoteAddr))
		} else {
			a.logger.Warn("invalid session token", slog.String("remote_addr", r.RemoteAddr))
		}
		return nil
	}

	revoked, err := a.denylist.IsRevoked(claims.ID)
	if err != nil {
		a.logger.Error("failed to check denylist", slog.Any("error", err))
		return nil
	}
	if revoked {
		a.logger.Debug("revoked session token", slog.String("username", claims.Subject))
		return nil
	}

	// Токен мог пережить учетку
	if _, err := a.accounts.GetAccountByUsername(r.Context(), claims.Subject); err != nil {
		if !errors.Is(err, storage.ErrAccountNotFound) {
			a.logger.Error("failed to resolve session subject", slog.Any("error", err))
		}
		return nil
	}

	return &handlers.Identity{
		Username:  claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
}
