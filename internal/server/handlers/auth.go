package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/dndserver/internal/crypto"
	"github.com/iudanet/dndserver/internal/server/revoke"
	"github.com/iudanet/dndserver/internal/server/session"
	"github.com/iudanet/dndserver/internal/server/storage"
	"github.com/iudanet/dndserver/pkg/api"
)

// SessionCookieName - имя cookie с сессионным токеном
const SessionCookieName = "login-token"

// AuthHandler обрабатывает запросы входа и выхода
type AuthHandler struct {
	logger     *slog.Logger
	accounts   storage.AccountStorage
	hasher     *crypto.Hasher
	codec      *session.Codec
	denylist   *revoke.Denylist
	sessionTTL time.Duration

	// dummyHash сжигает время верификации, когда учетки нет:
	// ответ на неизвестный username стоит столько же, сколько на
	// неверный пароль, иначе по таймингу можно перечислять учетки
	dummyHash string
}

// NewAuthHandler создает новый handler для аутентификации
func NewAuthHandler(
	logger *slog.Logger,
	accounts storage.AccountStorage,
	hasher *crypto.Hasher,
	codec *session.Codec,
	denylist *revoke.Denylist,
	sessionTTL time.Duration,
) (*AuthHandler, error) {
	dummyHash, err := hasher.Hash(context.Background(), "dndserver-dummy-password")
	if err != nil {
		return nil, err
	}

	return &AuthHandler{
		logger:     logger,
		accounts:   accounts,
		hasher:     hasher,
		codec:      codec,
		denylist:   denylist,
		sessionTTL: sessionTTL,
		dummyHash:  dummyHash,
	}, nil
}

// Login обрабатывает POST /api/v1/auth/login
// Проверяет пару (name, pass) и выставляет сессионную cookie.
// Неизвестный username и неверный пароль дают одинаковый 401 -
// причина отказа наружу не сообщается
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Pass == "" {
		h.sendError(w, "name and pass are required", http.StatusBadRequest)
		return
	}

	// Если клиент уже пришел с живой сессией, новую не выпускаем
	if identity := h.identityFromCookie(r); identity != nil {
		h.logger.DebugContext(ctx, "login with valid session, nothing to do",
			slog.String("username", identity.Username))
		h.sendJSON(w, api.LoginResponse{
			Username:  identity.Username,
			ExpiresAt: identity.ExpiresAt.Unix(),
		}, http.StatusOK)
		return
	}

	account, err := h.accounts.GetAccountByUsername(ctx, req.Name)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			// Сжигаем столько же CPU, сколько стоила бы настоящая проверка
			_, _ = h.hasher.Verify(ctx, req.Pass, h.dummyHash)
			h.logger.DebugContext(ctx, "login for unknown account")
			h.sendError(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get account", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	ok, err := h.hasher.Verify(ctx, req.Pass, account.PasswordHash)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to verify password",
			slog.String("username", account.Username),
			slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if !ok {
		h.logger.DebugContext(ctx, "login with wrong password",
			slog.String("username", account.Username))
		h.sendError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, claims, err := h.codec.Issue(account.Username, h.sessionTTL)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue session token",
			slog.String("username", account.Username),
			slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// last_login - метаданные, их потеря не должна ломать вход
	if err := h.accounts.UpdateLastLogin(ctx, account.Username, time.Now()); err != nil {
		h.logger.WarnContext(ctx, "failed to update last login",
			slog.String("username", account.Username),
			slog.Any("error", err))
	}

	expiresAt := claims.ExpiresAt.Time
	http.SetCookie(w, sessionCookie(token, expiresAt))

	h.logger.InfoContext(ctx, "login successful", slog.String("username", account.Username))

	h.sendJSON(w, api.LoginResponse{
		Username:  account.Username,
		ExpiresAt: expiresAt.Unix(),
	}, http.StatusOK)
}

// Logout обрабатывает POST /api/v1/auth/logout
// Отзывает токен через denylist и гасит cookie на клиенте.
// Идемпотентен: без cookie или с уже мертвым токеном тоже отвечает 204
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if claims, err := h.codec.Validate(cookie.Value); err == nil {
			if err := h.denylist.Revoke(claims.ID, claims.ExpiresAt.Time); err != nil {
				h.logger.ErrorContext(ctx, "failed to revoke session token", slog.Any("error", err))
				h.sendError(w, "internal server error", http.StatusInternalServerError)
				return
			}
			h.logger.InfoContext(ctx, "logout", slog.String("username", claims.Subject))
		}
	}

	http.SetCookie(w, expiredSessionCookie())
	w.WriteHeader(http.StatusNoContent)
}

// Session обрабатывает GET /api/v1/auth/session
// Возвращает идентичность текущей сессии; маршрут закрыт RequireAuth
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	if identity == nil {
		// Сюда можно попасть только мимо middleware - это баг роутинга
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	h.sendJSON(w, api.SessionResponse{
		Username:  identity.Username,
		ExpiresAt: identity.ExpiresAt.Unix(),
	}, http.StatusOK)
}

// identityFromCookie тихо проверяет сессионную cookie запроса.
// Возвращает nil, если cookie нет или токен не прошел проверку
func (h *AuthHandler) identityFromCookie(r *http.Request) *Identity {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil
	}
	claims, err := h.codec.Validate(cookie.Value)
	if err != nil {
		return nil
	}
	revoked, err := h.denylist.IsRevoked(claims.ID)
	if err != nil || revoked {
		return nil
	}
	if _, err := h.accounts.GetAccountByUsername(r.Context(), claims.Subject); err != nil {
		return nil
	}
	return &Identity{
		Username:  claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
}

// sessionCookie собирает Set-Cookie с сессионным токеном
func sessionCookie(token string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// expiredSessionCookie собирает Set-Cookie, стирающий сессию на клиенте
func expiredSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// sendJSON отправляет JSON ответ с заданным статусом
func (h *AuthHandler) sendJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ошибку с заданным статусом
func (h *AuthHandler) sendError(w http.ResponseWriter, message string, status int) {
	h.sendJSON(w, api.ErrorResponse{Error: message}, status)
}
