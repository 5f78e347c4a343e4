// Package bootstrap сидирует root-учетку при первом запуске.
//
// Дескриптор - TOML файл с секцией [credentials], его создает rootgen
// при установке. Пароль в нем лежит в открытом виде, поэтому loader
// никогда не логирует содержимое и ругается на слишком широкие права.
// После успешного bootstrap файл больше не нужен: авторитетным
// становится хеш в базе, дескриптор можно удалить
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/iudanet/dndserver/internal/crypto"
	"github.com/iudanet/dndserver/internal/models"
	"github.com/iudanet/dndserver/internal/server/storage"
	"github.com/iudanet/dndserver/internal/validation"
)

// DefaultRootName - имя root-учетки по конвенции
const DefaultRootName = "root"

// descriptor - структура TOML файла с root-креденшелами
type descriptor struct {
	Credentials models.RootCredentials `toml:"credentials"`
}

// Loader сидирует root-учетку из дескриптора
type Loader struct {
	accounts storage.AccountStorage
	hasher   *crypto.Hasher
	logger   *slog.Logger
}

// NewLoader создает Loader
func NewLoader(accounts storage.AccountStorage, hasher *crypto.Hasher, logger *slog.Logger) *Loader {
	return &Loader{
		accounts: accounts,
		hasher:   hasher,
		logger:   logger,
	}
}

// Run выполняет bootstrap: читает дескриптор по path и создает
// root-учетку, если ее еще нет. Идемпотентен - повторный запуск с
// существующей учеткой ничего не меняет и не ошибается.
//
// Нечитаемый или битый дескриптор фатален только если root-учетку
// больше неоткуда взять; если она уже в базе - это warning
func (l *Loader) Run(ctx context.Context, path string) error {
	creds, readErr := l.readDescriptor(path)

	name := DefaultRootName
	if readErr == nil && creds.Name != "" {
		name = creds.Name
	}

	// Сначала смотрим, есть ли учетка: если да, дескриптор не нужен
	_, err := l.accounts.GetAccountByUsername(ctx, name)
	switch {
	case err == nil:
		if readErr != nil {
			l.logger.Warn("root credentials descriptor unreadable, but root account exists",
				slog.String("path", path),
				slog.Any("error", readErr))
		} else {
			l.logger.Info("root account already exists, descriptor ignored",
				slog.String("username", name))
		}
		return nil
	case errors.Is(err, storage.ErrAccountNotFound):
		// Учетки нет - дескриптор обязателен
	default:
		return fmt.Errorf("failed to check root account: %w", err)
	}

	if readErr != nil {
		return fmt.Errorf("no root account and descriptor unusable: %w", readErr)
	}

	hash, err := l.hasher.Hash(ctx, creds.Pass)
	if err != nil {
		return fmt.Errorf("failed to hash root password: %w", err)
	}

	account := &models.Account{
		ID:           uuid.New().String(),
		Username:     name,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}

	if err := l.accounts.CreateAccount(ctx, account); err != nil {
		// Гонка двух bootstrap'ов: кто-то успел раньше, это не ошибка
		if errors.Is(err, storage.ErrAccountExists) {
			l.logger.Info("root account created concurrently", slog.String("username", name))
			return nil
		}
		return fmt.Errorf("failed to create root account: %w", err)
	}

	l.logger.Info("root account bootstrapped",
		slog.String("username", name),
		slog.String("descriptor", path))

	return nil
}

// readDescriptor читает и валидирует TOML дескриптор
func (l *Loader) readDescriptor(path string) (*models.RootCredentials, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat descriptor: %w", err)
	}

	// Файл с plaintext паролем не должен быть читаем группе/остальным
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
		l.logger.Warn("root credentials descriptor has loose permissions, expected 0600",
			slog.String("path", path),
			slog.String("mode", info.Mode().Perm().String()))
	}

	var d descriptor
	if _, err := toml.DecodeFile(path, &d); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor: %w", err)
	}

	if d.Credentials.Pass == "" {
		return nil, fmt.Errorf("descriptor has empty pass field")
	}
	if d.Credentials.Name != "" {
		if err := validation.ValidateUsername(d.Credentials.Name); err != nil {
			return nil, fmt.Errorf("descriptor has invalid name: %w", err)
		}
	}
	if err := validation.ValidatePassword(d.Credentials.Pass); err != nil {
		return nil, fmt.Errorf("descriptor has weak pass: %w", err)
	}

	return &d.Credentials, nil
}
