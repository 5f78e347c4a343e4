package crypto

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Параметры Argon2id для хеширования паролей
// Подобраны для self-hosted деплоя: ~64MB памяти на хеш, один проход
const (
	// Argon2Time - количество итераций (time cost)
	Argon2Time = 1
	// Argon2Memory - объем памяти в KB (64MB = 64*1024 KB)
	Argon2Memory = 64 * 1024
	// Argon2Threads - количество параллельных потоков
	Argon2Threads = 4
	// Argon2KeyLen - длина выходного дайджеста в байтах
	Argon2KeyLen = 32
	// SaltSize - размер соли в байтах
	SaltSize = 16
)

// Hasher хеширует и проверяет пароли через Argon2id.
// Хеширование дорогое по CPU и памяти, поэтому количество одновременных
// вычислений ограничено семафором - остальные запросы ждут своей очереди
// вместо того чтобы выжирать всю память процесса
type Hasher struct {
	sem chan struct{}
}

// NewHasher создает Hasher с лимитом одновременных вычислений.
// maxConcurrent <= 0 означает лимит по количеству CPU
func NewHasher(maxConcurrent int) *Hasher {
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.GOMAXPROCS(0)
	}
	return &Hasher{sem: make(chan struct{}, maxConcurrent)}
}

// Hash вычисляет Argon2id хеш пароля со свежей случайной солью.
// Результат - PHC-строка вида:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<base64 salt>$<base64 digest>
//
// Параметры зашиты в строку, поэтому их можно менять между релизами
// без инвалидации уже сохраненных хешей
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.release()

	// Генерируем соль
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	digest := argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen)

	return encodePHC(salt, digest, Argon2Memory, Argon2Time, Argon2Threads), nil
}

// Verify проверяет пароль против сохраненной PHC-строки.
// Пересчитывает хеш с параметрами и солью из строки и сравнивает
// дайджесты за константное время.
// Возвращает false без ошибки при несовпадении пароля;
// ошибку - только если строка хеша не парсится
func (h *Hasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	salt, digest, memory, time, threads, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	if err := h.acquire(ctx); err != nil {
		return false, err
	}
	defer h.release()

	computed := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(digest)))

	// Сравнение за константное время, чтобы не утекал timing signal
	return subtle.ConstantTimeCompare(computed, digest) == 1, nil
}

// acquire занимает слот семафора или отваливается по контексту
func (h *Hasher) acquire(ctx context.Context) error {
	select {
	case h.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("hashing canceled: %w", ctx.Err())
	}
}

func (h *Hasher) release() {
	<-h.sem
}

// encodePHC собирает PHC-строку из соли и дайджеста
func encodePHC(salt, digest []byte, memory, time uint32, threads uint8) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		memory, time, threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	)
}

// decodePHC разбирает PHC-строку на соль, дайджест и параметры
func decodePHC(encoded string) (salt, digest []byte, memory, time uint32, threads uint8, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, nil, 0, 0, 0, fmt.Errorf("invalid password hash format")
	}
	if parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, fmt.Errorf("unsupported hash algorithm %q", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("invalid hash version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, 0, 0, 0, fmt.Errorf("incompatible argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("invalid hash parameters: %w", err)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("failed to decode salt: %w", err)
	}
	digest, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("failed to decode digest: %w", err)
	}
	if len(digest) == 0 {
		return nil, nil, 0, 0, 0, fmt.Errorf("empty digest")
	}

	return salt, digest, memory, time, threads, nil
}
