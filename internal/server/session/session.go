// Package session реализует выпуск и проверку сессионных токенов.
//
// Токен - это JWT (HS256) с субъектом, временем выпуска и истечения,
// запечатанный в AES-256-GCM конверт. Снаружи виден только base64 от
// nonce+ciphertext: содержимое конфиденциально, любое изменение хотя бы
// одного бита ломает аутентификационный тег GCM. Конверт открывается
// ДО разбора полезной нагрузки - неаутентифицированные данные никогда
// не парсятся.
//
// Токены self-contained: серверная таблица сессий не нужна, отзыв до
// истечения делается отдельным denylist (см. пакет revoke).
package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// KeySize - размер ключа AES-256 в байтах
	KeySize = 32
	// NonceSize - размер nonce для AES-GCM (12 bytes стандартный размер)
	NonceSize = 12
	// IssuedAtLeeway - допуск на рассинхронизацию часов:
	// iat дальше в будущем считается подделкой
	IssuedAtLeeway = 2 * time.Minute
	// Issuer - значение claim iss
	Issuer = "dndserver"
)

// Ошибки валидации токена
var (
	// ErrInvalidToken означает, что токен не расшифровался или не распарсился:
	// подделка, чужой ключ или мусор
	ErrInvalidToken = errors.New("invalid session token")

	// ErrTokenExpired означает, что срок действия токена истек
	ErrTokenExpired = errors.New("session token expired")
)

// Claims - полезная нагрузка сессионного токена.
// Subject - username, ID (jti) - ключ для denylist отзыва
type Claims struct {
	jwt.RegisteredClaims
}

// Codec выпускает и проверяет сессионные токены.
// Ключ задается один раз при создании и дальше только читается,
// поэтому Codec безопасен для конкурентного использования
type Codec struct {
	aead    cipher.AEAD
	signKey []byte
	clock   func() time.Time
}

// GenerateKey возвращает свежий случайный 32-байтовый ключ
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	return key, nil
}

// NewCodec создает Codec с данным ключом.
// Ключ должен быть ровно 32 байта (AES-256)
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("session key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Codec{
		aead:    aead,
		signKey: key,
		clock:   time.Now,
	}, nil
}

// Issue выпускает токен для subject со сроком действия ttl.
// Возвращает закодированный токен и его claims (в т.ч. jti для отзыва)
func (c *Codec) Issue(subject string, ttl time.Duration) (string, *Claims, error) {
	if subject == "" {
		return "", nil, fmt.Errorf("subject cannot be empty")
	}
	if ttl <= 0 {
		return "", nil, fmt.Errorf("ttl must be positive")
	}

	now := c.clock()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    Issuer,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	sealed, err := c.seal([]byte(signed))
	if err != nil {
		return "", nil, err
	}

	return base64.RawURLEncoding.EncodeToString(sealed), claims, nil
}

// Validate проверяет токен и возвращает его claims.
// Порядок строгий: сначала открывается GCM конверт (аутентификация),
// и только потом содержимое парсится как JWT.
// Возвращает ErrInvalidToken на подделку и ErrTokenExpired на истекший срок
func (c *Codec) Validate(token string) (*Claims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	plaintext, err := c.open(raw)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(string(plaintext), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.signKey, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	// iat в будущем дальше допуска - чьи-то кривые часы или подделка
	if iat := claims.RegisteredClaims.IssuedAt; iat != nil && iat.Time.After(c.clock().Add(IssuedAtLeeway)) {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// seal шифрует данные, формат: nonce (12 bytes) + ciphertext + auth_tag
func (c *Codec) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// open расшифровывает и аутентифицирует данные из seal
func (c *Codec) open(sealed []byte) ([]byte, error) {
	if len(sealed) < NonceSize {
		return nil, fmt.Errorf("sealed data too short")
	}
	return c.aead.Open(nil, sealed[:NonceSize], sealed[NonceSize:], nil)
}
