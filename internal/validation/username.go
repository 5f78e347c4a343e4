package validation

import (
	"fmt"
	"regexp"
)

// UsernamePattern определяет допустимый формат username
// Только латинские буквы (a-z, A-Z), цифры (0-9), нижнее подчеркивание (_)
// Длина: 1-64 символа; регистр значим ("Root" и "root" - разные учетки)
var UsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,64}$`)

const (
	// MaxUsernameLen максимальная длина username
	MaxUsernameLen = 64
	// MinPasswordLen минимальная длина пароля при создании учетки
	MinPasswordLen = 8
)

// ValidateUsername проверяет, что username соответствует требованиям.
// Применяется при создании учетки; при логине имя сверяется с базой как есть
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	if len(username) > MaxUsernameLen {
		return fmt.Errorf("username must not exceed %d characters", MaxUsernameLen)
	}

	if !UsernamePattern.MatchString(username) {
		return fmt.Errorf("username can only contain letters (a-z, A-Z), numbers (0-9), and underscores (_)")
	}

	return nil
}

// ValidatePassword проверяет минимальные требования к паролю при создании учетки
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if len(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLen)
	}

	return nil
}
