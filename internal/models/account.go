package models

import "time"

// Account представляет учетную запись пользователя в системе
type Account struct {
	ID           string     `json:"id"`            // UUID учетной записи
	Username     string     `json:"username"`      // уникальный username, case-sensitive
	PasswordHash string     `json:"-"`             // argon2id хеш пароля (PHC-строка), никогда не отдается наружу
	CreatedAt    time.Time  `json:"created_at"`    // время создания
	LastLogin    *time.Time `json:"last_login,omitempty"` // время последнего входа (nil если не входил)
}

// RootCredentials представляет дескриптор root-учетки из TOML файла
// Файл создается один раз при установке и содержит пароль в открытом виде,
// после успешного bootstrap файл можно удалить
type RootCredentials struct {
	Name string `toml:"name"` // имя учетки, по конвенции "root"
	Pass string `toml:"pass"` // пароль в открытом виде
}
