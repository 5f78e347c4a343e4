package api

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Name string `json:"name"` // username учетки
	Pass string `json:"pass"` // пароль в открытом виде (только по TLS)
}

// LoginResponse представляет ответ на успешный вход
// Сам токен уезжает в Set-Cookie, в теле только метаданные
type LoginResponse struct {
	Username  string `json:"username"`   // кто залогинен
	ExpiresAt int64  `json:"expires_at"` // unix время истечения сессии
}

// SessionResponse представляет ответ на запрос текущей сессии
type SessionResponse struct {
	Username  string `json:"username"`   // кто залогинен
	ExpiresAt int64  `json:"expires_at"` // unix время истечения сессии
}

// VersionResponse представляет ответ version endpoint
type VersionResponse struct {
	Name    string `json:"name"`    // имя серверного бинаря
	Version string `json:"version"` // семантическая версия
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error string `json:"error"` // описание ошибки
}
