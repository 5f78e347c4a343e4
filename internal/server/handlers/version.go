package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/dndserver/pkg/api"
)

// VersionHandler обрабатывает version endpoint
type VersionHandler struct {
	logger  *slog.Logger
	name    string
	version string
}

// NewVersionHandler создает handler, отдающий имя и версию сервера
func NewVersionHandler(logger *slog.Logger, name, version string) *VersionHandler {
	return &VersionHandler{
		logger:  logger,
		name:    name,
		version: version,
	}
}

// Version обрабатывает GET /api/v1/version
// Открытый endpoint: клиент сверяет по нему совместимость до логина
func (h *VersionHandler) Version(w http.ResponseWriter, r *http.Request) {
	resp := api.VersionResponse{
		Name:    h.name,
		Version: h.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode version response", slog.Any("error", err))
	}
}
