package storage

import (
	"context"
	"time"

	"github.com/iudanet/dndserver/internal/models"
)

// AccountStorage defines interface for account persistence
type AccountStorage interface {
	// CreateAccount creates a new account in the storage
	// Returns ErrAccountExists if username is already taken
	CreateAccount(ctx context.Context, account *models.Account) error

	// GetAccountByUsername retrieves account by username (case-sensitive)
	// Returns ErrAccountNotFound if account doesn't exist
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)

	// CountAccounts returns the total number of accounts
	CountAccounts(ctx context.Context) (int64, error)

	// UpdateLastLogin updates the last login timestamp
	// Returns ErrAccountNotFound if account doesn't exist
	UpdateLastLogin(ctx context.Context, username string, lastLogin time.Time) error
}
