package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/dndserver/internal/models"
	"github.com/iudanet/dndserver/internal/server/storage"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestAccountStorage_CreateAccount(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	tests := []struct {
		account *models.Account
		name    string
	}{
		{
			name: "create new account successfully",
			account: &models.Account{
				ID:           uuid.New().String(),
				Username:     "alice",
				PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$ZGlnZXN0",
				CreatedAt:    time.Now(),
			},
		},
		{
			name: "create account with last login",
			account: &models.Account{
				ID:           uuid.New().String(),
				Username:     "bob",
				PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$ZGlnZXN0",
				CreatedAt:    time.Now(),
				LastLogin:    timePtr(time.Now()),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateAccount(ctx, tt.account)
			require.NoError(t, err)

			// Verify account was created
			retrieved, err := s.GetAccountByUsername(ctx, tt.account.Username)
			require.NoError(t, err)
			assert.Equal(t, tt.account.ID, retrieved.ID)
			assert.Equal(t, tt.account.Username, retrieved.Username)
			assert.Equal(t, tt.account.PasswordHash, retrieved.PasswordHash)
		})
	}
}

func TestAccountStorage_CreateAccount_Duplicate(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	first := &models.Account{
		ID:           uuid.New().String(),
		Username:     "duplicate",
		PasswordHash: "hash1",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, s.CreateAccount(ctx, first))

	second := &models.Account{
		ID:           uuid.New().String(),
		Username:     "duplicate", // same username
		PasswordHash: "hash2",
		CreatedAt:    time.Now(),
	}
	err := s.CreateAccount(ctx, second)
	assert.ErrorIs(t, err, storage.ErrAccountExists)

	// Stored account must be unaffected by the failed attempt
	retrieved, err := s.GetAccountByUsername(ctx, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, first.ID, retrieved.ID)
	assert.Equal(t, "hash1", retrieved.PasswordHash)
}

func TestAccountStorage_CreateAccount_CaseSensitive(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	require.NoError(t, s.CreateAccount(ctx, &models.Account{
		ID:           uuid.New().String(),
		Username:     "Root",
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	}))

	// Different case is a different account
	require.NoError(t, s.CreateAccount(ctx, &models.Account{
		ID:           uuid.New().String(),
		Username:     "root",
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	}))

	_, err := s.GetAccountByUsername(ctx, "ROOT")
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)
}

func TestAccountStorage_GetAccountByUsername_NotFound(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	account, err := s.GetAccountByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)
	assert.Nil(t, account)
}

func TestAccountStorage_CountAccounts(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	count, err := s.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	for _, username := range []string{"one", "two", "three"} {
		require.NoError(t, s.CreateAccount(ctx, &models.Account{
			ID:           uuid.New().String(),
			Username:     username,
			PasswordHash: "hash",
			CreatedAt:    time.Now(),
		}))
	}

	count, err = s.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestAccountStorage_UpdateLastLogin(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	require.NoError(t, s.CreateAccount(ctx, &models.Account{
		ID:           uuid.New().String(),
		Username:     "alice",
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	}))

	loginTime := time.Now().Truncate(time.Second)
	require.NoError(t, s.UpdateLastLogin(ctx, "alice", loginTime))

	retrieved, err := s.GetAccountByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, retrieved.LastLogin)
	assert.WithinDuration(t, loginTime, *retrieved.LastLogin, time.Second)

	err = s.UpdateLastLogin(ctx, "ghost", loginTime)
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)
}

func TestAccountStorage_ConcurrentCreate_SameUsername(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	const goroutines = 8

	var wg sync.WaitGroup
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.CreateAccount(ctx, &models.Account{
				ID:           uuid.New().String(),
				Username:     "contested",
				PasswordHash: "hash",
				CreatedAt:    time.Now(),
			})
		}(i)
	}
	wg.Wait()

	// Exactly one create wins, all others get the conflict error
	var created, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		default:
			assert.ErrorIs(t, err, storage.ErrAccountExists)
			conflicts++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, goroutines-1, conflicts)

	count, err := s.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
