package crypto

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"
)

func argonDigest(password string, salt []byte, memory, time uint32, threads uint8) []byte {
	return argon2.IDKey([]byte(password), salt, time, memory, threads, Argon2KeyLen)
}

func TestHasher_HashVerify(t *testing.T) {
	ctx := context.Background()
	h := NewHasher(2)

	tests := []struct {
		name     string
		password string
	}{
		{name: "simple password", password: "s3cr3t-password"},
		{name: "unicode password", password: "пароль-密码-🔑"},
		{name: "long random password", password: strings.Repeat("a1b2c3d4", 16)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := h.Hash(ctx, tt.password)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))
			assert.NotContains(t, encoded, tt.password)

			ok, err := h.Verify(ctx, tt.password, encoded)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestHasher_Hash_EmptyPassword(t *testing.T) {
	h := NewHasher(1)
	_, err := h.Hash(context.Background(), "")
	assert.Error(t, err)
}

func TestHasher_Verify_WrongPassword(t *testing.T) {
	ctx := context.Background()
	h := NewHasher(2)

	encoded, err := h.Hash(ctx, "correct-password")
	require.NoError(t, err)

	ok, err := h.Verify(ctx, "wrong-password", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasher_Verify_SingleByteAltered(t *testing.T) {
	ctx := context.Background()
	h := NewHasher(2)

	password := "s3cr3t-password"
	encoded, err := h.Hash(ctx, password)
	require.NoError(t, err)

	// Flip every byte of the password one at a time: all must fail
	for i := 0; i < len(password); i++ {
		altered := []byte(password)
		altered[i] ^= 0x01

		ok, err := h.Verify(ctx, string(altered), encoded)
		require.NoError(t, err)
		assert.False(t, ok, "altered byte %d must not verify", i)
	}
}

func TestHasher_Hash_UniqueSalts(t *testing.T) {
	ctx := context.Background()
	h := NewHasher(2)

	first, err := h.Hash(ctx, "same-password")
	require.NoError(t, err)
	second, err := h.Hash(ctx, "same-password")
	require.NoError(t, err)

	// Same password, different salt -> different encodings
	assert.NotEqual(t, first, second)

	for _, encoded := range []string{first, second} {
		ok, err := h.Verify(ctx, "same-password", encoded)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestHasher_Verify_MalformedHash(t *testing.T) {
	ctx := context.Background()
	h := NewHasher(1)

	tests := []struct {
		name    string
		encoded string
	}{
		{name: "empty string", encoded: ""},
		{name: "not a PHC string", encoded: "plaintext"},
		{name: "wrong algorithm", encoded: "$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$ZGlnZXN0"},
		{name: "bad version", encoded: "$argon2id$v=99$m=65536,t=1,p=4$c2FsdA$ZGlnZXN0"},
		{name: "bad parameters", encoded: "$argon2id$v=19$bogus$c2FsdA$ZGlnZXN0"},
		{name: "bad salt encoding", encoded: "$argon2id$v=19$m=65536,t=1,p=4$!!!$ZGlnZXN0"},
		{name: "missing digest", encoded: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Verify(ctx, "password", tt.encoded)
			assert.Error(t, err)
		})
	}
}

func TestHasher_Verify_ParamsFromStoredString(t *testing.T) {
	ctx := context.Background()
	h := NewHasher(2)

	// Hash produced with different (weaker) parameters must still verify:
	// the parameters ride along inside the PHC string
	legacy := encodePHC(
		[]byte("0123456789abcdef"),
		argonDigest("old-password", []byte("0123456789abcdef"), 8*1024, 2, 1),
		8*1024, 2, 1,
	)

	ok, err := h.Verify(ctx, "old-password", legacy)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasher_ConcurrentHashing(t *testing.T) {
	ctx := context.Background()
	h := NewHasher(2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			encoded, err := h.Hash(ctx, "concurrent-password")
			assert.NoError(t, err)
			ok, err := h.Verify(ctx, "concurrent-password", encoded)
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()
}

func TestHasher_CanceledContext(t *testing.T) {
	h := NewHasher(1)

	// Occupy the only slot so acquire has to wait
	require.NoError(t, h.acquire(context.Background()))
	defer h.release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Hash(ctx, "password")
	assert.Error(t, err)
}
