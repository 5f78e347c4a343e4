package session

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	codec, err := NewCodec(key)
	require.NoError(t, err)
	return codec
}

func TestNewCodec_KeySize(t *testing.T) {
	tests := []struct {
		name    string
		keyLen  int
		wantErr bool
	}{
		{name: "valid 32 byte key", keyLen: 32, wantErr: false},
		{name: "too short", keyLen: 16, wantErr: true},
		{name: "too long", keyLen: 64, wantErr: true},
		{name: "empty", keyLen: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCodec(make([]byte, tt.keyLen))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCodec_IssueValidate_Roundtrip(t *testing.T) {
	codec := newTestCodec(t)

	token, issued, err := codec.Issue("root", 6*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.NotEmpty(t, issued.ID)

	claims, err := codec.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "root", claims.Subject)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestCodec_Issue_Invalid(t *testing.T) {
	codec := newTestCodec(t)

	_, _, err := codec.Issue("", time.Hour)
	assert.Error(t, err)

	_, _, err = codec.Issue("root", 0)
	assert.Error(t, err)
}

func TestCodec_Validate_Expired(t *testing.T) {
	codec := newTestCodec(t)

	token, _, err := codec.Issue("root", time.Minute)
	require.NoError(t, err)

	// Move the clock past the expiry
	codec.clock = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = codec.Validate(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestCodec_Validate_BitFlip(t *testing.T) {
	codec := newTestCodec(t)

	token, _, err := codec.Issue("root", time.Hour)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)

	// Flipping any single bit anywhere in the sealed token must fail validation
	for i := 0; i < len(raw); i++ {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[i] ^= 0x01

		_, err := codec.Validate(base64.RawURLEncoding.EncodeToString(tampered))
		assert.ErrorIs(t, err, ErrInvalidToken, "bit flip at byte %d must invalidate token", i)
	}
}

func TestCodec_Validate_WrongKey(t *testing.T) {
	issuer := newTestCodec(t)
	other := newTestCodec(t)

	token, _, err := issuer.Issue("root", time.Hour)
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_Validate_Garbage(t *testing.T) {
	codec := newTestCodec(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "not base64", token: "%%%%"},
		{name: "too short", token: base64.RawURLEncoding.EncodeToString([]byte("short"))},
		{name: "random bytes", token: base64.RawURLEncoding.EncodeToString(make([]byte, 64))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestCodec_Validate_FutureIssuedAt(t *testing.T) {
	codec := newTestCodec(t)

	// Issue with a clock far in the future, validate with the real clock
	codec.clock = func() time.Time { return time.Now().Add(time.Hour) }
	token, _, err := codec.Issue("root", 6*time.Hour)
	require.NoError(t, err)

	codec.clock = time.Now
	_, err = codec.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_Tokens_Unique(t *testing.T) {
	codec := newTestCodec(t)

	first, firstClaims, err := codec.Issue("root", time.Hour)
	require.NoError(t, err)
	second, secondClaims, err := codec.Issue("root", time.Hour)
	require.NoError(t, err)

	// Fresh nonce and jti per issue
	assert.NotEqual(t, first, second)
	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestCodec_TokenValueOpaque(t *testing.T) {
	codec := newTestCodec(t)

	token, _, err := codec.Issue("root", time.Hour)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)

	// The subject must not be readable from the sealed token
	assert.NotContains(t, string(raw), "root")
	assert.NotContains(t, token, "root")
}
