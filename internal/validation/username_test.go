package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{name: "valid simple", username: "root", wantErr: false},
		{name: "valid single char", username: "a", wantErr: false},
		{name: "valid mixed case", username: "DungeonMaster", wantErr: false},
		{name: "valid with underscore and digits", username: "player_42", wantErr: false},
		{name: "valid max length", username: strings.Repeat("a", MaxUsernameLen), wantErr: false},
		{name: "empty", username: "", wantErr: true},
		{name: "too long", username: strings.Repeat("a", MaxUsernameLen+1), wantErr: true},
		{name: "with space", username: "dungeon master", wantErr: true},
		{name: "with dash", username: "dungeon-master", wantErr: true},
		{name: "with unicode", username: "мастер", wantErr: true},
		{name: "with dot", username: "a.b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid", password: "long-enough-password", wantErr: false},
		{name: "valid exactly min length", password: strings.Repeat("x", MinPasswordLen), wantErr: false},
		{name: "empty", password: "", wantErr: true},
		{name: "too short", password: "short", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
