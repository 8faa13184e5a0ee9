package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPasswordProblems(t *testing.T) {
	tests := []struct {
		password string
		want     int
	}{
		{"Cobol#1959", 0},
		{"abc", 3},
		{"abcdefgh", 2},
		{"12345678", 2},
		{"abcd1234", 1},
		{"ab!1", 1},
		{"", 4},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.Len(t, PasswordProblems(tt.password), tt.want)
		})
	}
}

func TestUsernameProblems(t *testing.T) {
	assert.Empty(t, UsernameProblems("grace_h"))
	assert.Empty(t, UsernameProblems("a-b"))
	assert.Equal(t, []string{"Username must be at least 3 characters long"}, UsernameProblems("ab"))
	assert.Equal(t, []string{"Username must be less than 30 characters"}, UsernameProblems("abcdefghijklmnopqrstuvwxyz12345"))
	assert.Equal(t, []string{"Username can only contain letters, numbers, underscores, and hyphens"}, UsernameProblems("grace hopper"))
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("ada@example.com"))
	assert.False(t, ValidEmail("ada@example"))
	assert.False(t, ValidEmail("ada example.com"))
	assert.False(t, ValidEmail(""))
}

func TestValidateRegistration(t *testing.T) {
	assert.NoError(t, validateRegistration("grace_h", "grace@example.com", "Cobol#1959"))

	err := validateRegistration("grace_h", "grace@example.com", "cobol1959")
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "special character")
	}
}
