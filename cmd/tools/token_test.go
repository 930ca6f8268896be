package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"project-tracker-api/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCommand(t *testing.T) {
	t.Setenv("ENV_FILE", "testdata/missing.env")
	t.Setenv("JWT_SECRET", "cli-test-secret-with-at-least-32-characters")
	t.Setenv("JWT_ISS", "tracker-cli")
	t.Setenv("JWT_AUD", "tracker-cli")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--user", "7", "--roles", "project_viewer, project_admin", "--expiry", "1h"})
	require.NoError(t, rootCmd.Execute())

	text := out.String()
	assert.Contains(t, text, "User ID:  7")
	assert.Contains(t, text, "Roles:    project_viewer, project_admin")

	var token string
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == "Token:" && i+1 < len(lines) {
			token = lines[i+1]
		}
	}
	require.NotEmpty(t, token)

	claims, err := auth.NewJWTManager("cli-test-secret-with-at-least-32-characters", "tracker-cli", "tracker-cli", time.Hour).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.True(t, claims.HasRole(auth.RoleAdmin))
}
