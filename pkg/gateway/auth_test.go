package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_GenerateChallenge(t *testing.T) {
	auth := NewAuthHandler("test-secret")

	challenge1, err := auth.GenerateChallenge()
	require.NoError(t, err)
	assert.Len(t, challenge1, 64)

	challenge2, err := auth.GenerateChallenge()
	require.NoError(t, err)
	assert.NotEqual(t, challenge1, challenge2)
}

func TestAuthHandler_VerifySecret(t *testing.T) {
	t.Run("disabled accepts anything", func(t *testing.T) {
		auth := NewAuthHandler("")
		assert.False(t, auth.Enabled())
		assert.True(t, auth.VerifySecret(""))
		assert.True(t, auth.VerifySecret("whatever"))
	})

	t.Run("enabled compares", func(t *testing.T) {
		auth := NewAuthHandler("s3cret")
		assert.True(t, auth.Enabled())
		assert.True(t, auth.VerifySecret("s3cret"))
		assert.False(t, auth.VerifySecret(""))
		assert.False(t, auth.VerifySecret("s3cre"))
	})
}

func TestAuthHandler_VerifySignature(t *testing.T) {
	auth := NewAuthHandler("test-secret")
	challenge, err := auth.GenerateChallenge()
	require.NoError(t, err)

	assert.True(t, auth.VerifySignature(challenge, Sign(challenge, "test-secret")))
	assert.False(t, auth.VerifySignature(challenge, "invalid-signature"))
	assert.False(t, auth.VerifySignature(challenge, Sign(challenge, "wrong-secret")))
}

func TestAuthHandler_HandleAuthResponse(t *testing.T) {
	auth := NewAuthHandler("test-secret")

	t.Run("should succeed with valid signature", func(t *testing.T) {
		client := &Client{ID: "test-client", Challenge: "test-challenge", AuthAttempts: 1}

		result := auth.HandleAuthResponse(client, Sign("test-challenge", "test-secret"))

		assert.True(t, result.Success)
		assert.Equal(t, "auth.success", result.Event)
		assert.True(t, client.Authenticated)
		assert.Equal(t, StateAuthenticated, client.State)
		assert.Equal(t, 0, client.AuthAttempts)
		assert.Empty(t, client.Challenge)
	})

	t.Run("should fail with invalid signature", func(t *testing.T) {
		client := &Client{ID: "test-client", Challenge: "test-challenge"}

		result := auth.HandleAuthResponse(client, "invalid-signature")

		assert.False(t, result.Success)
		assert.Equal(t, "auth.failure", result.Event)
		assert.Equal(t, "Invalid signature", result.Message)
		assert.False(t, client.Authenticated)
		assert.Equal(t, 1, client.AuthAttempts)
	})

	t.Run("should block after max failed attempts", func(t *testing.T) {
		client := &Client{ID: "test-client", Challenge: "test-challenge", AuthAttempts: MaxAuthAttempts - 1}

		result := auth.HandleAuthResponse(client, "invalid-signature")

		assert.False(t, result.Success)
		assert.Equal(t, "Too many failed attempts", result.Message)
		assert.Equal(t, MaxAuthAttempts, client.AuthAttempts)
	})

	t.Run("should fail when no challenge exists", func(t *testing.T) {
		client := &Client{ID: "test-client"}

		result := auth.HandleAuthResponse(client, "any-signature")

		assert.False(t, result.Success)
		assert.Equal(t, "No challenge found", result.Message)
	})
}
