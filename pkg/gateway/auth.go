package gateway

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// SecretHeader carries the shared secret on HTTP requests and WebSocket
// upgrades.
const SecretHeader = "X-Toolgate-Secret"

// MaxAuthAttempts is the number of bad signatures before a client is dropped.
const MaxAuthAttempts = 3

// AuthHandler authenticates gateway callers against an optional shared
// secret. HTTP callers present the secret in SecretHeader; WebSocket clients
// either do the same on upgrade or answer an HMAC-SHA256 challenge.
type AuthHandler struct {
	sharedSecret string
}

// NewAuthHandler creates a new authentication handler. An empty secret
// disables authentication.
func NewAuthHandler(sharedSecret string) *AuthHandler {
	return &AuthHandler{
		sharedSecret: sharedSecret,
	}
}

// Enabled reports whether a shared secret is configured.
func (a *AuthHandler) Enabled() bool {
	return a.sharedSecret != ""
}

// VerifySecret compares a presented secret in constant time.
func (a *AuthHandler) VerifySecret(presented string) bool {
	if !a.Enabled() {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(a.sharedSecret), []byte(presented)) == 1
}

// GenerateChallenge generates a cryptographically random 32-byte challenge
func (a *AuthHandler) GenerateChallenge() (string, error) {
	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return "", fmt.Errorf("failed to generate challenge: %w", err)
	}
	return hex.EncodeToString(challenge), nil
}

// Sign computes the hex HMAC-SHA256 of challenge under secret. Clients use
// it to answer auth.challenge.
func Sign(challenge, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(challenge))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature verifies an HMAC-SHA256 signature against a challenge
func (a *AuthHandler) VerifySignature(challenge, signature string) bool {
	expected := Sign(challenge, a.sharedSecret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// HandleAuthResponse processes an authentication response from a client
func (a *AuthHandler) HandleAuthResponse(client *Client, signature string) AuthResult {
	if client.Challenge == "" {
		return AuthResult{
			Event:   "auth.failure",
			Message: "No challenge found",
		}
	}

	if !a.VerifySignature(client.Challenge, signature) {
		client.AuthAttempts++
		if client.AuthAttempts >= MaxAuthAttempts {
			return AuthResult{
				Event:   "auth.failure",
				Message: "Too many failed attempts",
			}
		}
		return AuthResult{
			Event:   "auth.failure",
			Message: "Invalid signature",
		}
	}

	markAuthenticated(client)
	return AuthResult{
		Event:   "auth.success",
		Success: true,
	}
}

func markAuthenticated(client *Client) {
	client.Authenticated = true
	client.State = StateAuthenticated
	client.AuthAttempts = 0
	client.Challenge = ""
}
