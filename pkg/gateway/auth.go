package gateway

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const maxAuthAttempts = 3

// AuthHandler authenticates websocket clients with an HMAC-SHA256
// challenge-response over the gateway shared secret, and HTTP callers with
// the secret itself. An empty secret disables authentication.
type AuthHandler struct {
	secret []byte
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(sharedSecret string) *AuthHandler {
	return &AuthHandler{secret: []byte(sharedSecret)}
}

// Required reports whether clients must authenticate.
func (a *AuthHandler) Required() bool {
	return len(a.secret) > 0
}

// CheckHeader validates the shared secret sent with plain HTTP requests.
func (a *AuthHandler) CheckHeader(value string) bool {
	return !a.Required() || subtle.ConstantTimeCompare([]byte(value), a.secret) == 1
}

// GenerateChallenge returns 32 random bytes, hex encoded.
func (a *AuthHandler) GenerateChallenge() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate challenge: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Sign computes the hex HMAC-SHA256 of challenge under secret. Clients send
// it back in an auth.response message.
func Sign(secret, challenge string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(challenge))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature answers challenge.
func (a *AuthHandler) VerifySignature(challenge, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(challenge))
	return hmac.Equal(mac.Sum(nil), got)
}

// HandleAuthResponse checks a client's answer to its pending challenge and
// updates the client's auth state. Callers hold the registry lock.
func (a *AuthHandler) HandleAuthResponse(client *Client, signature string) AuthResult {
	switch {
	case client.Challenge == "":
		return authFailure("No challenge found")
	case !a.VerifySignature(client.Challenge, signature):
		client.AuthAttempts++
		if client.AuthAttempts >= maxAuthAttempts {
			return authFailure("Too many failed attempts")
		}
		return authFailure("Invalid signature")
	}

	client.Authenticated = true
	client.State = StateAuthenticated
	client.AuthAttempts = 0
	client.Challenge = ""
	return AuthResult{Event: "auth.success", Success: true}
}

func authFailure(msg string) AuthResult {
	return AuthResult{Event: "auth.failure", Message: msg}
}
