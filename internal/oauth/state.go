package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// stateBytes is the number of random bytes for the CSRF state parameter.
// 32 bytes encodes to 43 base64url characters.
const stateBytes = 32

// GenerateState generates a random state parameter. The state is echoed
// through the authorization redirect and compared on return to prevent CSRF.
func GenerateState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
