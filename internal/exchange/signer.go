package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer produces the HMAC-SHA256 request signature Binance requires
// on account endpoints. Keys are stored as []byte to allow wiping.
type Signer struct {
	secretKey []byte
}

// NewSigner creates a new signer.
func NewSigner(secretKey string) *Signer {
	return &Signer{secretKey: []byte(secretKey)}
}

// Sign returns the hex-encoded signature of the raw query string.
func (s *Signer) Sign(queryString string) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(queryString))
	return hex.EncodeToString(mac.Sum(nil))
}

// Wipe clears the key material from memory.
func (s *Signer) Wipe() {
	if s == nil {
		return
	}
	for i := range s.secretKey {
		s.secretKey[i] = 0
	}
}
