package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// BoxKeyPair is a Curve25519 keypair used for asymmetric memo messages.
type BoxKeyPair struct {
	PublicKey [KeySize]byte
	SecretKey [KeySize]byte
}

// GenerateBoxKeyPair creates a random keypair.
func GenerateBoxKeyPair() (*BoxKeyPair, error) {
	pub, secret, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate box keypair: %w", err)
	}
	return &BoxKeyPair{PublicKey: *pub, SecretKey: *secret}, nil
}

// BoxKeyPairFromSecret rebuilds a keypair from its 32-byte secret key.
func BoxKeyPairFromSecret(secret []byte) (*BoxKeyPair, error) {
	if len(secret) != KeySize {
		return nil, fmt.Errorf("%w: got %d want %d", ErrInvalidKeyLength, len(secret), KeySize)
	}

	pub, err := curve25519.X25519(secret, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}

	kp := &BoxKeyPair{}
	copy(kp.SecretKey[:], secret)
	copy(kp.PublicKey[:], pub)
	return kp, nil
}

// DeriveBoxKeyPairFromSignature uses the first 32 bytes of a wallet signature as
// the secret key, so the same wallet always regenerates the same keypair.
func DeriveBoxKeyPairFromSignature(signature []byte) (*BoxKeyPair, error) {
	if len(signature) < KeySize {
		return nil, errors.New("signature must be at least 32 bytes")
	}
	return BoxKeyPairFromSecret(signature[:KeySize])
}

// KeyFingerprint returns the truncated SHA-256 hex fingerprint of a public key.
func KeyFingerprint(publicKey []byte) string {
	sum := sha256.Sum256(publicKey)
	return hex.EncodeToString(sum[:16])
}

// FormatFingerprint returns fingerprint text grouped in chunks of 4 uppercase chars.
func FormatFingerprint(fingerprint string) string {
	clean := strings.ToUpper(strings.ReplaceAll(fingerprint, " ", ""))
	if clean == "" {
		return ""
	}

	var b strings.Builder
	for i := 0; i < len(clean); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}

		end := i + 4
		if end > len(clean) {
			end = len(clean)
		}
		b.WriteString(clean[i:end])
	}

	return b.String()
}
