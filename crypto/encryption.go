package crypto

import (
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// NonceSize is the nonce length shared by secretbox and box.
	NonceSize = 24
	// KeySize is the length of symmetric keys and Curve25519 keys.
	KeySize = 32
)

var (
	// ErrInvalidNonceLength is returned when a nonce is not exactly NonceSize bytes.
	ErrInvalidNonceLength = errors.New("invalid nonce length")
	// ErrInvalidKeyLength is returned when a public or secret key is not KeySize bytes.
	ErrInvalidKeyLength = errors.New("invalid key length")
	// ErrAuthenticationFailed is returned when a sealed box does not open.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// DeriveKeyFromAddress derives the symmetric key for address-keyed messages:
// the first 32 bytes of SHA-512 over the address string. Anyone who knows the
// address can derive the key; these messages are readable by design.
func DeriveKeyFromAddress(address string) (*[KeySize]byte, error) {
	if address == "" {
		return nil, errors.New("address is required")
	}

	sum := sha512.Sum512([]byte(address))
	var key [KeySize]byte
	copy(key[:], sum[:KeySize])
	return &key, nil
}

// EncryptSymmetric compresses plaintext and seals it with the key derived from address.
func EncryptSymmetric(plaintext []byte, address string) (ciphertext, nonce []byte, err error) {
	key, err := DeriveKeyFromAddress(address)
	if err != nil {
		return nil, nil, err
	}

	compressed, err := Compress(plaintext)
	if err != nil {
		return nil, nil, err
	}

	n, err := randomNonce()
	if err != nil {
		return nil, nil, err
	}

	return secretbox.Seal(nil, compressed, n, key), n[:], nil
}

// DecryptSymmetric opens an address-keyed message and returns the plaintext.
func DecryptSymmetric(ciphertext, nonce []byte, address string) ([]byte, error) {
	n, err := nonceArray(nonce)
	if err != nil {
		return nil, err
	}
	key, err := DeriveKeyFromAddress(address)
	if err != nil {
		return nil, err
	}

	opened, ok := secretbox.Open(nil, ciphertext, n, key)
	if !ok {
		return nil, ErrAuthenticationFailed
	}

	return OpenPayload(opened)
}

// EncryptAsymmetric compresses plaintext and seals it for recipientPublic using senderSecret.
func EncryptAsymmetric(plaintext, recipientPublic, senderSecret []byte) (ciphertext, nonce []byte, err error) {
	peer, err := keyArray(recipientPublic)
	if err != nil {
		return nil, nil, fmt.Errorf("recipient public key: %w", err)
	}
	secret, err := keyArray(senderSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("sender secret key: %w", err)
	}

	compressed, err := Compress(plaintext)
	if err != nil {
		return nil, nil, err
	}

	n, err := randomNonce()
	if err != nil {
		return nil, nil, err
	}

	return box.Seal(nil, compressed, n, peer, secret), n[:], nil
}

// DecryptAsymmetric opens a box sealed between peerPublic and the owner of secret.
func DecryptAsymmetric(ciphertext, nonce, peerPublic, secret []byte) ([]byte, error) {
	n, err := nonceArray(nonce)
	if err != nil {
		return nil, err
	}
	peer, err := keyArray(peerPublic)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	own, err := keyArray(secret)
	if err != nil {
		return nil, fmt.Errorf("secret key: %w", err)
	}

	opened, ok := box.Open(nil, ciphertext, n, peer, own)
	if !ok {
		return nil, ErrAuthenticationFailed
	}

	return OpenPayload(opened)
}

func randomNonce() (*[NonceSize]byte, error) {
	var n [NonceSize]byte
	if _, err := rand.Read(n[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return &n, nil
}

func nonceArray(nonce []byte) (*[NonceSize]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: got %d want %d", ErrInvalidNonceLength, len(nonce), NonceSize)
	}
	var n [NonceSize]byte
	copy(n[:], nonce)
	return &n, nil
}

func keyArray(key []byte) (*[KeySize]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d want %d", ErrInvalidKeyLength, len(key), KeySize)
	}
	var k [KeySize]byte
	copy(k[:], key)
	return &k, nil
}
