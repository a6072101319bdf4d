package crypto

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

// KeyDerivationMessage is the fixed text a wallet signs to derive its box keypair.
const KeyDerivationMessage = "memochat: sign to derive your message encryption key"

// Sign signs data using an Ed25519 private key.
func Sign(privateKey ed25519.PrivateKey, data []byte) ([]byte, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid Ed25519 private key length: got %d want %d", len(privateKey), ed25519.PrivateKeySize)
	}
	if len(data) == 0 {
		return nil, errors.New("data is required")
	}

	return ed25519.Sign(privateKey, data), nil
}

// Verify verifies an Ed25519 signature.
func Verify(publicKey ed25519.PublicKey, data, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	if len(data) == 0 {
		return false
	}
	if len(signature) != ed25519.SignatureSize {
		return false
	}

	return ed25519.Verify(publicKey, data, signature)
}

// DeriveBoxKeyPairFromWallet signs KeyDerivationMessage with a wallet key and
// derives the box keypair from the signature. Ed25519 signatures are
// deterministic, so the result is stable per wallet.
func DeriveBoxKeyPairFromWallet(walletKey ed25519.PrivateKey) (*BoxKeyPair, error) {
	signature, err := Sign(walletKey, []byte(KeyDerivationMessage))
	if err != nil {
		return nil, fmt.Errorf("sign derivation message: %w", err)
	}

	publicKey, ok := walletKey.Public().(ed25519.PublicKey)
	if !ok || !Verify(publicKey, []byte(KeyDerivationMessage), signature) {
		return nil, errors.New("derivation signature did not verify")
	}

	return DeriveBoxKeyPairFromSignature(signature)
}
