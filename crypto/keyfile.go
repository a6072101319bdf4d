package crypto

import (
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

const boxSecretPEMType = "CURVE25519 SECRET KEY"

// EnsureBoxKeyPair loads a box keypair from disk, generating it if absent.
func EnsureBoxKeyPair(path string) (*BoxKeyPair, error) {
	kp, err := LoadBoxKeyPair(path)
	if err == nil {
		return kp, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	kp, err = GenerateBoxKeyPair()
	if err != nil {
		return nil, err
	}
	if err := SaveBoxKeyPair(path, kp); err != nil {
		return nil, err
	}

	return kp, nil
}

// LoadBoxKeyPair reads a box secret key from PEM and rebuilds the keypair.
func LoadBoxKeyPair(path string) (*BoxKeyPair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read box secret key: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("decode box secret PEM: no PEM block")
	}
	if block.Type != boxSecretPEMType {
		return nil, fmt.Errorf("decode box secret PEM: unexpected type %q", block.Type)
	}
	if len(block.Bytes) != KeySize {
		return nil, fmt.Errorf("decode box secret PEM: invalid secret key size %d", len(block.Bytes))
	}

	return BoxKeyPairFromSecret(block.Bytes)
}

// SaveBoxKeyPair writes the secret key PEM file with 0600 permissions.
func SaveBoxKeyPair(path string, kp *BoxKeyPair) error {
	if kp == nil {
		return errors.New("save box secret key: keypair is required")
	}

	block := &pem.Block{
		Type:  boxSecretPEMType,
		Bytes: kp.SecretKey[:],
	}

	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("write box secret key: %w", err)
	}

	return nil
}
