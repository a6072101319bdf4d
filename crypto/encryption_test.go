package crypto

import (
	"bytes"
	"errors"
	"testing"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
)

func TestSymmetricRoundTrip(t *testing.T) {
	address := "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	plaintext := []byte("hello community")

	ciphertext, nonce, err := EncryptSymmetric(plaintext, address)
	if err != nil {
		t.Fatalf("EncryptSymmetric failed: %v", err)
	}
	if len(nonce) != NonceSize {
		t.Fatalf("expected %d-byte nonce, got %d", NonceSize, len(nonce))
	}

	decrypted, err := DecryptSymmetric(ciphertext, nonce, address)
	if err != nil {
		t.Fatalf("DecryptSymmetric failed: %v", err)
	}
	if !bytes.Equal(plaintext, decrypted) {
		t.Fatalf("decrypted plaintext does not match original")
	}
}

func TestSymmetricWrongAddressFails(t *testing.T) {
	ciphertext, nonce, err := EncryptSymmetric([]byte("hi"), "addressA")
	if err != nil {
		t.Fatalf("EncryptSymmetric failed: %v", err)
	}

	_, err = DecryptSymmetric(ciphertext, nonce, "addressB")
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestSymmetricRejectsShortNonce(t *testing.T) {
	_, err := DecryptSymmetric([]byte("whatever"), make([]byte, 12), "addressA")
	if !errors.Is(err, ErrInvalidNonceLength) {
		t.Fatalf("expected ErrInvalidNonceLength, got %v", err)
	}
}

func TestSymmetricAcceptsUncompressedLegacyPayload(t *testing.T) {
	key, err := DeriveKeyFromAddress("legacy")
	if err != nil {
		t.Fatalf("DeriveKeyFromAddress failed: %v", err)
	}

	var nonce [NonceSize]byte
	nonce[0] = 9
	sealed := secretbox.Seal(nil, []byte("raw text"), &nonce, key)

	decrypted, err := DecryptSymmetric(sealed, nonce[:], "legacy")
	if err != nil {
		t.Fatalf("DecryptSymmetric failed: %v", err)
	}
	if string(decrypted) != "raw text" {
		t.Fatalf("expected raw text, got %q", decrypted)
	}
}

func TestDeriveKeyFromAddressIsDeterministic(t *testing.T) {
	first, err := DeriveKeyFromAddress("abc")
	if err != nil {
		t.Fatalf("DeriveKeyFromAddress failed: %v", err)
	}
	second, err := DeriveKeyFromAddress("abc")
	if err != nil {
		t.Fatalf("DeriveKeyFromAddress failed: %v", err)
	}
	if *first != *second {
		t.Fatalf("expected identical keys for identical addresses")
	}

	other, err := DeriveKeyFromAddress("abd")
	if err != nil {
		t.Fatalf("DeriveKeyFromAddress failed: %v", err)
	}
	if *first == *other {
		t.Fatalf("expected different keys for different addresses")
	}
}

func TestAsymmetricRoundTripBothDirections(t *testing.T) {
	alice, err := GenerateBoxKeyPair()
	if err != nil {
		t.Fatalf("generate alice: %v", err)
	}
	bob, err := GenerateBoxKeyPair()
	if err != nil {
		t.Fatalf("generate bob: %v", err)
	}

	plaintext := []byte("secret for bob")
	ciphertext, nonce, err := EncryptAsymmetric(plaintext, bob.PublicKey[:], alice.SecretKey[:])
	if err != nil {
		t.Fatalf("EncryptAsymmetric failed: %v", err)
	}

	// Recipient opens with the sender's public key.
	got, err := DecryptAsymmetric(ciphertext, nonce, alice.PublicKey[:], bob.SecretKey[:])
	if err != nil {
		t.Fatalf("recipient decrypt failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("recipient plaintext mismatch")
	}

	// Sender re-reads its own message with the recipient's public key.
	got, err = DecryptAsymmetric(ciphertext, nonce, bob.PublicKey[:], alice.SecretKey[:])
	if err != nil {
		t.Fatalf("sender decrypt failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("sender plaintext mismatch")
	}
}

func TestAsymmetricThirdPartyFails(t *testing.T) {
	alice, _ := GenerateBoxKeyPair()
	bob, _ := GenerateBoxKeyPair()
	eve, _ := GenerateBoxKeyPair()

	ciphertext, nonce, err := EncryptAsymmetric([]byte("private"), bob.PublicKey[:], alice.SecretKey[:])
	if err != nil {
		t.Fatalf("EncryptAsymmetric failed: %v", err)
	}

	_, err = DecryptAsymmetric(ciphertext, nonce, alice.PublicKey[:], eve.SecretKey[:])
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestAsymmetricRejectsBadKeyLength(t *testing.T) {
	bob, _ := GenerateBoxKeyPair()
	nonce := make([]byte, NonceSize)

	_, err := DecryptAsymmetric([]byte("x"), nonce, make([]byte, 31), bob.SecretKey[:])
	if !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("expected ErrInvalidKeyLength, got %v", err)
	}
}

func TestAsymmetricAcceptsUncompressedLegacyPayload(t *testing.T) {
	alice, _ := GenerateBoxKeyPair()
	bob, _ := GenerateBoxKeyPair()

	var nonce [NonceSize]byte
	sealed := box.Seal(nil, []byte("plain"), &nonce, &bob.PublicKey, &alice.SecretKey)

	got, err := DecryptAsymmetric(sealed, nonce[:], alice.PublicKey[:], bob.SecretKey[:])
	if err != nil {
		t.Fatalf("DecryptAsymmetric failed: %v", err)
	}
	if string(got) != "plain" {
		t.Fatalf("expected plain, got %q", got)
	}
}
