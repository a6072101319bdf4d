package inbox

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"memochat/crypto"
	"memochat/models"
)

// Placeholders stand in for content that could not be recovered.
const (
	PlaceholderNotInvolved     = "[Cannot decrypt: Not involved]"
	PlaceholderInvalidNonce    = "[Decryption failed: Invalid nonce length]"
	PlaceholderAuthFailed      = "[Decryption failed: Authentication failed]"
	PlaceholderKeyNotFound     = "[Encrypted Message - Key Not Found]"
	PlaceholderLoginRequired   = "[Login required to decrypt]"
	PlaceholderInvalidKeyLen   = "[Decryption failed: Invalid public key length]"
	placeholderFailedFormatter = "[Decryption failed: %s]"
)

// LocalIdentity is who is reading. Keys may be nil when only address-keyed
// messages should be opened, for example when reading a community channel.
type LocalIdentity struct {
	Address string
	Keys    *crypto.BoxKeyPair
}

// Decryptor opens messages for a local identity. It never returns errors;
// failures become placeholder text.
type Decryptor struct {
	logger *zap.Logger
}

// NewDecryptor creates a decryptor.
func NewDecryptor(logger *zap.Logger) *Decryptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decryptor{logger: logger.Named("decrypt")}
}

// Decrypt returns the plaintext of msg or a placeholder describing why it
// could not be read.
func (d *Decryptor) Decrypt(msg models.Message, local LocalIdentity, registry models.IdentityRegistry) string {
	text, _ := d.open(msg, local, registry)
	return text
}

// DecryptAll decrypts messages in order.
func (d *Decryptor) DecryptAll(messages []models.Message, local LocalIdentity, registry models.IdentityRegistry) []models.DecryptedMessage {
	out := make([]models.DecryptedMessage, 0, len(messages))
	for _, msg := range messages {
		text, ok := d.open(msg, local, registry)
		out = append(out, models.DecryptedMessage{
			Message:          msg,
			DecryptedContent: text,
			IsDecrypted:      ok,
		})
	}
	return out
}

func (d *Decryptor) open(msg models.Message, local LocalIdentity, registry models.IdentityRegistry) (string, bool) {
	isRecipient := local.Address != "" && msg.RecipientAddress == local.Address
	isSender := local.Address != "" && msg.SenderAddress == local.Address
	if !isRecipient && !isSender {
		return PlaceholderNotInvolved, false
	}
	if len(msg.Nonce) != crypto.NonceSize {
		return PlaceholderInvalidNonce, false
	}

	var (
		plaintext []byte
		err       error
	)
	if msg.IsAsymmetric {
		peerKey, found := counterpartyKey(msg, isRecipient, registry)
		if !found {
			return PlaceholderKeyNotFound, false
		}
		if local.Keys == nil {
			return PlaceholderLoginRequired, false
		}
		plaintext, err = crypto.DecryptAsymmetric(msg.Ciphertext, msg.Nonce, peerKey, local.Keys.SecretKey[:])
	} else {
		plaintext, err = crypto.DecryptSymmetric(msg.Ciphertext, msg.Nonce, msg.RecipientAddress)
	}

	if err != nil {
		d.logger.Debug("decrypt failed", zap.String("signature", msg.Signature), zap.Error(err))
		return failurePlaceholder(err), false
	}
	return string(plaintext), true
}

// counterpartyKey picks the other side's public key. The embedded sender key
// is the counterparty only when we are the recipient; as sender we need the
// recipient's announced key.
func counterpartyKey(msg models.Message, isRecipient bool, registry models.IdentityRegistry) ([]byte, bool) {
	if isRecipient {
		if len(msg.SenderPublicKey) > 0 {
			return msg.SenderPublicKey, true
		}
		return registry.Lookup(msg.SenderAddress)
	}
	return registry.Lookup(msg.RecipientAddress)
}

func failurePlaceholder(err error) string {
	switch {
	case errors.Is(err, crypto.ErrInvalidNonceLength):
		return PlaceholderInvalidNonce
	case errors.Is(err, crypto.ErrInvalidKeyLength):
		return PlaceholderInvalidKeyLen
	case errors.Is(err, crypto.ErrAuthenticationFailed):
		return PlaceholderAuthFailed
	default:
		return fmt.Sprintf(placeholderFailedFormatter, err.Error())
	}
}
