package memo

import (
	"encoding/json"
	"errors"
	"strings"
)

const identityType = "IDENTITY"

// Payload is the JSON document carried in a memo instruction.
type Payload struct {
	Type            string `json:"type,omitempty"`
	PublicKey       *Bytes `json:"publicKey,omitempty"`
	Recipient       string `json:"recipient,omitempty"`
	Encrypted       *Bytes `json:"encrypted,omitempty"`
	Nonce           *Bytes `json:"nonce,omitempty"`
	IsAsymmetric    bool   `json:"isAsymmetric,omitempty"`
	SenderPublicKey *Bytes `json:"senderPublicKey,omitempty"`
}

// MessageFields describes an outgoing encrypted message.
type MessageFields struct {
	Recipient       string
	Ciphertext      []byte
	Nonce           []byte
	IsAsymmetric    bool
	SenderPublicKey []byte
}

// EncodeIdentity renders an identity announcement for publicKey.
func EncodeIdentity(publicKey []byte) ([]byte, error) {
	if len(publicKey) == 0 {
		return nil, errors.New("public key is required")
	}

	key := Bytes(publicKey)
	return json.Marshal(Payload{Type: identityType, PublicKey: &key})
}

// EncodeMessage renders a message memo.
func EncodeMessage(fields MessageFields) ([]byte, error) {
	if strings.TrimSpace(fields.Recipient) == "" {
		return nil, errors.New("recipient is required")
	}
	if len(fields.Ciphertext) == 0 {
		return nil, errors.New("ciphertext is required")
	}
	if len(fields.Nonce) == 0 {
		return nil, errors.New("nonce is required")
	}

	encrypted := Bytes(fields.Ciphertext)
	nonce := Bytes(fields.Nonce)
	payload := Payload{
		Recipient:    fields.Recipient,
		Encrypted:    &encrypted,
		Nonce:        &nonce,
		IsAsymmetric: fields.IsAsymmetric,
	}
	if len(fields.SenderPublicKey) > 0 {
		senderKey := Bytes(fields.SenderPublicKey)
		payload.SenderPublicKey = &senderKey
	}

	return json.Marshal(payload)
}
