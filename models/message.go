package models

// TransactionSignature is one entry of a signatures-for-address listing.
type TransactionSignature struct {
	Signature string `json:"signature"`
	BlockTime *int64 `json:"block_time,omitempty"`
}

// RecordKind discriminates decoded memo payloads.
type RecordKind string

const (
	// RecordIdentity is an encryption public key announcement.
	RecordIdentity RecordKind = "IDENTITY"
	// RecordMessage is an encrypted message addressed to a recipient.
	RecordMessage RecordKind = "MESSAGE"
)

// MemoRecord is the decoded payload of exactly one on-chain transaction.
// Exactly one of Identity or Message is set, matching Kind.
type MemoRecord struct {
	Kind     RecordKind `json:"kind"`
	Identity *Identity  `json:"identity,omitempty"`
	Message  *Message   `json:"message,omitempty"`
}

// Message is an encrypted memo message as it appears on chain.
type Message struct {
	Signature        string `json:"signature"`
	SenderAddress    string `json:"sender"`
	RecipientAddress string `json:"recipient"`
	Ciphertext       []byte `json:"encrypted"`
	Nonce            []byte `json:"nonce"`
	IsAsymmetric     bool   `json:"is_asymmetric"`
	SenderPublicKey  []byte `json:"sender_public_key,omitempty"`
	BlockTime        int64  `json:"block_time"`
}

// Timestamp returns the block time used for ordering.
func (m Message) Timestamp() int64 {
	return m.BlockTime
}

// DecryptedMessage is a Message with its decryption outcome attached.
type DecryptedMessage struct {
	Message
	DecryptedContent string `json:"decrypted_content"`
	IsDecrypted      bool   `json:"is_decrypted"`
}
