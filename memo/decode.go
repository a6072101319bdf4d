// Package memo turns raw jsonParsed transactions into memo records.
package memo

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"github.com/mr-tron/base58"

	"memochat/models"
)

const (
	// ProgramID is the SPL memo program.
	ProgramID = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"
	// LegacyProgramID is the v1 memo program.
	LegacyProgramID = "Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo"

	parsedProgramName = "spl-memo"
)

type rawTransaction struct {
	BlockTime *int64 `json:"blockTime"`
	Meta      *struct {
		Err json.RawMessage `json:"err"`
	} `json:"meta"`
	Transaction struct {
		Message struct {
			AccountKeys  []accountKey  `json:"accountKeys"`
			Instructions []instruction `json:"instructions"`
		} `json:"message"`
	} `json:"transaction"`
}

// wirePayload keeps senderPublicKey raw; a malformed value decodes as absent.
type wirePayload struct {
	Payload
	SenderPublicKey json.RawMessage `json:"senderPublicKey"`
}

type instruction struct {
	Program   string          `json:"program"`
	ProgramID string          `json:"programId"`
	Parsed    json.RawMessage `json:"parsed"`
	Data      string          `json:"data"`
}

// accountKey accepts both the jsonParsed object form and a bare address string.
type accountKey struct {
	Pubkey string
}

func (k *accountKey) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &k.Pubkey)
	}

	var obj struct {
		Pubkey string `json:"pubkey"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	k.Pubkey = obj.Pubkey
	return nil
}

// Decode extracts the memo record carried by a transaction. It reports false
// when the transaction failed, has no memo instruction, or the memo is not a
// recognised payload. Decode is pure.
func Decode(signature string, raw json.RawMessage) (models.MemoRecord, bool) {
	var tx rawTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return models.MemoRecord{}, false
	}
	if tx.Meta != nil && len(tx.Meta.Err) > 0 && string(tx.Meta.Err) != "null" {
		return models.MemoRecord{}, false
	}

	text, ok := memoText(tx.Transaction.Message.Instructions)
	if !ok {
		return models.MemoRecord{}, false
	}

	var payload wirePayload
	if err := json.Unmarshal(text, &payload); err != nil {
		return models.MemoRecord{}, false
	}

	sender := ""
	if keys := tx.Transaction.Message.AccountKeys; len(keys) > 0 {
		sender = keys[0].Pubkey
	}
	var blockTime int64
	if tx.BlockTime != nil {
		blockTime = *tx.BlockTime
	}

	if payload.Type == identityType {
		if payload.PublicKey == nil || len(*payload.PublicKey) == 0 {
			return models.MemoRecord{}, false
		}
		return models.MemoRecord{
			Kind: models.RecordIdentity,
			Identity: &models.Identity{
				Signature:     signature,
				SenderAddress: sender,
				PublicKey:     []byte(*payload.PublicKey),
				BlockTime:     blockTime,
			},
		}, true
	}

	if payload.Recipient == "" || payload.Encrypted == nil || payload.Nonce == nil {
		return models.MemoRecord{}, false
	}

	msg := &models.Message{
		Signature:        signature,
		SenderAddress:    sender,
		RecipientAddress: payload.Recipient,
		Ciphertext:       []byte(*payload.Encrypted),
		Nonce:            []byte(*payload.Nonce),
		IsAsymmetric:     payload.IsAsymmetric,
		BlockTime:        blockTime,
	}
	msg.SenderPublicKey = optionalBytes(payload.SenderPublicKey)

	return models.MemoRecord{Kind: models.RecordMessage, Message: msg}, true
}

// optionalBytes decodes an optional binary field, treating malformed values as absent.
func optionalBytes(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}

	var b Bytes
	if err := json.Unmarshal(raw, &b); err != nil || len(b) == 0 {
		return nil
	}
	return []byte(b)
}

// memoText returns the payload bytes of the first memo instruction.
func memoText(instructions []instruction) ([]byte, bool) {
	for _, ix := range instructions {
		if !isMemoInstruction(ix) {
			continue
		}

		if len(ix.Parsed) > 0 && string(ix.Parsed) != "null" {
			var text string
			if err := json.Unmarshal(ix.Parsed, &text); err == nil {
				return []byte(text), true
			}
		}
		if ix.Data == "" {
			return nil, false
		}
		return decodeInstructionData(ix.Data)
	}
	return nil, false
}

func isMemoInstruction(ix instruction) bool {
	return ix.ProgramID == ProgramID || ix.ProgramID == LegacyProgramID || ix.Program == parsedProgramName
}

// decodeInstructionData tries base64 first, then the base58 encoding jsonParsed
// uses for instructions it could not parse.
func decodeInstructionData(data string) ([]byte, bool) {
	if decoded, err := base64.StdEncoding.DecodeString(data); err == nil && json.Valid(decoded) {
		return decoded, true
	}
	if decoded, err := base58.Decode(data); err == nil && json.Valid(decoded) {
		return decoded, true
	}
	return nil, false
}
