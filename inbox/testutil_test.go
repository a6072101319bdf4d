package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"memochat/crypto"
	"memochat/memo"
	"memochat/models"
)

var testNow = time.Unix(1_700_000_000, 0)

type fakeSource struct {
	mu           sync.Mutex
	signatures   map[string][]models.TransactionSignature
	sigErr       map[string]error
	transactions map[string]json.RawMessage
	fetched      []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		signatures:   make(map[string][]models.TransactionSignature),
		sigErr:       make(map[string]error),
		transactions: make(map[string]json.RawMessage),
	}
}

func (f *fakeSource) FetchSignatures(_ context.Context, address string, _ int) ([]models.TransactionSignature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sigErr[address]; err != nil {
		return nil, err
	}
	return append([]models.TransactionSignature(nil), f.signatures[address]...), nil
}

func (f *fakeSource) FetchTransaction(_ context.Context, signature string) (json.RawMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, signature)
	raw, ok := f.transactions[signature]
	return raw, ok
}

// add registers a memo transaction for address at blockTime.
func (f *fakeSource) add(t *testing.T, address, signature, sender string, blockTime int64, payload []byte) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	bt := blockTime
	f.signatures[address] = append(f.signatures[address], models.TransactionSignature{Signature: signature, BlockTime: &bt})
	f.transactions[signature] = memoTransaction(t, sender, blockTime, payload)
}

func memoTransaction(t *testing.T, sender string, blockTime int64, payload []byte) json.RawMessage {
	t.Helper()
	quoted, err := json.Marshal(string(payload))
	require.NoError(t, err)
	return json.RawMessage(fmt.Sprintf(`{
		"blockTime": %d,
		"meta": {"err": null},
		"transaction": {"message": {
			"accountKeys": [{"pubkey": %q}],
			"instructions": [{"program": "spl-memo", "programId": %q, "parsed": %s}]
		}}
	}`, blockTime, sender, memo.ProgramID, quoted))
}

func symmetricPayload(t *testing.T, recipient, text string) []byte {
	t.Helper()
	ciphertext, nonce, err := crypto.EncryptSymmetric([]byte(text), recipient)
	require.NoError(t, err)
	payload, err := memo.EncodeMessage(memo.MessageFields{Recipient: recipient, Ciphertext: ciphertext, Nonce: nonce})
	require.NoError(t, err)
	return payload
}

func identityPayload(t *testing.T, key []byte) []byte {
	t.Helper()
	payload, err := memo.EncodeIdentity(key)
	require.NoError(t, err)
	return payload
}

func newTestReconstructor(t *testing.T, source Source) *Reconstructor {
	t.Helper()
	r, err := NewReconstructor(ReconstructorConfig{
		Source: source,
		DeriveATA: func(wallet, mint string) (string, error) {
			if mint == "bad-mint" {
				return "", errors.New("invalid mint")
			}
			return wallet + "-ata", nil
		},
		now: func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return r
}

func sigAt(signature string, blockTime int64) models.TransactionSignature {
	bt := blockTime
	return models.TransactionSignature{Signature: signature, BlockTime: &bt}
}
