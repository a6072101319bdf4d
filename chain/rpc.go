package chain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"memochat/models"
)

// MaxSignatureLimit is the largest page getSignaturesForAddress accepts.
const MaxSignatureLimit = 1000

// RPC is the subset of the Solana JSON-RPC surface the fetcher depends on.
type RPC interface {
	// GetSignatures returns up to limit signatures involving address, newest first.
	GetSignatures(ctx context.Context, address string, limit int) ([]models.TransactionSignature, error)
	// GetParsedTransaction returns the jsonParsed getTransaction result.
	// A nil result with a nil error means the node does not know the transaction.
	GetParsedTransaction(ctx context.Context, signature string) (json.RawMessage, error)
}

// SolanaRPC adapts a solana-go RPC client.
type SolanaRPC struct {
	client *rpc.Client
}

var _ RPC = (*SolanaRPC)(nil)

// NewSolanaRPC connects to a JSON-RPC endpoint.
func NewSolanaRPC(endpoint string) *SolanaRPC {
	return &SolanaRPC{client: rpc.New(endpoint)}
}

// NewSolanaRPCWithClient wraps an existing client.
func NewSolanaRPCWithClient(client *rpc.Client) *SolanaRPC {
	return &SolanaRPC{client: client}
}

// GetSignatures implements RPC.
func (s *SolanaRPC) GetSignatures(ctx context.Context, address string, limit int) ([]models.TransactionSignature, error) {
	pubkey, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetSignaturesForAddressWithOpts(ctx, pubkey, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("get signatures for %s: %w", address, err)
	}

	signatures := make([]models.TransactionSignature, 0, len(out))
	for _, entry := range out {
		if entry == nil {
			continue
		}

		sig := models.TransactionSignature{Signature: entry.Signature.String()}
		if entry.BlockTime != nil {
			blockTime := int64(*entry.BlockTime)
			sig.BlockTime = &blockTime
		}
		signatures = append(signatures, sig)
	}

	return signatures, nil
}

// GetParsedTransaction implements RPC.
func (s *SolanaRPC) GetParsedTransaction(ctx context.Context, signature string) (json.RawMessage, error) {
	if _, err := solana.SignatureFromBase58(signature); err != nil {
		return nil, fmt.Errorf("parse signature %q: %w", signature, err)
	}

	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"maxSupportedTransactionVersion": 0,
			"commitment":                     string(rpc.CommitmentConfirmed),
		},
	}

	var raw json.RawMessage
	if err := s.client.RPCCallForInto(ctx, &raw, "getTransaction", params); err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", signature, err)
	}
	if isNullJSON(raw) {
		return nil, nil
	}

	return raw, nil
}

func isNullJSON(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
