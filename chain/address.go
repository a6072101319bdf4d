package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrInvalidAddress indicates a string that is not a base58 Solana public key.
	ErrInvalidAddress = errors.New("chain: invalid address")

	// Token2022ProgramID is the token program the memo token mint lives under.
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

// ParseAddress validates and decodes a base58 public key.
func ParseAddress(address string) (solana.PublicKey, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	pubkey, err := solana.PublicKeyFromBase58(trimmed)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, trimmed, err)
	}
	return pubkey, nil
}

// ATADeriver maps a wallet to its associated token account for a mint.
type ATADeriver func(wallet, mint string) (string, error)

// NewATADeriver binds a token program to AssociatedTokenAddress. An empty
// program selects Token-2022.
func NewATADeriver(tokenProgram string) (ATADeriver, error) {
	program := Token2022ProgramID
	if strings.TrimSpace(tokenProgram) != "" {
		parsed, err := ParseAddress(tokenProgram)
		if err != nil {
			return nil, fmt.Errorf("token program: %w", err)
		}
		program = parsed
	}

	return func(wallet, mint string) (string, error) {
		return AssociatedTokenAddress(wallet, mint, program)
	}, nil
}

// AssociatedTokenAddress derives the associated token account of wallet for mint
// under tokenProgram.
func AssociatedTokenAddress(wallet, mint string, tokenProgram solana.PublicKey) (string, error) {
	walletKey, err := ParseAddress(wallet)
	if err != nil {
		return "", fmt.Errorf("wallet: %w", err)
	}
	mintKey, err := ParseAddress(mint)
	if err != nil {
		return "", fmt.Errorf("mint: %w", err)
	}

	ata, _, err := solana.FindProgramAddress(
		[][]byte{walletKey[:], tokenProgram[:], mintKey[:]},
		solana.SPLAssociatedTokenAccountProgramID,
	)
	if err != nil {
		return "", fmt.Errorf("derive associated token address: %w", err)
	}

	return ata.String(), nil
}
