package cmd

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"memochat/config"
	"memochat/crypto"
	"memochat/memo"
)

func newKeygenCmd(opts *globalOptions) *cobra.Command {
	var fromWallet string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create or show the message encryption keypair",
		Long:  "keygen loads the box keypair, creating a random one if missing. With --from-wallet it derives the keypair from a Solana keygen file instead, so the same wallet always gets the same keys.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(opts)
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			var keys *crypto.BoxKeyPair
			if fromWallet != "" {
				wallet, err := solana.PrivateKeyFromSolanaKeygenFile(fromWallet)
				if err != nil {
					return fmt.Errorf("read wallet keygen file: %w", err)
				}

				keys, err = crypto.DeriveBoxKeyPairFromWallet(ed25519.PrivateKey(wallet))
				if err != nil {
					return err
				}
				if err := crypto.SaveBoxKeyPair(a.cfg.BoxKeyPath, keys); err != nil {
					return err
				}

				if a.cfg.WalletAddress == "" {
					a.cfg.WalletAddress = wallet.PublicKey().String()
					if err := config.Save(a.cfgPath, a.cfg); err != nil {
						return err
					}
				}
			} else {
				keys, err = crypto.EnsureBoxKeyPair(a.cfg.BoxKeyPath)
				if err != nil {
					return err
				}
			}

			announcement, err := memo.EncodeIdentity(keys.PublicKey[:])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Public Key:   %s\n", base64.StdEncoding.EncodeToString(keys.PublicKey[:]))
			fmt.Fprintf(out, "Fingerprint:  %s\n", crypto.FormatFingerprint(crypto.KeyFingerprint(keys.PublicKey[:])))
			fmt.Fprintf(out, "Key File:     %s\n", a.cfg.BoxKeyPath)
			fmt.Fprintf(out, "Identity Memo: %s\n", announcement)
			return nil
		},
	}

	cmd.Flags().StringVar(&fromWallet, "from-wallet", "", "derive keys from a Solana keygen JSON file")
	return cmd
}
