package cmd

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"memochat/chain"
	"memochat/crypto"
	"memochat/memo"
)

func newComposeCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Print memo payloads ready to attach to a transaction",
	}
	cmd.AddCommand(newComposeIdentityCmd(opts), newComposeMessageCmd(opts))
	return cmd
}

func newComposeIdentityCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "identity",
		Short: "Print the identity announcement for the local keypair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(opts)
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			keys, err := a.loadBoxKeys()
			if err != nil {
				return err
			}
			if keys == nil {
				return errors.New("no box keypair yet, run keygen first")
			}

			payload, err := memo.EncodeIdentity(keys.PublicKey[:])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return err
		},
	}
}

func newComposeMessageCmd(opts *globalOptions) *cobra.Command {
	var (
		to           string
		text         string
		asymmetric   bool
		recipientKey string
	)

	cmd := &cobra.Command{
		Use:   "message",
		Short: "Encrypt a message and print its memo payload",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := chain.ParseAddress(to); err != nil {
				return fmt.Errorf("recipient: %w", err)
			}

			a, err := wireApp(opts)
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			fields := memo.MessageFields{Recipient: to, IsAsymmetric: asymmetric}
			if !asymmetric {
				fields.Ciphertext, fields.Nonce, err = crypto.EncryptSymmetric([]byte(text), to)
				if err != nil {
					return err
				}
			} else {
				keys, err := a.loadBoxKeys()
				if err != nil {
					return err
				}
				if keys == nil {
					return errors.New("no box keypair yet, run keygen first")
				}

				peer, err := base64.StdEncoding.DecodeString(recipientKey)
				if err != nil || len(peer) == 0 {
					return errors.New("--recipient-key must be the recipient's base64 public key")
				}

				fields.Ciphertext, fields.Nonce, err = crypto.EncryptAsymmetric([]byte(text), peer, keys.SecretKey[:])
				if err != nil {
					return err
				}
				fields.SenderPublicKey = keys.PublicKey[:]
			}

			payload, err := memo.EncodeMessage(fields)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return err
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "recipient address")
	cmd.Flags().StringVar(&text, "text", "", "message text")
	cmd.Flags().BoolVar(&asymmetric, "asymmetric", false, "encrypt for the recipient's public key instead of their address")
	cmd.Flags().StringVar(&recipientKey, "recipient-key", "", "recipient public key (base64), required with --asymmetric")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}
