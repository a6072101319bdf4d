package cmd

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"memochat/chain"
	"memochat/crypto"
	"memochat/inbox"
)

func newIdentityCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "identity [address]",
		Short: "List encryption keys announced in an address's history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wireApp(opts)
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			local := inbox.LocalIdentity{}
			if len(args) == 1 {
				if _, err := chain.ParseAddress(args[0]); err != nil {
					return err
				}
				local.Address = args[0]
			} else {
				local, err = a.localIdentity(opts)
				if err != nil {
					return err
				}
			}
			q := a.query(local, "")

			p, err := a.openPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			result, err := p.reconstructor.Reconstruct(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("fetch identities: %w", err)
			}

			keys := result.Registry.Snapshot()
			if asJSON {
				encoded := make(map[string]string, len(keys))
				for address, key := range keys {
					encoded[address] = base64.StdEncoding.EncodeToString(key)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(encoded)
			}

			if len(keys) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no identities in window")
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ADDRESS\tPUBLIC KEY\tFINGERPRINT")
			for _, address := range result.Registry.Addresses() {
				key := keys[address]
				fmt.Fprintf(w, "%s\t%s\t%s\n", address, base64.StdEncoding.EncodeToString(key), crypto.FormatFingerprint(crypto.KeyFingerprint(key)))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the registry as JSON")
	return cmd
}
