package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"memochat/inbox"
	"memochat/models"
)

func newFetchCmd(opts *globalOptions) *cobra.Command {
	var (
		with   string
		asJSON bool
		view   fetchView
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one fetch and decrypt cycle and print the messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(opts)
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			local, err := a.localIdentity(opts)
			if err != nil {
				return err
			}

			p, err := a.openPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			result, err := p.reconstructor.Reconstruct(cmd.Context(), a.query(local, with))
			if err != nil {
				return fmt.Errorf("fetch messages: %w", err)
			}
			messages := p.decryptor.DecryptAll(result.Messages, local, result.Registry)

			return writeFetchView(cmd.OutOrStdout(), messages, local.Address, view, asJSON)
		},
	}

	cmd.Flags().StringVar(&with, "with", "", "only show the conversation with this address")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print messages as JSON")
	cmd.Flags().BoolVar(&view.inbox, "inbox", false, "only show messages addressed to you")
	cmd.Flags().BoolVar(&view.sent, "sent", false, "only show messages you sent")
	cmd.Flags().BoolVar(&view.conversations, "conversations", false, "group messages by conversation partner")
	cmd.MarkFlagsMutuallyExclusive("inbox", "sent", "conversations")
	return cmd
}

type fetchView struct {
	inbox         bool
	sent          bool
	conversations bool
}

func writeFetchView(out io.Writer, messages []models.DecryptedMessage, self string, view fetchView, asJSON bool) error {
	if view.conversations {
		conversations := inbox.GroupConversations(messages, self)
		if asJSON {
			return writeJSON(out, conversations)
		}
		return writeConversations(out, conversations)
	}

	switch {
	case view.inbox:
		messages = inbox.Inbox(messages, self)
	case view.sent:
		messages = inbox.Sent(messages, self)
	}

	if asJSON {
		return writeJSON(out, messages)
	}
	return writeMessages(out, messages)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeConversations(out io.Writer, conversations []models.Conversation) error {
	if len(conversations) == 0 {
		_, err := fmt.Fprintln(out, "no conversations in window")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARTNER	MESSAGES	INBOUND	LAST")
	for _, conv := range conversations {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", shortAddress(conv.PartnerAddress), len(conv.Messages), conv.InboundCount, conv.LastMessage.DecryptedContent)
	}
	return w.Flush()
}

func writeMessages(out io.Writer, messages []models.DecryptedMessage) error {
	if len(messages) == 0 {
		_, err := fmt.Fprintln(out, "no messages in window")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tFROM\tTO\tMESSAGE")
	for _, msg := range messages {
		when := "pending"
		if msg.BlockTime > 0 {
			when = time.Unix(msg.BlockTime, 0).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", when, shortAddress(msg.SenderAddress), shortAddress(msg.RecipientAddress), msg.DecryptedContent)
	}
	return w.Flush()
}

func shortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:4] + ".." + address[len(address)-4:]
}
