package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"memochat/poller"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var with string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll for new messages until interrupted",
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

			watcher, err := poller.New(poller.Config{
				Reconstructor: p.reconstructor,
				Decryptor:     p.decryptor,
				Query:         a.query(local, with),
				Local:         local,
				Interval:      a.cfg.PollInterval(),
				Jitter:        a.cfg.PollJitter(),
				Logger:        a.logger,
			})
			if err != nil {
				return fmt.Errorf("create poller: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := watcher.Start(); err != nil {
				return err
			}
			defer watcher.Stop()

			return watchEvents(ctx, cmd, watcher, a.logger)
		},
	}

	cmd.Flags().StringVar(&with, "with", "", "only show the conversation with this address")
	return cmd
}

func watchEvents(ctx context.Context, cmd *cobra.Command, watcher *poller.Poller, logger *zap.Logger) error {
	seen := make(map[string]struct{})
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events():
			if !ok {
				return nil
			}

			switch event.Type {
			case poller.EventCycleFailed:
				logger.Warn("watch: cycle failed, keeping previous messages", zap.String("cycle", event.CycleID), zap.Error(event.Err))
			case poller.EventCycleCompleted:
				snap := watcher.Snapshot()
				for _, msg := range snap.Messages {
					if _, ok := seen[msg.Signature]; ok {
						continue
					}
					seen[msg.Signature] = struct{}{}
					fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s: %s\n", shortAddress(msg.SenderAddress), shortAddress(msg.RecipientAddress), msg.DecryptedContent)
				}
			}
		}
	}
}
