// Package inbox rebuilds message threads from chain history and decrypts them.
package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"memochat/chain"
	"memochat/identity"
	"memochat/memo"
	"memochat/models"
)

// DefaultWindow is how far back messages are considered.
const DefaultWindow = 3 * 24 * time.Hour

// SortOrder selects the final message ordering.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// ParseSortOrder maps config text to a SortOrder. Anything but "asc" sorts newest first.
func ParseSortOrder(value string) SortOrder {
	if SortOrder(value) == SortAscending {
		return SortAscending
	}
	return SortDescending
}

// Source is the chain access the reconstructor needs. *chain.Fetcher implements it.
type Source interface {
	FetchSignatures(ctx context.Context, address string, limit int) ([]models.TransactionSignature, error)
	FetchTransaction(ctx context.Context, signature string) (json.RawMessage, bool)
}

var _ Source = (*chain.Fetcher)(nil)

// Query describes one reconstruction.
type Query struct {
	// Address is the primary signature source.
	Address string
	// TokenMint adds the associated token account of Address as a second
	// source. Empty skips it.
	TokenMint string
	// Window drops signatures at or before now-Window. Zero or negative disables it.
	Window time.Duration
	// SignatureLimit caps each signature listing. Zero uses the fetcher default.
	SignatureLimit int

	SortOrder SortOrder
	// Limit truncates the sorted result. Zero or negative keeps everything.
	Limit int

	RecipientFilter string
	SenderFilter    string
	// ConversationWith keeps only messages between Self and this address.
	ConversationWith string
	// Self is the local address for conversation filtering. Defaults to Address.
	Self string
}

// Result is the outcome of one reconstruction.
type Result struct {
	Messages []models.Message
	Registry models.IdentityRegistry
	// Scanned is the number of signatures inside the window.
	Scanned int
}

// ReconstructorConfig wires a Reconstructor.
type ReconstructorConfig struct {
	Source    Source
	DeriveATA chain.ATADeriver
	Logger    *zap.Logger

	now func() time.Time
}

// Reconstructor turns signature listings into an ordered message list and an
// identity registry.
type Reconstructor struct {
	source    Source
	deriveATA chain.ATADeriver
	logger    *zap.Logger
	now       func() time.Time
}

// NewReconstructor creates a reconstructor.
func NewReconstructor(cfg ReconstructorConfig) (*Reconstructor, error) {
	if cfg.Source == nil {
		return nil, errors.New("signature source is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}

	return &Reconstructor{
		source:    cfg.Source,
		deriveATA: cfg.DeriveATA,
		logger:    cfg.Logger.Named("inbox"),
		now:       cfg.now,
	}, nil
}

// Reconstruct runs one full fetch-decode pass. Only a failure to list the
// primary address's signatures is returned as an error; every other failure
// drops the affected record.
func (r *Reconstructor) Reconstruct(ctx context.Context, q Query) (Result, error) {
	if q.Address == "" {
		return Result{}, errors.New("address is required")
	}

	primary, secondary, err := r.listSignatures(ctx, q)
	if err != nil {
		return Result{}, err
	}

	signatures := SortSignatures(MergeSignatures(primary, secondary))
	signatures = ApplyWindow(signatures, r.now(), q.Window)

	messages := make([]models.Message, 0, len(signatures))
	identities := make([]models.MemoRecord, 0)
	for _, sig := range signatures {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("reconstruct %s: %w", q.Address, err)
		}

		raw, ok := r.source.FetchTransaction(ctx, sig.Signature)
		if !ok {
			continue
		}

		record, ok := memo.Decode(sig.Signature, raw)
		if !ok {
			continue
		}

		switch record.Kind {
		case models.RecordIdentity:
			identities = append(identities, record)
		case models.RecordMessage:
			messages = append(messages, *record.Message)
		}
	}
	// A fetch cut short by cancellation looks like a dropped record.
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("reconstruct %s: %w", q.Address, err)
	}

	// signatures are newest first, so the fold keeps each address's latest key.
	registry := identity.Build(identities)

	messages = applyFilters(messages, q)
	SortMessages(messages, q.SortOrder)
	if q.Limit > 0 && len(messages) > q.Limit {
		messages = messages[:q.Limit]
	}

	r.logger.Debug("reconstructed messages",
		zap.String("address", q.Address),
		zap.Int("signatures", len(signatures)),
		zap.Int("messages", len(messages)),
		zap.Int("identities", registry.Len()),
	)

	return Result{Messages: messages, Registry: registry, Scanned: len(signatures)}, nil
}

func (r *Reconstructor) listSignatures(ctx context.Context, q Query) ([]models.TransactionSignature, []models.TransactionSignature, error) {
	var primary, secondary []models.TransactionSignature

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sigs, err := r.source.FetchSignatures(gctx, q.Address, q.SignatureLimit)
		if err != nil {
			return fmt.Errorf("list signatures for %s: %w", q.Address, err)
		}
		primary = sigs
		return nil
	})

	if q.TokenMint != "" && r.deriveATA != nil {
		g.Go(func() error {
			ata, err := r.deriveATA(q.Address, q.TokenMint)
			if err != nil {
				r.logger.Warn("derive token account failed", zap.String("address", q.Address), zap.Error(err))
				return nil
			}

			sigs, err := r.source.FetchSignatures(gctx, ata, q.SignatureLimit)
			if err != nil {
				r.logger.Warn("list token account signatures failed", zap.String("account", ata), zap.Error(err))
				return nil
			}
			secondary = sigs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return primary, secondary, nil
}

// MergeSignatures concatenates listings and keeps the first entry per signature.
func MergeSignatures(lists ...[]models.TransactionSignature) []models.TransactionSignature {
	seen := make(map[string]struct{})
	out := make([]models.TransactionSignature, 0)
	for _, list := range lists {
		for _, sig := range list {
			if sig.Signature == "" {
				continue
			}
			if _, ok := seen[sig.Signature]; ok {
				continue
			}
			seen[sig.Signature] = struct{}{}
			out = append(out, sig)
		}
	}
	return out
}

// SortSignatures orders newest first. Entries without a block time are treated
// as newest; ties fall back to the signature text.
func SortSignatures(sigs []models.TransactionSignature) []models.TransactionSignature {
	sort.SliceStable(sigs, func(i, j int) bool {
		a, b := sigs[i].BlockTime, sigs[j].BlockTime
		switch {
		case a == nil && b == nil:
			return sigs[i].Signature < sigs[j].Signature
		case a == nil:
			return true
		case b == nil:
			return false
		case *a != *b:
			return *a > *b
		default:
			return sigs[i].Signature < sigs[j].Signature
		}
	})
	return sigs
}

// ApplyWindow walks newest-first signatures and stops at the first one at or
// before now-window. Signatures without a block time are kept.
func ApplyWindow(sigs []models.TransactionSignature, now time.Time, window time.Duration) []models.TransactionSignature {
	if window <= 0 {
		return sigs
	}

	cutoff := now.Add(-window).Unix()
	for i, sig := range sigs {
		if sig.BlockTime != nil && *sig.BlockTime <= cutoff {
			return sigs[:i]
		}
	}
	return sigs
}

// SortMessages orders by block time in the given direction, breaking ties by signature.
func SortMessages(messages []models.Message, order SortOrder) {
	sort.SliceStable(messages, func(i, j int) bool {
		a, b := messages[i].Timestamp(), messages[j].Timestamp()
		if a != b {
			if order == SortAscending {
				return a < b
			}
			return a > b
		}
		return messages[i].Signature < messages[j].Signature
	})
}

func applyFilters(messages []models.Message, q Query) []models.Message {
	out := messages[:0]
	for _, msg := range messages {
		if q.RecipientFilter != "" && msg.RecipientAddress != q.RecipientFilter {
			continue
		}
		if q.SenderFilter != "" && msg.SenderAddress != q.SenderFilter {
			continue
		}
		out = append(out, msg)
	}

	if q.ConversationWith != "" {
		self := q.Self
		if self == "" {
			self = q.Address
		}
		out = FilterConversation(out, self, q.ConversationWith)
	}
	return out
}

// FilterConversation keeps messages exchanged between a and b in either direction.
func FilterConversation(messages []models.Message, a, b string) []models.Message {
	out := make([]models.Message, 0, len(messages))
	for _, msg := range messages {
		if (msg.SenderAddress == a && msg.RecipientAddress == b) ||
			(msg.SenderAddress == b && msg.RecipientAddress == a) {
			out = append(out, msg)
		}
	}
	return out
}
