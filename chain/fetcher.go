package chain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"memochat/models"
	"memochat/storage"
)

const (
	// DefaultSignatureLimit is the signature page size when none is configured.
	DefaultSignatureLimit = 50
	// DefaultFetchDelay spaces uncached transaction fetches.
	DefaultFetchDelay = time.Second

	transactionCachePrefix = "tx_"
)

// Config controls fetcher behavior.
type Config struct {
	RPC   RPC
	Cache storage.Cache

	// SignatureLimit applies when FetchSignatures is called with limit <= 0.
	SignatureLimit int
	// FetchDelay is the minimum spacing between uncached transaction fetches.
	// Zero selects DefaultFetchDelay; negative disables pacing.
	FetchDelay time.Duration

	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	out := c
	if out.SignatureLimit <= 0 {
		out.SignatureLimit = DefaultSignatureLimit
	}
	if out.SignatureLimit > MaxSignatureLimit {
		out.SignatureLimit = MaxSignatureLimit
	}
	if out.FetchDelay == 0 {
		out.FetchDelay = DefaultFetchDelay
	}
	if out.Cache == nil {
		out.Cache = storage.NewMemoryCache()
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return out
}

// Fetcher reads signatures and transactions, caching transactions forever.
type Fetcher struct {
	cfg     Config
	rpc     RPC
	cache   storage.Cache
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewFetcher creates a fetcher.
func NewFetcher(cfg Config) (*Fetcher, error) {
	if cfg.RPC == nil {
		return nil, errors.New("rpc client is required")
	}
	cfg = cfg.withDefaults()

	limit := rate.Inf
	if cfg.FetchDelay > 0 {
		limit = rate.Every(cfg.FetchDelay)
	}

	return &Fetcher{
		cfg:     cfg,
		rpc:     cfg.RPC,
		cache:   cfg.Cache,
		limiter: rate.NewLimiter(limit, 1),
		logger:  cfg.Logger.Named("chain"),
	}, nil
}

// FetchSignatures lists signatures involving address, newest first. limit <= 0
// uses the configured default.
func (f *Fetcher) FetchSignatures(ctx context.Context, address string, limit int) ([]models.TransactionSignature, error) {
	if _, err := ParseAddress(address); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = f.cfg.SignatureLimit
	}
	if limit > MaxSignatureLimit {
		limit = MaxSignatureLimit
	}

	signatures, err := f.rpc.GetSignatures(ctx, address, limit)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("fetched signatures", zap.String("address", address), zap.Int("count", len(signatures)))
	return signatures, nil
}

// FetchTransaction returns the raw jsonParsed transaction for signature. Cached
// transactions are returned without touching the network. ok is false when the
// transaction is absent, failed on chain, or could not be fetched.
func (f *Fetcher) FetchTransaction(ctx context.Context, signature string) (json.RawMessage, bool) {
	if signature == "" {
		return nil, false
	}

	key := transactionCachePrefix + signature
	cached, err := f.cache.Get(key)
	if err == nil {
		return json.RawMessage(cached), true
	}
	if !errors.Is(err, storage.ErrNotFound) {
		f.logger.Warn("cache read failed", zap.String("signature", signature), zap.Error(err))
	}

	if err := f.limiter.Wait(ctx); err != nil {
		f.logger.Debug("fetch cancelled", zap.String("signature", signature), zap.Error(err))
		return nil, false
	}

	raw, err := f.rpc.GetParsedTransaction(ctx, signature)
	if err != nil {
		f.logger.Warn("fetch transaction failed", zap.String("signature", signature), zap.Error(err))
		return nil, false
	}
	if raw == nil {
		f.logger.Debug("transaction not found", zap.String("signature", signature))
		return nil, false
	}
	if TransactionFailed(raw) {
		f.logger.Debug("transaction failed on chain", zap.String("signature", signature))
		return nil, false
	}

	if err := f.cache.Set(key, raw); err != nil {
		f.logger.Warn("cache write failed", zap.String("signature", signature), zap.Error(err))
	}

	return raw, true
}

// TransactionFailed reports whether a jsonParsed transaction carries a non-null
// meta.err. Unreadable payloads count as failed.
func TransactionFailed(raw json.RawMessage) bool {
	var envelope struct {
		Meta *struct {
			Err json.RawMessage `json:"err"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return true
	}
	if envelope.Meta == nil {
		return false
	}
	return len(envelope.Meta.Err) > 0 && string(envelope.Meta.Err) != "null"
}
