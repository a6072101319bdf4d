package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/zap"

	"memochat/chain"
	"memochat/config"
	"memochat/crypto"
	"memochat/inbox"
	"memochat/storage"
)

type globalOptions struct {
	verbose   bool
	community bool
}

type app struct {
	cfg     *config.Config
	cfgPath string
	dataDir string
	logger  *zap.Logger
}

type pipeline struct {
	store         *storage.Store
	fetcher       *chain.Fetcher
	reconstructor *inbox.Reconstructor
	decryptor     *inbox.Decryptor
}

func wireApp(opts *globalOptions) (*app, error) {
	cfg, cfgPath, dataDir, err := config.LoadOrCreate()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(opts.verbose)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return &app{
		cfg:     cfg,
		cfgPath: cfgPath,
		dataDir: dataDir,
		logger:  logger.With(zap.String("client", cfg.ClientID)),
	}, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (a *app) openPipeline() (*pipeline, error) {
	store, _, err := storage.Open(a.dataDir)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	fetcher, err := chain.NewFetcher(chain.Config{
		RPC:            chain.NewSolanaRPC(a.cfg.RPCEndpoint),
		Cache:          store,
		SignatureLimit: a.cfg.SignatureLimit,
		FetchDelay:     a.cfg.FetchDelay(),
		Logger:         a.logger,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	deriveATA, err := chain.NewATADeriver(a.cfg.TokenProgram)
	if err != nil {
		store.Close()
		return nil, err
	}

	reconstructor, err := inbox.NewReconstructor(inbox.ReconstructorConfig{
		Source:    fetcher,
		DeriveATA: deriveATA,
		Logger:    a.logger,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create reconstructor: %w", err)
	}

	return &pipeline{
		store:         store,
		fetcher:       fetcher,
		reconstructor: reconstructor,
		decryptor:     inbox.NewDecryptor(a.logger),
	}, nil
}

func (p *pipeline) Close() error {
	return p.store.Close()
}

// localIdentity returns who is reading and the address whose history is scanned.
func (a *app) localIdentity(opts *globalOptions) (inbox.LocalIdentity, error) {
	if opts.community {
		address := strings.TrimSpace(a.cfg.CommunityAddress)
		if address == "" {
			return inbox.LocalIdentity{}, errors.New("community_address is not configured")
		}
		return inbox.LocalIdentity{Address: address}, nil
	}

	address := strings.TrimSpace(a.cfg.WalletAddress)
	if address == "" {
		return inbox.LocalIdentity{}, fmt.Errorf("wallet_address is not configured (set it in %s or MEMOCHAT_WALLET_ADDRESS)", a.cfgPath)
	}

	keys, err := a.loadBoxKeys()
	if err != nil {
		return inbox.LocalIdentity{}, err
	}
	return inbox.LocalIdentity{Address: address, Keys: keys}, nil
}

// loadBoxKeys returns nil keys when none were generated yet.
func (a *app) loadBoxKeys() (*crypto.BoxKeyPair, error) {
	keys, err := crypto.LoadBoxKeyPair(a.cfg.BoxKeyPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load box keypair: %w", err)
	}
	return keys, nil
}

func (a *app) query(local inbox.LocalIdentity, with string) inbox.Query {
	return inbox.Query{
		Address:          local.Address,
		TokenMint:        a.cfg.TokenMint,
		Window:           a.cfg.TimeWindow(),
		SignatureLimit:   a.cfg.SignatureLimit,
		SortOrder:        inbox.ParseSortOrder(a.cfg.SortOrder),
		Limit:            a.cfg.MessageLimit,
		ConversationWith: with,
		Self:             local.Address,
	}
}
