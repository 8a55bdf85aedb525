package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/briandowns/spinner"

	"reef-swap/config"
	"reef-swap/pkg/chain/evm"
	"reef-swap/pkg/market"
	"reef-swap/pkg/pool"
	"reef-swap/pkg/types"
	"reef-swap/pkg/wallet"
)

// session wires the market data, chain client and signer for one command
type session struct {
	cfg      *config.Config
	poller   *market.Poller
	resolver *pool.Resolver
	chain    *evm.Client
	signer   *wallet.KeySigner
	logger   *slog.Logger
}

func newSession(ctx context.Context, cfg *config.Config, withSigner bool) (*session, error) {
	logger := slog.Default()
	dex := market.NewClient(cfg.Network.GraphqlDexURL, &http.Client{Timeout: market.DefaultTimeout}, logger)
	resolver := pool.NewResolver(nil)
	poller := market.NewPoller(dex, market.NewPricer(market.StaticPrices(cfg.Prices)), cfg.PollInterval, logger)
	poller.Subscribe(func(snap market.Snapshot) {
		resolver.Update(snap.Pools)
	})

	s := &session{
		cfg:      cfg,
		poller:   poller,
		resolver: resolver,
		logger:   logger,
	}
	if !withSigner {
		return s, nil
	}

	if err := cfg.RequireKey(); err != nil {
		return nil, err
	}
	signer, err := wallet.FromHex(cfg.PrivateKey, wallet.Options{
		NativeAddress: cfg.NativeAddress,
		Claimed:       cfg.EvmClaimed,
	})
	if err != nil {
		return nil, err
	}
	client, err := evm.Dial(ctx, cfg.Network.RPCURL, evm.Options{
		ChainID: cfg.Network.ChainID,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	s.signer = signer
	s.chain = client
	return s, nil
}

// load fetches a market snapshot and, when a signer is present, the account
// balances of every listed token.
func (s *session) load(ctx context.Context) (market.Snapshot, error) {
	snap, err := s.poller.Refresh(ctx)
	if err != nil {
		return market.Snapshot{}, fmt.Errorf("failed to fetch pools: %w", err)
	}
	if s.chain == nil {
		return snap, nil
	}
	tokens, err := s.balances(ctx, snap.Tokens)
	if err != nil {
		return market.Snapshot{}, err
	}
	snap.Tokens = tokens
	return snap, nil
}

func (s *session) balances(ctx context.Context, tokens []types.Token) ([]types.Token, error) {
	out, err := s.chain.TokenBalances(ctx, s.signer.EVMAddress(), tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balances: %w", err)
	}
	return out, nil
}

func (s *session) close() {
	if s.chain != nil {
		s.chain.Close()
	}
}

// withSpinner runs fn behind a spinner unless output is JSON
func withSpinner(jsonOutput bool, suffix string, fn func() error) error {
	if jsonOutput {
		return fn()
	}
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	sp.Suffix = " " + suffix
	sp.Start()
	defer sp.Stop()
	return fn()
}
