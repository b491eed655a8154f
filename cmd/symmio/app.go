package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/banky/go-symmio/abis"
	"github.com/banky/go-symmio/chain"
	"github.com/banky/go-symmio/config"
	"github.com/banky/go-symmio/hedger"
	"github.com/banky/go-symmio/multiaccount"
	"github.com/banky/go-symmio/muon"
	"github.com/banky/go-symmio/options"
	"github.com/banky/go-symmio/symmio"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// app holds the loaded configuration and lazily builds the clients a
// command asks for. One app lives for one invocation.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	wait   bool

	backend   chain.Backend
	submitter *chain.Submitter
}

func newLogger(w io.Writer, level string, json bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if !json {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl), nil
}

func (a *app) abi(name string) (*abi.ABI, error) {
	parsed, err := abis.Load(name, a.cfg.ABIDir)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// need checks RPC_URL, PRIVATE_KEY when signing, and names in one pass so
// a command lists all of its missing variables before building a client.
func (a *app) need(signing bool, names ...string) error {
	all := []string{config.RPC_URL}
	if signing {
		all = append(all, config.PRIVATE_KEY)
	}
	return a.cfg.Require(append(all, names...)...)
}

func (a *app) chainBackend(ctx context.Context) (chain.Backend, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	if err := a.need(false); err != nil {
		return nil, err
	}
	client, err := chain.Dial(ctx, a.cfg.RPCURL)
	if err != nil {
		return nil, err
	}
	a.backend = client
	return client, nil
}

// signer builds the transaction submitter for PRIVATE_KEY. Reverts are
// decoded against every ABI the commands send to.
func (a *app) signer(ctx context.Context) (*chain.Submitter, error) {
	if a.submitter != nil {
		return a.submitter, nil
	}
	if err := a.need(true); err != nil {
		return nil, err
	}
	key, err := a.cfg.Key()
	if err != nil {
		return nil, err
	}
	backend, err := a.chainBackend(ctx)
	if err != nil {
		return nil, err
	}

	var parsed []*abi.ABI
	for _, name := range []string{abis.SYMMIO, abis.MULTIACCOUNT, abis.OPTIONS} {
		p, err := a.abi(name)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, p)
	}

	submitter, err := chain.New(ctx, chain.Config{
		Backend:            backend,
		PrivateKey:         key,
		ChainID:            a.cfg.ChainIDBig(),
		GasPriceMultiplier: a.cfg.GasPriceMultiplier,
		Wait:               a.wait,
		ABIs:               parsed,
		Logger:             &a.logger,
	})
	if err != nil {
		return nil, err
	}
	a.submitter = submitter
	return submitter, nil
}

// diamond binds DIAMOND_ADDRESS, read-only unless signing is set.
func (a *app) diamond(ctx context.Context, signing bool) (*symmio.Diamond, error) {
	if err := a.need(signing, config.DIAMOND_ADDRESS); err != nil {
		return nil, err
	}
	address, err := a.cfg.Address(config.DIAMOND_ADDRESS)
	if err != nil {
		return nil, err
	}
	backend, err := a.chainBackend(ctx)
	if err != nil {
		return nil, err
	}
	parsed, err := a.abi(abis.SYMMIO)
	if err != nil {
		return nil, err
	}

	var submitter *chain.Submitter
	if signing {
		if submitter, err = a.signer(ctx); err != nil {
			return nil, err
		}
	}

	return symmio.New(symmio.Config{
		Address:    address,
		ABI:        parsed,
		Backend:    backend,
		Submitter:  submitter,
		Collateral: a.cfg.OptionalAddress(config.COLLATERAL_ADDRESS).OrEmpty(),
		Logger:     &a.logger,
	})
}

func (a *app) oracle() *muon.Client {
	return muon.New(muon.Config{
		BaseURL: a.cfg.MuonBaseURL,
		Timeout: a.cfg.HTTPTimeout.Duration,
		Logger:  &a.logger,
	})
}

// partyA is SUB_ACCOUNT_ADDRESS, or the signer's own address when no
// sub-account is configured.
func (a *app) partyA(ctx context.Context) (common.Address, error) {
	if sub, ok := a.cfg.OptionalAddress(config.SUB_ACCOUNT_ADDRESS).Get(); ok {
		return sub, nil
	}
	submitter, err := a.signer(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return submitter.From(), nil
}

// flows builds the attestation-gated client. With a sub-account
// configured, partyA writes are forwarded through the multi-account.
func (a *app) flows(ctx context.Context, markets bool) (*symmio.Client, error) {
	names := []string{config.DIAMOND_ADDRESS}
	if markets {
		names = append(names, config.HEDGER_URL)
	}
	if err := a.need(true, names...); err != nil {
		return nil, err
	}
	diamond, err := a.diamond(ctx, true)
	if err != nil {
		return nil, err
	}
	partyA, err := a.partyA(ctx)
	if err != nil {
		return nil, err
	}

	cfg := symmio.ClientConfig{
		Diamond: diamond,
		Oracle:  a.oracle(),
		ChainID: a.cfg.ChainIDBig(),
		PartyA:  partyA,
		Logger:  &a.logger,
	}
	if _, ok := a.cfg.OptionalAddress(config.SUB_ACCOUNT_ADDRESS).Get(); ok {
		if _, ok := a.cfg.OptionalAddress(config.MULTIACCOUNT_ADDRESS).Get(); ok {
			m, err := a.multiAccount(ctx, diamond)
			if err != nil {
				return nil, err
			}
			cfg.Executor = m.For(partyA)
		}
	}
	if markets {
		h, err := a.hedger(false)
		if err != nil {
			return nil, err
		}
		cfg.Markets = h
	}
	return symmio.NewClient(cfg)
}

func (a *app) multiAccount(ctx context.Context, diamond *symmio.Diamond) (*multiaccount.MultiAccount, error) {
	if err := a.need(true, config.DIAMOND_ADDRESS, config.MULTIACCOUNT_ADDRESS); err != nil {
		return nil, err
	}
	address, err := a.cfg.Address(config.MULTIACCOUNT_ADDRESS)
	if err != nil {
		return nil, err
	}
	if diamond == nil {
		if diamond, err = a.diamond(ctx, true); err != nil {
			return nil, err
		}
	}
	submitter, err := a.signer(ctx)
	if err != nil {
		return nil, err
	}
	parsed, err := a.abi(abis.MULTIACCOUNT)
	if err != nil {
		return nil, err
	}

	return multiaccount.New(multiaccount.Config{
		Address:    address,
		ABI:        parsed,
		Diamond:    diamond,
		Backend:    submitter.Backend(),
		Submitter:  submitter,
		Collateral: a.cfg.OptionalAddress(config.COLLATERAL_ADDRESS).OrEmpty(),
		Logger:     &a.logger,
	})
}

func (a *app) options(ctx context.Context, signing bool) (*options.Client, error) {
	if err := a.need(signing, config.OPTIONS_ADDRESS); err != nil {
		return nil, err
	}
	address, err := a.cfg.Address(config.OPTIONS_ADDRESS)
	if err != nil {
		return nil, err
	}
	backend, err := a.chainBackend(ctx)
	if err != nil {
		return nil, err
	}
	parsed, err := a.abi(abis.OPTIONS)
	if err != nil {
		return nil, err
	}

	var submitter *chain.Submitter
	if signing {
		if submitter, err = a.signer(ctx); err != nil {
			return nil, err
		}
	}

	return options.New(options.Config{
		Address:   address,
		ABI:       parsed,
		Backend:   backend,
		Submitter: submitter,
		Oracle:    a.oracle(),
		ChainID:   a.cfg.ChainIDBig(),
		Logger:    &a.logger,
	})
}

// hedger builds the solver client for SUB_ACCOUNT_ADDRESS. A signing
// client can log in; a plain one only reads public endpoints.
func (a *app) hedger(signing bool) (*hedger.Client, error) {
	cfg := hedger.Config{
		BaseURL:        a.cfg.HedgerURL,
		AccountAddress: a.cfg.OptionalAddress(config.SUB_ACCOUNT_ADDRESS).OrEmpty(),
		ChainID:        a.cfg.InstantChainIDBig(),
		Timeout:        a.cfg.HTTPTimeout.Duration,
		Logger:         &a.logger,
	}
	if signing {
		if err := a.cfg.Require(config.HEDGER_URL, config.PRIVATE_KEY, config.SUB_ACCOUNT_ADDRESS); err != nil {
			return nil, err
		}
		key, err := a.cfg.Key()
		if err != nil {
			return nil, err
		}
		cfg.PrivateKey = key
	}
	return hedger.New(cfg)
}

// token returns an access token, from --token or HEDGER_TOKEN when given,
// otherwise by logging in.
func (a *app) token(ctx context.Context, h *hedger.Client, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if env := os.Getenv("HEDGER_TOKEN"); env != "" {
		return env, nil
	}
	return h.Login(ctx)
}
