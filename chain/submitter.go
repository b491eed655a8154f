package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/banky/go-symmio/constants"
	"github.com/banky/go-symmio/errs"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Config for initializing a Submitter
type Config struct {
	Backend    Backend
	PrivateKey *ecdsa.PrivateKey
	// ChainID is queried from the backend when nil
	ChainID *big.Int
	// GasPriceMultiplier scales the node's suggested gas price
	// If none is provided, 1.5 is used
	GasPriceMultiplier float64
	// Wait blocks each Send until the receipt is available
	Wait bool
	// ABIs are searched for custom errors when decoding reverts
	ABIs   []*abi.ABI
	Logger *zerolog.Logger
}

// Submitter signs legacy transactions with a fixed gas limit and
// broadcasts them.
type Submitter struct {
	backend    Backend
	key        *ecdsa.PrivateKey
	from       common.Address
	chainID    *big.Int
	multiplier decimal.Decimal
	wait       bool
	abis       []*abi.ABI
	logger     zerolog.Logger
}

// Result describes a broadcast transaction. Receipt is nil unless the
// submitter waited for it.
type Result struct {
	Hash     common.Hash
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	Receipt  *types.Receipt
}

// New creates a Submitter, resolving the chain id from the backend if the
// config does not carry one.
func New(ctx context.Context, cfg Config) (*Submitter, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if cfg.PrivateKey == nil {
		return nil, fmt.Errorf("private key is required")
	}

	chainID := cfg.ChainID
	if chainID == nil {
		id, err := cfg.Backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch chain id: %w", err)
		}
		chainID = id
	}

	multiplier := decimal.NewFromFloat(constants.DEFAULT_GAS_PRICE_MULTIPLIER)
	if cfg.GasPriceMultiplier > 0 {
		multiplier = decimal.NewFromFloat(cfg.GasPriceMultiplier)
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Submitter{
		backend:    cfg.Backend,
		key:        cfg.PrivateKey,
		from:       crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey),
		chainID:    chainID,
		multiplier: multiplier,
		wait:       cfg.Wait,
		abis:       cfg.ABIs,
		logger:     logger,
	}, nil
}

func (s *Submitter) From() common.Address {
	return s.from
}

func (s *Submitter) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

func (s *Submitter) Backend() Backend {
	return s.backend
}

/*//////////////////////////////////////////////////////////////
                          SEND OPTIONS
//////////////////////////////////////////////////////////////*/

type SendOption func(*sendConfig)

type sendConfig struct {
	wait        bool
	label       string
	fingerprint common.Hash
}

// WithWait overrides the submitter's wait setting for one send
func WithWait(wait bool) SendOption {
	return func(c *sendConfig) {
		c.wait = wait
	}
}

// WithLabel names the call in logs and errors
func WithLabel(label string) SendOption {
	return func(c *sendConfig) {
		c.label = label
	}
}

// WithFingerprint attaches an attestation fingerprint to the log line
func WithFingerprint(h common.Hash) SendOption {
	return func(c *sendConfig) {
		c.fingerprint = h
	}
}

/*//////////////////////////////////////////////////////////////
                              SEND
//////////////////////////////////////////////////////////////*/

// GasPrice applies the multiplier to a suggested gas price, truncating to
// whole wei.
func (s *Submitter) GasPrice(suggested *big.Int) *big.Int {
	return decimal.NewFromBigInt(suggested, 0).Mul(s.multiplier).Truncate(0).BigInt()
}

// Send signs and broadcasts a call to `to` with the given gas limit. When
// waiting, a receipt with a failed status is replayed as an eth_call at
// the same block to recover the revert reason.
func (s *Submitter) Send(
	ctx context.Context,
	to common.Address,
	data []byte,
	gasLimit uint64,
	opts ...SendOption,
) (*Result, error) {
	cfg := sendConfig{wait: s.wait}
	for _, opt := range opts {
		opt(&cfg)
	}

	op := "chain.send"
	if cfg.label != "" {
		op = "chain." + cfg.label
	}

	nonce, err := s.backend.PendingNonceAt(ctx, s.from)
	if err != nil {
		return nil, errs.Wrap(errs.ChainRevert, op, fmt.Errorf("pending nonce: %w", err))
	}

	suggested, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ChainRevert, op, fmt.Errorf("suggest gas price: %w", err))
	}
	gasPrice := s.GasPrice(suggested)

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.NewEIP155Signer(s.chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to sign transaction: %w", op, err)
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return nil, s.revert(op, err)
	}

	event := s.logger.Info().
		Str("tx_hash", signed.Hash().Hex()).
		Str("to", to.Hex()).
		Uint64("nonce", nonce).
		Str("gas_price", gasPrice.String()).
		Uint64("gas_limit", gasLimit)
	if cfg.fingerprint != (common.Hash{}) {
		event = event.Str("fingerprint", cfg.fingerprint.Hex())
	}
	event.Msg(op)

	res := &Result{
		Hash:     signed.Hash(),
		Nonce:    nonce,
		GasPrice: gasPrice,
		GasLimit: gasLimit,
	}

	if !cfg.wait {
		return res, nil
	}

	receipt, err := bind.WaitMined(ctx, s.backend, signed)
	if err != nil {
		return res, fmt.Errorf("%s: failed waiting for %s: %w", op, signed.Hash().Hex(), err)
	}
	res.Receipt = receipt

	s.logger.Info().
		Str("tx_hash", signed.Hash().Hex()).
		Uint64("status", receipt.Status).
		Uint64("gas_used", receipt.GasUsed).
		Msg("receipt")

	if receipt.Status != types.ReceiptStatusSuccessful {
		return res, s.replay(ctx, op, to, data, gasLimit, gasPrice, receipt)
	}

	return res, nil
}

func (s *Submitter) replay(
	ctx context.Context,
	op string,
	to common.Address,
	data []byte,
	gasLimit uint64,
	gasPrice *big.Int,
	receipt *types.Receipt,
) error {
	msg := ethereum.CallMsg{
		From:     s.from,
		To:       &to,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	}

	_, err := s.backend.CallContract(ctx, msg, receipt.BlockNumber)
	if err != nil {
		return s.revert(op, err)
	}

	return errs.Newf(errs.ChainRevert, op, "transaction %s reverted", receipt.TxHash.Hex())
}

func (s *Submitter) revert(op string, err error) error {
	if data, ok := revertData(err); ok {
		return errs.Wrap(errs.ChainRevert, op, DecodeRevert(data, s.abis...))
	}
	return errs.Wrap(errs.ChainRevert, op, err)
}
