package bot

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/banky/go-symmio/constants"
	"github.com/banky/go-symmio/hedger"
	"github.com/banky/go-symmio/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PriceOracle is the oracle price feed. *muon.Client implements it.
type PriceOracle interface {
	SymbolPrice(
		ctx context.Context,
		partyA common.Address,
		chainID *big.Int,
		symmio common.Address,
		symbolID *big.Int,
	) (decimal.Decimal, error)
}

// QuoteWaiter resolves a temp quote id from pushed notifications.
// *notify.Manager implements it.
type QuoteWaiter interface {
	WaitForQuote(ctx context.Context, tempID int64) (int64, error)
}

type InstantTraderConfig struct {
	Hedger *hedger.Client
	Oracle PriceOracle
	// Notify confirms quotes when set; otherwise the solver is polled
	Notify QuoteWaiter
	Poll   hedger.PollConfig
	// Token overrides the SIWE login, e.g. with a saved access token
	Token func(ctx context.Context) (string, error)

	ChainID      *big.Int
	Diamond      common.Address
	SymbolID     int64
	PositionType types.PositionType
	Quantity     decimal.Decimal
	Leverage     decimal.Decimal
	// Slippage is the fraction added to the oracle price on open and
	// taken off on close
	// If none is provided, 0.01 is used
	Slippage decimal.Decimal
	// DeadlineOffset of the open request
	// If none is provided, 1h is used
	DeadlineOffset time.Duration
	Logger         *zerolog.Logger
}

// InstantTrader opens and closes one market position through the solver's
// instant actions.
type InstantTrader struct {
	cfg    InstantTraderConfig
	logger zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	token     string
	tokenTime time.Time
	symbol    *hedger.SymbolInfo
}

func NewInstantTrader(cfg InstantTraderConfig) (*InstantTrader, error) {
	if cfg.Hedger == nil || cfg.Oracle == nil {
		return nil, fmt.Errorf("hedger and oracle clients are required")
	}
	if !cfg.Quantity.IsPositive() {
		return nil, fmt.Errorf("quantity must be positive")
	}
	if cfg.Leverage.IsZero() {
		cfg.Leverage = decimal.NewFromInt(1)
	}
	if cfg.Slippage.IsZero() {
		cfg.Slippage = decimal.RequireFromString("0.01")
	}
	if cfg.DeadlineOffset <= 0 {
		cfg.DeadlineOffset = constants.DEFAULT_DEADLINE_OFFSET
	}
	if cfg.ChainID == nil {
		cfg.ChainID = big.NewInt(constants.INSTANT_CHAIN_ID)
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "trader").Logger()
	}

	return &InstantTrader{cfg: cfg, logger: logger, now: time.Now}, nil
}

// accessToken logs in once and again after the session lifetime.
func (t *InstantTrader) accessToken(ctx context.Context) (string, error) {
	if t.cfg.Token != nil {
		return t.cfg.Token(ctx)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && t.now().Sub(t.tokenTime) < constants.DEFAULT_SESSION_LIFETIME {
		return t.token, nil
	}
	token, err := t.cfg.Hedger.Login(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to login: %w", err)
	}
	t.token, t.tokenTime = token, t.now()
	return token, nil
}

func (t *InstantTrader) symbolInfo(ctx context.Context) (hedger.SymbolInfo, error) {
	t.mu.Lock()
	cached := t.symbol
	t.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	info, err := t.cfg.Hedger.SymbolInfo(ctx, t.cfg.SymbolID)
	if err != nil {
		return hedger.SymbolInfo{}, err
	}

	t.mu.Lock()
	t.symbol = &info
	t.mu.Unlock()
	return info, nil
}

func (t *InstantTrader) oraclePrice(ctx context.Context) (decimal.Decimal, error) {
	return t.cfg.Oracle.SymbolPrice(
		ctx,
		t.cfg.Hedger.Account(),
		t.cfg.ChainID,
		t.cfg.Diamond,
		big.NewInt(t.cfg.SymbolID),
	)
}

func (t *InstantTrader) Open(ctx context.Context) (int64, error) {
	token, err := t.accessToken(ctx)
	if err != nil {
		return 0, err
	}
	info, err := t.symbolInfo(ctx)
	if err != nil {
		return 0, err
	}
	price, err := t.oraclePrice(ctx)
	if err != nil {
		return 0, err
	}
	params, err := t.cfg.Hedger.LockedParams(ctx, info.Name, t.cfg.Leverage)
	if err != nil {
		return 0, err
	}

	req := hedger.NewInstantOpenRequest(hedger.OpenParams{
		SymbolID:          t.cfg.SymbolID,
		PositionType:      t.cfg.PositionType,
		OrderType:         types.MARKET,
		Price:             hedger.SlippagePrice(price, t.cfg.Slippage, t.cfg.PositionType, false),
		Quantity:          t.cfg.Quantity,
		Deadline:          t.now().Add(t.cfg.DeadlineOffset),
		PricePrecision:    info.PricePrecision,
		QuantityPrecision: info.QuantityPrecision,
	}, params)

	t.logger.Debug().
		Str("oracle_price", price.String()).
		Str("price", req.Price).
		Str("cva", req.Cva).
		Msg("instant open")
	return t.cfg.Hedger.InstantOpen(ctx, token, req)
}

func (t *InstantTrader) Confirm(ctx context.Context, tempID int64) (int64, error) {
	if t.cfg.Notify != nil {
		return t.cfg.Notify.WaitForQuote(ctx, tempID)
	}
	token, err := t.accessToken(ctx)
	if err != nil {
		return 0, err
	}
	return t.cfg.Hedger.WaitForQuoteID(ctx, token, t.cfg.Hedger.Account(), tempID, t.cfg.Poll)
}

func (t *InstantTrader) Close(ctx context.Context, quoteID int64) error {
	token, err := t.accessToken(ctx)
	if err != nil {
		return err
	}
	info, err := t.symbolInfo(ctx)
	if err != nil {
		return err
	}
	price, err := t.oraclePrice(ctx)
	if err != nil {
		return err
	}

	closePrice := hedger.SlippagePrice(price, t.cfg.Slippage, t.cfg.PositionType, true)
	_, err = t.cfg.Hedger.InstantClose(ctx, token, hedger.InstantCloseRequest{
		QuoteID:         quoteID,
		QuantityToClose: hedger.FormatDecimal(t.cfg.Quantity, info.QuantityPrecision),
		ClosePrice:      hedger.FormatDecimal(closePrice, info.PricePrecision),
	})
	return err
}
