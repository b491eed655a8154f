package symmio

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/banky/go-symmio/chain"
	"github.com/banky/go-symmio/constants"
	"github.com/banky/go-symmio/hedger"
	"github.com/banky/go-symmio/internal/utils"
	"github.com/banky/go-symmio/muon"
	"github.com/banky/go-symmio/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// MarketSource resolves market metadata and margin parameters.
// *hedger.Client implements it.
type MarketSource interface {
	SymbolInfo(ctx context.Context, symbolID int64) (hedger.SymbolInfo, error)
	LockedParams(ctx context.Context, market string, leverage decimal.Decimal) (hedger.LockedParams, error)
}

// Executor submits a prepared diamond call. *Diamond sends it directly;
// a multi-account proxy wraps it for a sub-account.
type Executor interface {
	Exec(ctx context.Context, call chain.Call, opts ...chain.SendOption) (*chain.Result, error)
}

// ClientConfig for initializing the attestation-gated flows
type ClientConfig struct {
	Diamond *Diamond
	Oracle  *muon.Client
	ChainID *big.Int
	// PartyA is the trading account, usually a sub-account of a
	// multi-account
	PartyA common.Address
	// Markets is only needed by SendQuote
	Markets MarketSource
	// Executor defaults to the diamond itself
	Executor Executor
	Logger   *zerolog.Logger
}

// Client composes oracle fetches with diamond writes. Every flow comes in
// two halves: Prepare* gathers attestations and returns the call, the
// unprefixed method also submits it.
type Client struct {
	diamond  *Diamond
	oracle   *muon.Client
	chainID  *big.Int
	partyA   common.Address
	markets  mo.Option[MarketSource]
	executor Executor
	logger   zerolog.Logger
	now      func() time.Time
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Diamond == nil {
		return nil, fmt.Errorf("diamond is required")
	}
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("oracle client is required")
	}
	chainID := cfg.ChainID
	if chainID == nil {
		chainID = big.NewInt(constants.DEFAULT_CHAIN_ID)
	}

	var markets mo.Option[MarketSource]
	if cfg.Markets != nil {
		markets = mo.Some(cfg.Markets)
	}

	executor := cfg.Executor
	if executor == nil {
		executor = cfg.Diamond
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "flows").Logger()
	}

	return &Client{
		diamond:  cfg.Diamond,
		oracle:   cfg.Oracle,
		chainID:  chainID,
		partyA:   cfg.PartyA,
		markets:  markets,
		executor: executor,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (c *Client) Diamond() *Diamond {
	return c.diamond
}

func (c *Client) PartyA() common.Address {
	return c.partyA
}

func (c *Client) partyB() (common.Address, error) {
	sender, ok := c.diamond.Sender()
	if !ok {
		return common.Address{}, fmt.Errorf("a signing submitter is required to act as partyB")
	}
	return sender, nil
}

func (c *Client) exec(ctx context.Context, call chain.Call, err error, opts []chain.SendOption) (*chain.Result, error) {
	if err != nil {
		return nil, err
	}
	return c.executor.Exec(ctx, call, opts...)
}

/*//////////////////////////////////////////////////////////////
                            SEND QUOTE
//////////////////////////////////////////////////////////////*/

type SendQuoteParams struct {
	SymbolID     int64
	PositionType types.PositionType
	OrderType    types.OrderType
	Quantity     decimal.Decimal
	Leverage     decimal.Decimal
	// Slippage is a fraction applied to the oracle price, e.g. 0.01
	Slippage         decimal.Decimal
	PartyBsWhiteList []common.Address
	// Deadline defaults to 24h from now
	Deadline time.Time
}

// PrepareSendQuote prices the quote at the oracle price plus slippage and
// locks margins according to the solver's parameters for the market.
func (c *Client) PrepareSendQuote(ctx context.Context, p SendQuoteParams) (chain.Call, error) {
	markets, ok := c.markets.Get()
	if !ok {
		return chain.Call{}, fmt.Errorf("a market source is required to send quotes")
	}

	symbol, err := markets.SymbolInfo(ctx, p.SymbolID)
	if err != nil {
		return chain.Call{}, fmt.Errorf("failed to resolve symbol %d: %w", p.SymbolID, err)
	}
	params, err := markets.LockedParams(ctx, symbol.Name, p.Leverage)
	if err != nil {
		return chain.Call{}, err
	}

	symbolID := big.NewInt(p.SymbolID)
	sig, err := c.oracle.UpnlAWithSymbolPrice(ctx, c.partyA, c.chainID, c.diamond.Address(), symbolID)
	if err != nil {
		return chain.Call{}, err
	}

	price := hedger.SlippagePrice(utils.FromWei(sig.Price), p.Slippage, p.PositionType, false)
	priceWei := utils.ToWei(price)
	quantityWei := utils.ToWei(p.Quantity)
	notionalWei := decimal.NewFromBigInt(quantityWei, 0).Mul(decimal.NewFromBigInt(priceWei, 0))
	margins := params.MarginsWei(notionalWei)

	deadline := p.Deadline
	if deadline.IsZero() {
		deadline = c.now().Add(constants.SEND_QUOTE_DEADLINE)
	}

	c.logger.Debug().
		Str("symbol", symbol.Name).
		Stringer("oracle_price", utils.FromWei(sig.Price)).
		Stringer("price", price).
		Stringer("quantity", p.Quantity).
		Str("cva", margins.Cva.String()).
		Str("party_amm", margins.PartyAmm.String()).
		Msg("prepared quote")

	return SendQuoteCall(QuoteRequest{
		PartyBsWhiteList: p.PartyBsWhiteList,
		SymbolID:         symbolID,
		PositionType:     p.PositionType,
		OrderType:        p.OrderType,
		Price:            priceWei,
		Quantity:         quantityWei,
		Cva:              margins.Cva,
		Lf:               margins.Lf,
		PartyAmm:         margins.PartyAmm,
		PartyBmm:         margins.PartyBmm,
		MaxFundingRate:   utils.ToWei(decimal.RequireFromString(constants.DEFAULT_MAX_FUNDING_RATE)),
		Deadline:         big.NewInt(deadline.Unix()),
		UpnlSig:          sig,
	}), nil
}

func (c *Client) SendQuote(ctx context.Context, p SendQuoteParams, opts ...chain.SendOption) (*chain.Result, error) {
	call, err := c.PrepareSendQuote(ctx, p)
	return c.exec(ctx, call, err, opts)
}

/*//////////////////////////////////////////////////////////////
                          PARTY B FLOWS
//////////////////////////////////////////////////////////////*/

// PrepareLockQuote attests the signer's uPnL as partyB towards partyA.
func (c *Client) PrepareLockQuote(ctx context.Context, quoteID *big.Int) (chain.Call, error) {
	partyB, err := c.partyB()
	if err != nil {
		return chain.Call{}, err
	}
	sig, err := c.oracle.UpnlB(ctx, partyB, c.partyA, c.chainID, c.diamond.Address())
	if err != nil {
		return chain.Call{}, err
	}
	return LockQuoteCall(quoteID, sig), nil
}

func (c *Client) LockQuote(ctx context.Context, quoteID *big.Int, opts ...chain.SendOption) (*chain.Result, error) {
	call, err := c.PrepareLockQuote(ctx, quoteID)
	return c.exec(ctx, call, err, opts)
}

// PrepareLockAndOpenQuote attests partyB's uPnL and the pair uPnL with the
// quote's symbol price.
func (c *Client) PrepareLockAndOpenQuote(
	ctx context.Context,
	quoteID *big.Int,
	filledAmount *big.Int,
	openedPrice *big.Int,
) (chain.Call, error) {
	partyB, err := c.partyB()
	if err != nil {
		return chain.Call{}, err
	}
	quote, err := c.diamond.GetQuote(ctx, quoteID)
	if err != nil {
		return chain.Call{}, err
	}

	upnlSig, err := c.oracle.UpnlB(ctx, partyB, c.partyA, c.chainID, c.diamond.Address())
	if err != nil {
		return chain.Call{}, err
	}
	pairSig, err := c.oracle.UpnlWithSymbolPrice(ctx, c.partyA, partyB, c.chainID, c.diamond.Address(), quote.SymbolId)
	if err != nil {
		return chain.Call{}, err
	}
	return LockAndOpenQuoteCall(quoteID, filledAmount, openedPrice, upnlSig, pairSig), nil
}

func (c *Client) LockAndOpenQuote(
	ctx context.Context,
	quoteID *big.Int,
	filledAmount *big.Int,
	openedPrice *big.Int,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	call, err := c.PrepareLockAndOpenQuote(ctx, quoteID, filledAmount, openedPrice)
	return c.exec(ctx, call, err, opts)
}

// PrepareEmergencyClose attests both parties' uPnL with the quote's symbol
// price.
func (c *Client) PrepareEmergencyClose(ctx context.Context, quoteID *big.Int) (chain.Call, error) {
	quote, err := c.diamond.GetQuote(ctx, quoteID)
	if err != nil {
		return chain.Call{}, err
	}
	sig, err := c.oracle.UpnlWithSymbolPrice(ctx, quote.PartyA, quote.PartyB, c.chainID, c.diamond.Address(), quote.SymbolId)
	if err != nil {
		return chain.Call{}, err
	}
	return EmergencyClosePositionCall(quoteID, sig), nil
}

func (c *Client) EmergencyClose(ctx context.Context, quoteID *big.Int, opts ...chain.SendOption) (*chain.Result, error) {
	call, err := c.PrepareEmergencyClose(ctx, quoteID)
	return c.exec(ctx, call, err, opts)
}

// PrepareChargeFundingRate attests partyA's uPnL for a funding payment on
// quoteIDs. Rates are signed wei values per quote.
func (c *Client) PrepareChargeFundingRate(
	ctx context.Context,
	partyA common.Address,
	quoteIDs []*big.Int,
	rates []*big.Int,
) (chain.Call, error) {
	if len(quoteIDs) != len(rates) {
		return chain.Call{}, fmt.Errorf("got %d quote ids but %d rates", len(quoteIDs), len(rates))
	}
	sig, err := c.oracle.UpnlA(ctx, partyA, c.chainID, c.diamond.Address())
	if err != nil {
		return chain.Call{}, err
	}
	return ChargeFundingRateCall(partyA, quoteIDs, rates, sig), nil
}

func (c *Client) ChargeFundingRate(
	ctx context.Context,
	partyA common.Address,
	quoteIDs []*big.Int,
	rates []*big.Int,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	call, err := c.PrepareChargeFundingRate(ctx, partyA, quoteIDs, rates)
	return c.exec(ctx, call, err, opts)
}

// PrepareTransferAllocation moves allocated balance between partyA
// accounts, attested by the signer's uPnL as partyB towards origin.
func (c *Client) PrepareTransferAllocation(
	ctx context.Context,
	amount *big.Int,
	origin common.Address,
	recipient common.Address,
) (chain.Call, error) {
	partyB, err := c.partyB()
	if err != nil {
		return chain.Call{}, err
	}
	sig, err := c.oracle.UpnlB(ctx, partyB, origin, c.chainID, c.diamond.Address())
	if err != nil {
		return chain.Call{}, err
	}
	return TransferAllocationCall(amount, origin, recipient, sig), nil
}

func (c *Client) TransferAllocation(
	ctx context.Context,
	amount *big.Int,
	origin common.Address,
	recipient common.Address,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	call, err := c.PrepareTransferAllocation(ctx, amount, origin, recipient)
	return c.exec(ctx, call, err, opts)
}

/*//////////////////////////////////////////////////////////////
                       FORCE CLOSE / SETTLE
//////////////////////////////////////////////////////////////*/

// forceCloseWindow loads the quote and cooldowns and computes the price
// window. It fails before any oracle query when the window is empty.
func (c *Client) forceCloseWindow(ctx context.Context, quoteID *big.Int) (types.Quote, int64, int64, error) {
	quote, err := c.diamond.GetQuote(ctx, quoteID)
	if err != nil {
		return types.Quote{}, 0, 0, err
	}
	cooldowns, err := c.diamond.ForceCloseCooldowns(ctx)
	if err != nil {
		return types.Quote{}, 0, 0, err
	}

	start, end, err := QuoteForceCloseRange(quote, cooldowns, c.now())
	if err != nil {
		return types.Quote{}, 0, 0, fmt.Errorf("quote %s: %w", quoteID, err)
	}

	c.logger.Debug().
		Str("quote_id", quoteID.String()).
		Int64("t0", start).
		Int64("t1", end).
		Msg("force close window")
	return quote, start, end, nil
}

// PrepareForceClose attests the quote's high/low price over the force
// close window. The oracle is queried for the quote's own partyA, which
// may differ from the client's.
func (c *Client) PrepareForceClose(ctx context.Context, quoteID *big.Int) (chain.Call, error) {
	quote, start, end, err := c.forceCloseWindow(ctx, quoteID)
	if err != nil {
		return chain.Call{}, err
	}

	sig, _, err := c.oracle.PriceRange(ctx, quote.PartyA, quote.PartyB, c.chainID, c.diamond.Address(), quote.SymbolId, start, end)
	if err != nil {
		return chain.Call{}, err
	}
	return ForceClosePositionCall(quoteID, sig), nil
}

func (c *Client) ForceClose(ctx context.Context, quoteID *big.Int, opts ...chain.SendOption) (*chain.Result, error) {
	call, err := c.PrepareForceClose(ctx, quoteID)
	return c.exec(ctx, call, err, opts)
}

// PrepareSettleUpnl attests settlement of quoteIDs. Each quote settles at
// the current price the oracle reports for it.
func (c *Client) PrepareSettleUpnl(ctx context.Context, quoteIDs []*big.Int) (chain.Call, error) {
	if len(quoteIDs) == 0 {
		return chain.Call{}, fmt.Errorf("at least one quote id is required")
	}
	sig, err := c.oracle.SettleUpnl(ctx, c.partyA, c.chainID, c.diamond.Address(), quoteIDs)
	if err != nil {
		return chain.Call{}, err
	}
	return SettleUpnlCall(sig, sig.UpdatedPrices(), c.partyA), nil
}

func (c *Client) SettleUpnl(ctx context.Context, quoteIDs []*big.Int, opts ...chain.SendOption) (*chain.Result, error) {
	call, err := c.PrepareSettleUpnl(ctx, quoteIDs)
	return c.exec(ctx, call, err, opts)
}

// PrepareSettleAndForceClose fetches the price range and the settlement
// attestations concurrently. The updated prices are the first pricesA
// entries, one per settled quote, or none if the oracle sent too few.
func (c *Client) PrepareSettleAndForceClose(ctx context.Context, quoteID *big.Int) (chain.Call, error) {
	quote, start, end, err := c.forceCloseWindow(ctx, quoteID)
	if err != nil {
		return chain.Call{}, err
	}

	var (
		priceSig  types.HighLowPriceSig
		pricesA   []*big.Int
		settleSig types.SettlementSig
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		priceSig, pricesA, err = c.oracle.PriceRange(gctx, quote.PartyA, quote.PartyB, c.chainID, c.diamond.Address(), quote.SymbolId, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		settleSig, err = c.oracle.SettleUpnl(gctx, quote.PartyA, c.chainID, c.diamond.Address(), []*big.Int{quoteID})
		return err
	})
	if err := g.Wait(); err != nil {
		return chain.Call{}, err
	}

	return SettleAndForceClosePositionCall(quoteID, priceSig, settleSig, UpdatedPrices(pricesA, len(settleSig.QuotesSettlementsData))), nil
}

func (c *Client) SettleAndForceClose(ctx context.Context, quoteID *big.Int, opts ...chain.SendOption) (*chain.Result, error) {
	call, err := c.PrepareSettleAndForceClose(ctx, quoteID)
	return c.exec(ctx, call, err, opts)
}

// UpdatedPrices takes the first n prices, or none when fewer than n are
// available.
func UpdatedPrices(prices []*big.Int, n int) []*big.Int {
	if n == 0 || len(prices) < n {
		return []*big.Int{}
	}
	return prices[:n]
}
