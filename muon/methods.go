package muon

import (
	"context"
	"math/big"
	"strings"

	"github.com/banky/go-symmio/internal/utils"
	"github.com/banky/go-symmio/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Oracle method names.
const (
	METHOD_UPNL_A                   = "uPnl_A"
	METHOD_UPNL_B                   = "uPnl_B"
	METHOD_UPNL                     = "uPnl"
	METHOD_UPNL_A_WITH_SYMBOL_PRICE = "uPnl_A_withSymbolPrice"
	METHOD_UPNL_WITH_SYMBOL_PRICE   = "uPnlWithSymbolPrice"
	METHOD_PRICE_RANGE              = "priceRange"
	METHOD_SETTLE_UPNL              = "settle_upnl"
	METHOD_OPTIONS_UPNL_A           = "upnl_a"
)

// UpnlB fetches PartyB's uPnL towards partyA.
func (c *Client) UpnlB(
	ctx context.Context,
	partyB common.Address,
	partyA common.Address,
	chainID *big.Int,
	symmio common.Address,
) (types.SingleUpnlSig, error) {
	res, err := c.Fetch(ctx, METHOD_UPNL_B,
		P("partyB", partyB.Hex()),
		P("partyA", partyA.Hex()),
		P("chainId", chainID),
		P("symmio", symmio.Hex()),
	)
	if err != nil {
		return types.SingleUpnlSig{}, err
	}
	return res.SingleUpnlSig("uPnl")
}

// UpnlA fetches partyA's total uPnL.
func (c *Client) UpnlA(
	ctx context.Context,
	partyA common.Address,
	chainID *big.Int,
	symmio common.Address,
) (types.SingleUpnlSig, error) {
	res, err := c.Fetch(ctx, METHOD_UPNL_A,
		P("partyA", partyA.Hex()),
		P("chainId", chainID),
		P("symmio", symmio.Hex()),
	)
	if err != nil {
		return types.SingleUpnlSig{}, err
	}

	field := "uPnlA"
	if !res.Result(field).Exists() {
		field = "uPnl"
	}
	return res.SingleUpnlSig(field)
}

// UpnlAWithSymbolPrice fetches partyA's uPnL together with the current
// price of symbolID.
func (c *Client) UpnlAWithSymbolPrice(
	ctx context.Context,
	partyA common.Address,
	chainID *big.Int,
	symmio common.Address,
	symbolID *big.Int,
) (types.SingleUpnlAndPriceSig, error) {
	res, err := c.Fetch(ctx, METHOD_UPNL_A_WITH_SYMBOL_PRICE,
		P("partyA", partyA.Hex()),
		P("chainId", chainID),
		P("symmio", symmio.Hex()),
		P("symbolId", symbolID),
	)
	if err != nil {
		return types.SingleUpnlAndPriceSig{}, err
	}
	return res.SingleUpnlAndPriceSig()
}

// SymbolPrice returns the oracle price of symbolID as a decimal.
func (c *Client) SymbolPrice(
	ctx context.Context,
	partyA common.Address,
	chainID *big.Int,
	symmio common.Address,
	symbolID *big.Int,
) (decimal.Decimal, error) {
	sig, err := c.UpnlAWithSymbolPrice(ctx, partyA, chainID, symmio, symbolID)
	if err != nil {
		return decimal.Zero, err
	}
	return utils.FromWei(sig.Price), nil
}

// UpnlWithSymbolPrice fetches both parties' uPnL and the price of
// symbolID.
func (c *Client) UpnlWithSymbolPrice(
	ctx context.Context,
	partyA common.Address,
	partyB common.Address,
	chainID *big.Int,
	symmio common.Address,
	symbolID *big.Int,
) (types.PairUpnlAndPriceSig, error) {
	res, err := c.Fetch(ctx, METHOD_UPNL_WITH_SYMBOL_PRICE,
		P("partyB", partyB.Hex()),
		P("partyA", partyA.Hex()),
		P("chainId", chainID),
		P("symbolId", symbolID),
		P("symmio", symmio.Hex()),
	)
	if err != nil {
		return types.PairUpnlAndPriceSig{}, err
	}
	return res.PairUpnlAndPriceSig()
}

// PairUpnl fetches both parties' uPnL.
func (c *Client) PairUpnl(
	ctx context.Context,
	partyA common.Address,
	partyB common.Address,
	chainID *big.Int,
	symmio common.Address,
) (types.PairUpnlSig, error) {
	res, err := c.Fetch(ctx, METHOD_UPNL,
		P("partyB", partyB.Hex()),
		P("partyA", partyA.Hex()),
		P("chainId", chainID),
		P("symmio", symmio.Hex()),
	)
	if err != nil {
		return types.PairUpnlSig{}, err
	}
	return res.PairUpnlSig()
}

// PriceRange fetches the high/low price attestation of symbolID between
// t0 and t1, along with the per-quote prices used for settlement.
func (c *Client) PriceRange(
	ctx context.Context,
	partyA common.Address,
	partyB common.Address,
	chainID *big.Int,
	symmio common.Address,
	symbolID *big.Int,
	t0 int64,
	t1 int64,
) (types.HighLowPriceSig, []*big.Int, error) {
	res, err := c.Fetch(ctx, METHOD_PRICE_RANGE,
		P("t0", t0),
		P("t1", t1),
		P("partyA", partyA.Hex()),
		P("partyB", partyB.Hex()),
		P("chainId", chainID),
		P("symmio", symmio.Hex()),
		P("symbolId", symbolID),
	)
	if err != nil {
		return types.HighLowPriceSig{}, nil, err
	}

	sig, err := res.HighLowPriceSig()
	if err != nil {
		return types.HighLowPriceSig{}, nil, err
	}

	prices, err := res.PricesA()
	if err != nil {
		return types.HighLowPriceSig{}, nil, err
	}
	return sig, prices, nil
}

// SettleUpnl fetches the settlement attestation for quoteIDs of partyA.
func (c *Client) SettleUpnl(
	ctx context.Context,
	partyA common.Address,
	chainID *big.Int,
	symmio common.Address,
	quoteIDs []*big.Int,
) (types.SettlementSig, error) {
	ids := make([]string, len(quoteIDs))
	for i, id := range quoteIDs {
		ids[i] = id.String()
	}

	res, err := c.Fetch(ctx, METHOD_SETTLE_UPNL,
		P("partyA", partyA.Hex()),
		P("chainId", chainID),
		P("symmio", symmio.Hex()),
		P("quoteIds", "["+strings.Join(ids, ",")+"]"),
	)
	if err != nil {
		return types.SettlementSig{}, err
	}
	return res.SettlementSig()
}

// OptionsUpnl fetches the options deployment's uPnL attestation. An empty
// method uses upnl_a.
func (c *Client) OptionsUpnl(
	ctx context.Context,
	method string,
	params ...Param,
) (types.OptionsUpnlSig, error) {
	if method == "" {
		method = METHOD_OPTIONS_UPNL_A
	}

	res, err := c.Fetch(ctx, method, params...)
	if err != nil {
		return types.OptionsUpnlSig{}, err
	}
	return res.OptionsUpnlSig()
}
