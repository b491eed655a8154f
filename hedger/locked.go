package hedger

import (
	"context"
	"math/big"
	"net/url"

	"github.com/banky/go-symmio/errs"
	"github.com/banky/go-symmio/internal/utils"
	"github.com/banky/go-symmio/rest"
	"github.com/banky/go-symmio/types"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LockedParams are the solver's margin requirements for one market and
// leverage, as percentages of notional.
type LockedParams struct {
	Cva      decimal.Decimal
	Lf       decimal.Decimal
	PartyAmm decimal.Decimal
	PartyBmm decimal.Decimal
	Leverage decimal.Decimal
}

// LockedMargins are normalized locked values in the unit of the notional
// they were computed from.
type LockedMargins struct {
	Cva      decimal.Decimal
	Lf       decimal.Decimal
	PartyAmm decimal.Decimal
	PartyBmm decimal.Decimal
}

// LockedParams fetches the margin parameters for market (a pair name such
// as XRPUSDT or a symbol id) at leverage.
func (c *Client) LockedParams(ctx context.Context, market string, leverage decimal.Decimal) (LockedParams, error) {
	op := "hedger.locked_params"

	res, err := c.getJSON(ctx, op, "/get_locked_params/"+url.PathEscape(market),
		rest.WithQuery("leverage", leverage.String()),
	)
	if err != nil {
		return LockedParams{}, err
	}

	if res.Get("message").String() != "Success" {
		return LockedParams{}, errs.Newf(errs.MalformedResponse, op, "failed to fetch locked params: %s", res.Raw)
	}

	var perr error
	field := func(key string) decimal.Decimal {
		v := res.Get(key)
		d, err := decimal.NewFromString(v.String())
		if err != nil && perr == nil {
			perr = errs.Newf(errs.MalformedResponse, op, "invalid %s %q", key, v.Raw)
		}
		return d
	}

	params := LockedParams{
		Cva:      field("cva"),
		Lf:       field("lf"),
		PartyAmm: field("partyAmm"),
		PartyBmm: field("partyBmm"),
		Leverage: leverage,
	}
	if res.Get("leverage").Exists() {
		params.Leverage = field("leverage")
	}
	if perr != nil {
		return LockedParams{}, perr
	}
	if !params.Leverage.IsPositive() {
		return LockedParams{}, errs.Newf(errs.MalformedResponse, op, "invalid leverage %s", params.Leverage)
	}

	c.logger.Debug().
		Str("market", market).
		Stringer("cva", params.Cva).
		Stringer("lf", params.Lf).
		Stringer("party_amm", params.PartyAmm).
		Stringer("party_bmm", params.PartyBmm).
		Stringer("leverage", params.Leverage).
		Msg("locked params")
	return params, nil
}

// NormalizedLockedValue is notional*param/(100*leverage), or
// notional*param/100 when applyLeverage is false.
func NormalizedLockedValue(
	notional decimal.Decimal,
	param decimal.Decimal,
	leverage decimal.Decimal,
	applyLeverage bool,
) decimal.Decimal {
	denominator := hundred
	if applyLeverage {
		denominator = hundred.Mul(leverage)
	}
	return notional.Mul(param).Div(denominator)
}

// Margins normalizes the params against notional. PartyBmm is never
// scaled by leverage. Quotients are rounded to decimal.DivisionPrecision
// places, so scaling a margin and scaling its notional agree only to
// within that precision.
func (p LockedParams) Margins(notional decimal.Decimal) LockedMargins {
	return LockedMargins{
		Cva:      NormalizedLockedValue(notional, p.Cva, p.Leverage, true),
		Lf:       NormalizedLockedValue(notional, p.Lf, p.Leverage, true),
		PartyAmm: NormalizedLockedValue(notional, p.PartyAmm, p.Leverage, true),
		PartyBmm: NormalizedLockedValue(notional, p.PartyBmm, p.Leverage, false),
	}
}

// MarginsWei computes on-chain locked values from a notional expressed as
// quantityWei*priceWei, so every margin carries one extra 1e18 factor
// that is divided out before truncating to whole wei.
func (p LockedParams) MarginsWei(notionalWei decimal.Decimal) types.LockedValues {
	m := p.Margins(notionalWei.Shift(-utils.WeiDecimals))
	toWei := func(d decimal.Decimal) *big.Int {
		return d.Truncate(0).BigInt()
	}
	return types.LockedValues{
		Cva:      toWei(m.Cva),
		Lf:       toWei(m.Lf),
		PartyAmm: toWei(m.PartyAmm),
		PartyBmm: toWei(m.PartyBmm),
	}
}

// SlippagePrice moves price against the trader by the fraction slippage:
// up when buying (opening a long or closing a short), down when selling.
func SlippagePrice(
	price decimal.Decimal,
	slippage decimal.Decimal,
	position types.PositionType,
	closing bool,
) decimal.Decimal {
	buying := (position == types.LONG) != closing
	if buying {
		return price.Mul(decimal.NewFromInt(1).Add(slippage))
	}
	return price.Mul(decimal.NewFromInt(1).Sub(slippage))
}

// FormatDecimal truncates value to precision places.
func FormatDecimal(value decimal.Decimal, precision int32) string {
	return utils.QuantizeDown(value, precision)
}
