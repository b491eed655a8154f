package hedger

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/banky/go-symmio/constants"
	"github.com/banky/go-symmio/errs"
	"github.com/banky/go-symmio/rest"
	"github.com/banky/go-symmio/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ErrPollTimeout is returned when a quote is still unconfirmed after the
// last poll attempt.
var ErrPollTimeout = errors.New("timed out waiting for quote confirmation")

// InstantOpenRequest is the body of POST /instant_open. Amounts are
// decimal strings in collateral units, not wei.
type InstantOpenRequest struct {
	SymbolID       int64  `json:"symbolId"`
	PositionType   uint8  `json:"positionType"`
	OrderType      uint8  `json:"orderType"`
	Price          string `json:"price"`
	Quantity       string `json:"quantity"`
	Cva            string `json:"cva"`
	Lf             string `json:"lf"`
	PartyAmm       string `json:"partyAmm"`
	PartyBmm       string `json:"partyBmm"`
	MaxFundingRate string `json:"maxFundingRate"`
	Deadline       int64  `json:"deadline"`
}

// OpenParams describes an instant open before margins are applied.
type OpenParams struct {
	SymbolID     int64
	PositionType types.PositionType
	OrderType    types.OrderType
	// Price already includes slippage
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Deadline time.Time
	// PricePrecision and QuantityPrecision truncate price and quantity
	// before the notional is computed. Zero leaves them untouched.
	PricePrecision    int32
	QuantityPrecision int32
}

// NewInstantOpenRequest normalizes the locked params against the order's
// notional. The solver computes PartyB's maintenance margin itself, so
// partyBmm is always sent as "0".
func NewInstantOpenRequest(p OpenParams, params LockedParams) InstantOpenRequest {
	price := p.Price.String()
	if p.PricePrecision > 0 {
		price = FormatDecimal(p.Price, p.PricePrecision)
	}
	quantity := p.Quantity.String()
	if p.QuantityPrecision > 0 {
		quantity = FormatDecimal(p.Quantity, p.QuantityPrecision)
	}

	notional := decimal.RequireFromString(price).Mul(decimal.RequireFromString(quantity))
	margins := params.Margins(notional)

	return InstantOpenRequest{
		SymbolID:       p.SymbolID,
		PositionType:   uint8(p.PositionType),
		OrderType:      uint8(p.OrderType),
		Price:          price,
		Quantity:       quantity,
		Cva:            margins.Cva.String(),
		Lf:             margins.Lf.String(),
		PartyAmm:       margins.PartyAmm.String(),
		PartyBmm:       "0",
		MaxFundingRate: constants.DEFAULT_MAX_FUNDING_RATE,
		Deadline:       p.Deadline.Unix(),
	}
}

// InstantOpen asks the solver to open a position and returns the
// temporary quote id it assigns until the quote lands on chain.
func (c *Client) InstantOpen(ctx context.Context, token string, req InstantOpenRequest) (int64, error) {
	op := "hedger.instant_open"

	res, err := c.postJSON(ctx, op, "/instant_open", req, rest.WithBearer(token))
	if err != nil {
		return 0, err
	}

	tempID := firstInt(res, "temp_quote_id", "quote_id")
	if tempID == 0 {
		return 0, errs.Newf(errs.MalformedResponse, op, "no temp_quote_id in response: %s", res.Raw)
	}

	c.logger.Info().
		Int64("temp_quote_id", tempID).
		Int64("symbol_id", req.SymbolID).
		Str("price", req.Price).
		Str("quantity", req.Quantity).
		Msg("instant open requested")
	return tempID, nil
}

// InstantCloseRequest is the body of POST /instant_close.
type InstantCloseRequest struct {
	QuoteID         int64  `json:"quote_id"`
	QuantityToClose string `json:"quantity_to_close"`
	ClosePrice      string `json:"close_price"`
	Deadline        *int64 `json:"deadline,omitempty"`
	OrderType       *uint8 `json:"order_type,omitempty"`
}

// InstantClose asks the solver to close quantity of an open quote.
func (c *Client) InstantClose(ctx context.Context, token string, req InstantCloseRequest) (json.RawMessage, error) {
	op := "hedger.instant_close"

	res, err := c.postJSON(ctx, op, "/instant_close", req, rest.WithBearer(token))
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Int64("quote_id", req.QuoteID).
		Str("quantity", req.QuantityToClose).
		Str("close_price", req.ClosePrice).
		Msg("instant close requested")

	if res.Raw == "" {
		return json.RawMessage("{}"), nil
	}
	return json.RawMessage(res.Raw), nil
}

/*//////////////////////////////////////////////////////////////
                        QUOTE CONFIRMATION
//////////////////////////////////////////////////////////////*/

type PollConfig struct {
	// Attempts bounds the number of status requests
	// If none is provided, 120 is used
	Attempts int
	// Interval is the fixed delay between attempts
	// If none is provided, 500ms is used
	Interval time.Duration
}

func (p PollConfig) withDefaults() PollConfig {
	if p.Attempts <= 0 {
		p.Attempts = constants.DEFAULT_POLL_ATTEMPTS
	}
	if p.Interval <= 0 {
		p.Interval = constants.DEFAULT_POLL_INTERVAL
	}
	return p
}

// WaitForQuoteID polls the solver until the quote opened under tempID has
// a permanent on-chain id. Failed requests count as attempts.
func (c *Client) WaitForQuoteID(
	ctx context.Context,
	token string,
	account common.Address,
	tempID int64,
	poll PollConfig,
) (int64, error) {
	poll = poll.withDefaults()
	path := "/instant_open/" + url.PathEscape(account.Hex())

	for attempt := 1; attempt <= poll.Attempts; attempt++ {
		res, err := c.getJSON(ctx, "hedger.instant_status", path, rest.WithBearer(token))
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			c.logger.Debug().Err(err).Int("attempt", attempt).Msg("status request failed")
		default:
			if quoteID, ok := confirmedQuoteID(res, tempID); ok {
				c.logger.Info().
					Int64("temp_quote_id", tempID).
					Int64("quote_id", quoteID).
					Int("attempt", attempt).
					Msg("quote confirmed")
				return quoteID, nil
			}
		}

		if attempt == poll.Attempts {
			break
		}
		if err := sleep(ctx, poll.Interval); err != nil {
			return 0, err
		}
	}

	return 0, ErrPollTimeout
}

// confirmedQuoteID finds the status entry for tempID and reports its
// quote id once it is positive. The payload is either a list of entries
// or an object with a quotes list.
func confirmedQuoteID(res gjson.Result, tempID int64) (int64, bool) {
	quotes := res
	if res.IsObject() {
		quotes = res.Get("quotes")
	}
	if !quotes.IsArray() {
		return 0, false
	}

	want := strconv.FormatInt(tempID, 10)
	for _, q := range quotes.Array() {
		if q.Get("temp_quote_id").String() != want {
			continue
		}
		id, err := strconv.ParseInt(q.Get("quote_id").String(), 10, 64)
		if err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

/*//////////////////////////////////////////////////////////////
                            STOP LOSS
//////////////////////////////////////////////////////////////*/

// StopLossRequest is the body of POST /stop_loss.
type StopLossRequest struct {
	UserAddress    string `json:"userAddress"`
	AccountAddress string `json:"accountAddress"`
	PositionSide   uint8  `json:"positionSide"`
	SymbolID       int64  `json:"symbolId"`
	RequestedPrice string `json:"requestedPrice"`
	QuoteID        int64  `json:"quoteId"`
	TpPrice        string `json:"tpPrice"`
	SlPrice        string `json:"slPrice"`
	Timestamp      int64  `json:"timestamp"`
}

var stopLossRatio = decimal.RequireFromString("0.8")

// DefaultStopLossPrice is 80% of the open price, truncated to six places.
func DefaultStopLossPrice(openPrice decimal.Decimal) string {
	return FormatDecimal(openPrice.Mul(stopLossRatio), DEFAULT_PRECISION)
}

// SetStopLoss registers a stop loss on an open quote. Empty addresses and
// a zero timestamp are filled from the client.
func (c *Client) SetStopLoss(ctx context.Context, token string, req StopLossRequest) error {
	op := "hedger.stop_loss"

	if req.UserAddress == "" {
		if signer, ok := c.Signer(); ok {
			req.UserAddress = signer.Hex()
		}
	}
	if req.AccountAddress == "" {
		req.AccountAddress = c.account.Hex()
	}
	if req.Timestamp == 0 {
		req.Timestamp = c.now().UnixMilli()
	}

	if _, err := c.postJSON(ctx, op, "/stop_loss", req, rest.WithBearer(token)); err != nil {
		return err
	}

	c.logger.Info().
		Int64("quote_id", req.QuoteID).
		Str("sl_price", req.SlPrice).
		Msg("stop loss set")
	return nil
}
