package hedger

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/banky/go-symmio/constants"
	"github.com/banky/go-symmio/errs"
	"github.com/banky/go-symmio/internal/utils"
	"github.com/banky/go-symmio/rest"
	"github.com/banky/go-symmio/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const (
	CONDITIONAL_PRICE_TYPE_LAST_CLOSE = "last_close"
	CONDITIONAL_ORDER_TYPE_STOP_LOSS  = "stop_loss"
)

// ConditionalOrdersConfig configures the conditional orders service client
type ConditionalOrdersConfig struct {
	BaseURL string
	// AppName is sent in the App-Name header
	// If none is provided, VIBE is used
	AppName string
	// MultiAccount is the multi-account contract the sub-account lives in
	MultiAccount common.Address
	// Whitelist of hedgers allowed to fill the order. Either a JSON list
	// or a comma separated list.
	Whitelist string
	Logger    *zerolog.Logger
	Rest      rest.ClientInterface
}

// ConditionalOrders registers stop loss orders with the conditional orders
// service, which fires them against the solver when triggered.
type ConditionalOrders struct {
	rest         rest.ClientInterface
	appName      string
	multiAccount common.Address
	whitelist    []string
	logger       zerolog.Logger
}

func NewConditionalOrders(cfg ConditionalOrdersConfig) (*ConditionalOrders, error) {
	if cfg.BaseURL == "" && cfg.Rest == nil {
		return nil, errs.Missing("CONDITIONAL_ORDERS_URL")
	}

	appName := cfg.AppName
	if appName == "" {
		appName = constants.CONDITIONAL_ORDERS_APP_NAME
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "conditional_orders").Logger()
	}

	restClient := cfg.Rest
	if restClient == nil {
		restClient = rest.New(rest.Config{
			BaseUrl: strings.TrimRight(cfg.BaseURL, "/"),
			Logger:  cfg.Logger,
		})
	}

	return &ConditionalOrders{
		rest:         restClient,
		appName:      appName,
		multiAccount: cfg.MultiAccount,
		whitelist:    utils.SplitList(cfg.Whitelist),
		logger:       logger,
	}, nil
}

type ConditionalOrder struct {
	Quantity             string `json:"quantity"`
	Price                string `json:"price"`
	ConditionalPrice     string `json:"conditional_price"`
	ConditionalPriceType string `json:"conditional_price_type"`
	OrderType            uint8  `json:"order_type"`
	PositionType         uint8  `json:"position_type"`
	ConditionalOrderType string `json:"conditional_order_type"`
	Leverage             int64  `json:"leverage"`
}

type ConditionalOrdersRequest struct {
	AccountAddress      string             `json:"account_address"`
	QuoteID             int64              `json:"quote_id"`
	ConditionalOrders   []ConditionalOrder `json:"conditional_orders"`
	SymbolID            int64              `json:"symbol_id"`
	MultiAccountAddress string             `json:"multi_account_address"`
	HedgerWhitelist     []string           `json:"hedger_whitelist"`
}

// StopLoss describes a stop loss on an open quote.
type StopLoss struct {
	Account      common.Address
	QuoteID      int64
	SymbolID     int64
	PositionType types.PositionType
	OrderType    types.OrderType
	Quantity     decimal.Decimal
	// Price is the order price once triggered, StopPrice the trigger
	Price     decimal.Decimal
	StopPrice decimal.Decimal
	Leverage  int64
}

var (
	longStopRatio  = decimal.RequireFromString("0.8")
	shortStopRatio = decimal.RequireFromString("1.2")
)

// DefaultStopPrice is 20% against the position from openPrice.
func DefaultStopPrice(openPrice decimal.Decimal, position types.PositionType) decimal.Decimal {
	if position == types.LONG {
		return openPrice.Mul(longStopRatio)
	}
	return openPrice.Mul(shortStopRatio)
}

// Request builds the service payload for sl.
func (c *ConditionalOrders) Request(sl StopLoss) ConditionalOrdersRequest {
	whitelist := c.whitelist
	if whitelist == nil {
		whitelist = []string{}
	}
	return ConditionalOrdersRequest{
		AccountAddress: sl.Account.Hex(),
		QuoteID:        sl.QuoteID,
		ConditionalOrders: []ConditionalOrder{{
			Quantity:             sl.Quantity.String(),
			Price:                sl.Price.String(),
			ConditionalPrice:     sl.StopPrice.String(),
			ConditionalPriceType: CONDITIONAL_PRICE_TYPE_LAST_CLOSE,
			OrderType:            uint8(sl.OrderType),
			PositionType:         uint8(sl.PositionType),
			ConditionalOrderType: CONDITIONAL_ORDER_TYPE_STOP_LOSS,
			Leverage:             sl.Leverage,
		}},
		SymbolID:            sl.SymbolID,
		MultiAccountAddress: c.multiAccount.Hex(),
		HedgerWhitelist:     whitelist,
	}
}

// SetStopLoss posts sl and returns the raw service response.
func (c *ConditionalOrders) SetStopLoss(ctx context.Context, token string, sl StopLoss) (gjson.Result, error) {
	op := "conditional_orders.stop_loss"

	var body json.RawMessage
	err := c.rest.Post(ctx, "/", c.Request(sl), &body,
		rest.WithHeader("App-Name", c.appName),
		rest.WithHeader("Accept", "application/json"),
		rest.WithBearer(token),
	)
	if err != nil {
		return gjson.Result{}, wrapRestError(op, err)
	}

	c.logger.Info().
		Int64("quote_id", sl.QuoteID).
		Stringer("stop_price", sl.StopPrice).
		Msg("conditional stop loss registered")
	if len(body) == 0 {
		return gjson.Result{}, nil
	}
	return gjson.ParseBytes(body), nil
}
