package main

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/banky/go-symmio/bot"
	"github.com/banky/go-symmio/config"
	"github.com/banky/go-symmio/constants"
	"github.com/banky/go-symmio/hedger"
	"github.com/banky/go-symmio/notify"
	"github.com/banky/go-symmio/types"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in to the solver and print the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.hedger(true)
			if err != nil {
				return err
			}
			token, err := h.Login(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", token)
			return nil
		},
	}
}

func newInstantCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instant",
		Short: "Instant actions through the solver",
	}
	cmd.AddCommand(
		newInstantOpenCmd(a),
		newInstantCloseCmd(a),
		newInstantStatusCmd(a),
		newInstantStopLossCmd(a),
		newInstantConditionalCmd(a),
	)
	return cmd
}

// startNotify subscribes to the sub-account's quote notifications. The
// caller stops the manager.
func (a *app) startNotify(ctx context.Context) (*notify.Manager, error) {
	account, err := a.cfg.Address(config.SUB_ACCOUNT_ADDRESS)
	if err != nil {
		return nil, err
	}
	m := notify.New(notify.Config{
		URL:     a.cfg.NotifyURL,
		AppName: a.cfg.NotifyAppName,
		Account: account,
		Logger:  &a.logger,
	})
	if err := m.Start(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

type traderFlags struct {
	symbolID       int64
	positionType   string
	quantity       string
	leverage       string
	slippage       string
	deadlineOffset time.Duration
	token          string
}

func (f *traderFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Int64Var(&f.symbolID, "symbol-id", 0, "solver symbol id")
	flags.StringVar(&f.positionType, "position-type", "long", "long (0) or short (1)")
	flags.StringVar(&f.quantity, "quantity", "", "position quantity")
	flags.StringVar(&f.leverage, "leverage", "1", "leverage")
	flags.StringVar(&f.slippage, "slippage", "0.01", "slippage fraction applied to the oracle price")
	flags.DurationVar(&f.deadlineOffset, "deadline-offset", constants.DEFAULT_DEADLINE_OFFSET, "open request deadline from now")
	flags.StringVar(&f.token, "token", "", "access token; logs in when empty")
	cmd.MarkFlagRequired("symbol-id")
	cmd.MarkFlagRequired("quantity")
}

func (a *app) trader(f traderFlags, waiter bot.QuoteWaiter) (*bot.InstantTrader, error) {
	positionType, err := types.ParsePositionType(f.positionType)
	if err != nil {
		return nil, err
	}
	quantity, err := parseDecimal("quantity", f.quantity)
	if err != nil {
		return nil, err
	}
	leverage, err := parseDecimal("leverage", f.leverage)
	if err != nil {
		return nil, err
	}
	slippage, err := parseDecimal("slippage", f.slippage)
	if err != nil {
		return nil, err
	}
	diamond, err := a.cfg.Address(config.DIAMOND_ADDRESS)
	if err != nil {
		return nil, err
	}
	h, err := a.hedger(true)
	if err != nil {
		return nil, err
	}

	return bot.NewInstantTrader(bot.InstantTraderConfig{
		Hedger: h,
		Oracle: a.oracle(),
		Notify: waiter,
		Token: func(ctx context.Context) (string, error) {
			return a.token(ctx, h, f.token)
		},
		ChainID:        a.cfg.InstantChainIDBig(),
		Diamond:        diamond,
		SymbolID:       f.symbolID,
		PositionType:   positionType,
		Quantity:       quantity,
		Leverage:       leverage,
		Slippage:       slippage,
		DeadlineOffset: f.deadlineOffset,
		Logger:         &a.logger,
	})
}

func newInstantOpenCmd(a *app) *cobra.Command {
	var (
		f       traderFlags
		confirm bool
		useWS   bool
	)

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a market position and optionally wait for its quote id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var waiter bot.QuoteWaiter
			if confirm && useWS {
				m, err := a.startNotify(ctx)
				if err != nil {
					return err
				}
				defer m.Stop()
				waiter = m
			}

			trader, err := a.trader(f, waiter)
			if err != nil {
				return err
			}
			tempID, err := trader.Open(ctx)
			if err != nil {
				return err
			}
			printf(cmd, "temp quote id: %d\n", tempID)
			if !confirm {
				return nil
			}

			quoteID, err := trader.Confirm(ctx, tempID)
			if err != nil {
				return err
			}
			printf(cmd, "quote id:      %d\n", quoteID)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&confirm, "confirm", true, "wait for the on-chain quote id")
	cmd.Flags().BoolVar(&useWS, "notify", false, "confirm from pushed notifications instead of polling")
	return cmd
}

// closeArgs are the resolved inputs of an instant close.
type closeArgs struct {
	QuoteID      int64
	Quantity     decimal.Decimal
	PositionType types.PositionType
	SymbolID     int64
	Slippage     decimal.Decimal
	Deadline     int64
	OrderType    uint8
}

// closeFlags are the raw inputs; absent options were not given.
type closeFlags struct {
	QuoteID        mo.Option[int64]
	Quantity       mo.Option[string]
	PositionType   mo.Option[int64]
	SymbolID       int64
	Deadline       mo.Option[int64]
	OrderType      int64
	DeadlineOffset time.Duration
	Slippage       string
}

// resolve fills closeArgs from the flags, asking p for every value unless
// p is nil. Without a prompter, missing required flags are reported
// together.
func (f closeFlags) resolve(p *prompter, now time.Time) (closeArgs, error) {
	if p == nil {
		return f.resolveFlags(now)
	}

	var out closeArgs
	var err error

	if out.QuoteID, err = p.Int("Quote ID", f.QuoteID, 1); err != nil {
		return out, err
	}
	if out.Quantity, err = p.Decimal("Quantity to close", f.Quantity, decimal.Zero); err != nil {
		return out, err
	}
	position, err := p.Int("Position Type (0=Long, 1=Short)", mo.Some(f.PositionType.OrElse(0)), 0)
	if err != nil {
		return out, err
	}
	if position > 1 {
		return out, fmt.Errorf("position type must be 0 or 1")
	}
	out.PositionType = types.PositionType(position)

	if out.SymbolID, err = p.Int("Symbol ID", mo.Some(f.SymbolID), 0); err != nil {
		return out, err
	}
	if out.Slippage, err = p.Decimal("Slippage (fraction, e.g. 0.05)", mo.Some(f.Slippage), decimal.Zero); err != nil {
		return out, err
	}

	deadline := f.Deadline.OrElse(now.Add(f.DeadlineOffset).Unix())
	if out.Deadline, err = p.Int("Deadline (unix seconds)", mo.Some(deadline), 1); err != nil {
		return out, err
	}
	orderType, err := p.Int("Order Type (market=1)", mo.Some(f.OrderType), 0)
	if err != nil {
		return out, err
	}
	out.OrderType = uint8(orderType)
	return out, nil
}

func (f closeFlags) resolveFlags(now time.Time) (closeArgs, error) {
	var missing []string
	if f.QuoteID.IsAbsent() {
		missing = append(missing, "--quote-id")
	}
	if f.Quantity.IsAbsent() {
		missing = append(missing, "--quantity")
	}
	if f.PositionType.IsAbsent() {
		missing = append(missing, "--position-type")
	}
	if len(missing) > 0 {
		return closeArgs{}, fmt.Errorf("missing required inputs in --no-prompt mode: %s", strings.Join(missing, ", "))
	}

	quantity, err := parseDecimal("quantity", f.Quantity.MustGet())
	if err != nil {
		return closeArgs{}, err
	}
	slippage, err := parseDecimal("slippage", f.Slippage)
	if err != nil {
		return closeArgs{}, err
	}
	if slippage.IsNegative() {
		return closeArgs{}, fmt.Errorf("slippage must be non-negative")
	}
	position := f.PositionType.MustGet()
	if position < 0 || position > 1 {
		return closeArgs{}, fmt.Errorf("position type must be 0 or 1")
	}

	return closeArgs{
		QuoteID:      f.QuoteID.MustGet(),
		Quantity:     quantity,
		PositionType: types.PositionType(position),
		SymbolID:     f.SymbolID,
		Slippage:     slippage,
		Deadline:     f.Deadline.OrElse(now.Add(f.DeadlineOffset).Unix()),
		OrderType:    uint8(f.OrderType),
	}, nil
}

func newInstantCloseCmd(a *app) *cobra.Command {
	var (
		quoteID, positionType, deadline int64
		symbolID, orderType             int64
		quantity, slippage, token       string
		deadlineOffset                  time.Duration
		prompt, noPrompt                bool
	)

	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close an open quote at the oracle price less slippage",
		Long: "Close an open quote through the solver. Every input is prompted for, " +
			"with the flag value as default, unless --no-prompt is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := cmd.Flags().Changed
			f := closeFlags{
				SymbolID:       symbolID,
				OrderType:      orderType,
				DeadlineOffset: deadlineOffset,
				Slippage:       slippage,
			}
			if changed("quote-id") {
				f.QuoteID = mo.Some(quoteID)
			}
			if changed("quantity") {
				f.Quantity = mo.Some(quantity)
			}
			if changed("position-type") {
				f.PositionType = mo.Some(positionType)
			}
			if changed("deadline") {
				f.Deadline = mo.Some(deadline)
			}

			var p *prompter
			if !noPrompt {
				p = newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
				printf(cmd, "\nEnter close parameters (press Enter to accept defaults):\n")
			}
			resolved, err := f.resolve(p, time.Now())
			if err != nil {
				return err
			}
			return a.instantClose(cmd, resolved, token)
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&quoteID, "quote-id", 0, "quote id to close")
	flags.StringVar(&quantity, "quantity", "", "quantity to close")
	flags.Int64Var(&positionType, "position-type", 0, "0=long, 1=short")
	flags.Int64Var(&symbolID, "symbol-id", 1, "solver symbol id")
	flags.Int64Var(&deadline, "deadline", 0, "unix deadline in seconds; defaults to now + --deadline-offset")
	flags.Int64Var(&orderType, "order-type", int64(types.MARKET), "order type (market=1)")
	flags.DurationVar(&deadlineOffset, "deadline-offset", constants.DEFAULT_DEADLINE_OFFSET, "deadline offset from now")
	flags.StringVar(&slippage, "slippage", "0.01", "slippage fraction; closing a long lowers the price, a short raises it")
	flags.StringVar(&token, "token", "", "access token; logs in when empty")
	flags.BoolVar(&prompt, "prompt", true, "prompt for every input")
	flags.BoolVar(&noPrompt, "no-prompt", false, "never prompt; fail when required inputs are missing")
	return cmd
}

func (a *app) instantClose(cmd *cobra.Command, args closeArgs, tokenOverride string) error {
	ctx := cmd.Context()

	diamond, err := a.cfg.Address(config.DIAMOND_ADDRESS)
	if err != nil {
		return err
	}
	h, err := a.hedger(true)
	if err != nil {
		return err
	}
	token, err := a.token(ctx, h, tokenOverride)
	if err != nil {
		return err
	}
	info, err := h.SymbolInfo(ctx, args.SymbolID)
	if err != nil {
		return err
	}
	price, err := a.oracle().SymbolPrice(ctx, h.Account(), a.cfg.InstantChainIDBig(), diamond, big.NewInt(args.SymbolID))
	if err != nil {
		return err
	}

	closePrice := hedger.SlippagePrice(price, args.Slippage, args.PositionType, true)
	req := hedger.InstantCloseRequest{
		QuoteID:         args.QuoteID,
		QuantityToClose: hedger.FormatDecimal(args.Quantity, info.QuantityPrecision),
		ClosePrice:      hedger.FormatDecimal(closePrice, info.PricePrecision),
		Deadline:        &args.Deadline,
		OrderType:       &args.OrderType,
	}
	a.logger.Info().
		Str("oracle_price", price.String()).
		Str("slippage", args.Slippage.String()).
		Str("close_price", req.ClosePrice).
		Str("quantity", req.QuantityToClose).
		Msg("closing")

	res, err := h.InstantClose(ctx, token, req)
	if err != nil {
		return err
	}
	printf(cmd, "%s\n", res)
	return nil
}

func newInstantStatusCmd(a *app) *cobra.Command {
	var (
		tempID   int64
		attempts int
		interval time.Duration
		useWS    bool
		token    string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Wait for the on-chain quote id of a temp quote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var quoteID int64
			if useWS {
				m, err := a.startNotify(ctx)
				if err != nil {
					return err
				}
				defer m.Stop()
				if quoteID, err = m.WaitForQuote(ctx, tempID); err != nil {
					return err
				}
			} else {
				h, err := a.hedger(true)
				if err != nil {
					return err
				}
				tok, err := a.token(ctx, h, token)
				if err != nil {
					return err
				}
				poll := hedger.PollConfig{Attempts: attempts, Interval: interval}
				if quoteID, err = h.WaitForQuoteID(ctx, tok, h.Account(), tempID, poll); err != nil {
					return err
				}
			}
			printf(cmd, "quote id: %d\n", quoteID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&tempID, "temp-id", 0, "temp quote id returned by instant open")
	flags.IntVar(&attempts, "attempts", constants.DEFAULT_POLL_ATTEMPTS, "status requests before giving up")
	flags.DurationVar(&interval, "interval", constants.DEFAULT_POLL_INTERVAL, "delay between status requests")
	flags.BoolVar(&useWS, "notify", false, "wait on pushed notifications instead of polling")
	flags.StringVar(&token, "token", "", "access token; logs in when empty")
	cmd.MarkFlagRequired("temp-id")
	return cmd
}

func newInstantStopLossCmd(a *app) *cobra.Command {
	var (
		quoteID, symbolID           int64
		positionType, openPrice, sl string
		token                       string
	)

	cmd := &cobra.Command{
		Use:   "stop-loss",
		Short: "Register a stop loss for an open quote with the solver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			position, err := types.ParsePositionType(positionType)
			if err != nil {
				return err
			}
			open, err := parseDecimal("open-price", openPrice)
			if err != nil {
				return err
			}
			slPrice := hedger.DefaultStopLossPrice(open)
			if sl != "" {
				d, err := parseDecimal("sl-price", sl)
				if err != nil {
					return err
				}
				slPrice = d.String()
			}

			h, err := a.hedger(true)
			if err != nil {
				return err
			}
			tok, err := a.token(ctx, h, token)
			if err != nil {
				return err
			}
			err = h.SetStopLoss(ctx, tok, hedger.StopLossRequest{
				PositionSide:   uint8(position),
				SymbolID:       symbolID,
				RequestedPrice: open.String(),
				QuoteID:        quoteID,
				SlPrice:        slPrice,
			})
			if err != nil {
				return err
			}
			printf(cmd, "stop loss for quote %d set at %s\n", quoteID, slPrice)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&quoteID, "quote-id", 0, "open quote id")
	flags.Int64Var(&symbolID, "symbol-id", 0, "solver symbol id")
	flags.StringVar(&positionType, "position-type", "long", "long (0) or short (1)")
	flags.StringVar(&openPrice, "open-price", "", "price the position was opened at")
	flags.StringVar(&sl, "sl-price", "", "stop price; defaults to 80% of the open price")
	flags.StringVar(&token, "token", "", "access token; logs in when empty")
	cmd.MarkFlagRequired("quote-id")
	cmd.MarkFlagRequired("symbol-id")
	cmd.MarkFlagRequired("open-price")
	return cmd
}

func newInstantConditionalCmd(a *app) *cobra.Command {
	var (
		quoteID, symbolID, leverage int64
		positionType, quantity      string
		openPrice, price, stopPrice string
		token                       string
	)

	cmd := &cobra.Command{
		Use:   "conditional-sl",
		Short: "Register a stop loss with the conditional orders service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			position, err := types.ParsePositionType(positionType)
			if err != nil {
				return err
			}
			qty, err := parseDecimal("quantity", quantity)
			if err != nil {
				return err
			}
			open, err := parseDecimal("open-price", openPrice)
			if err != nil {
				return err
			}
			stop := hedger.DefaultStopPrice(open, position)
			if stopPrice != "" {
				if stop, err = parseDecimal("stop-price", stopPrice); err != nil {
					return err
				}
			}
			orderPrice := stop
			if price != "" {
				if orderPrice, err = parseDecimal("price", price); err != nil {
					return err
				}
			}

			account, err := a.cfg.Address(config.SUB_ACCOUNT_ADDRESS)
			if err != nil {
				return err
			}
			multiAccount, err := a.cfg.Address(config.MULTIACCOUNT_ADDRESS)
			if err != nil {
				return err
			}
			orders, err := hedger.NewConditionalOrders(hedger.ConditionalOrdersConfig{
				BaseURL:      a.cfg.ConditionalOrdersURL,
				AppName:      a.cfg.ConditionalOrdersAppName,
				MultiAccount: multiAccount,
				Whitelist:    a.cfg.HedgerWhitelist,
				Logger:       &a.logger,
			})
			if err != nil {
				return err
			}

			h, err := a.hedger(true)
			if err != nil {
				return err
			}
			tok, err := a.token(ctx, h, token)
			if err != nil {
				return err
			}
			res, err := orders.SetStopLoss(ctx, tok, hedger.StopLoss{
				Account:      account,
				QuoteID:      quoteID,
				SymbolID:     symbolID,
				PositionType: position,
				OrderType:    types.MARKET,
				Quantity:     qty,
				Price:        orderPrice,
				StopPrice:    stop,
				Leverage:     leverage,
			})
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", res.Raw)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&quoteID, "quote-id", 0, "open quote id")
	flags.Int64Var(&symbolID, "symbol-id", 0, "solver symbol id")
	flags.Int64Var(&leverage, "leverage", 1, "position leverage")
	flags.StringVar(&positionType, "position-type", "long", "long (0) or short (1)")
	flags.StringVar(&quantity, "quantity", "", "quantity to close when triggered")
	flags.StringVar(&openPrice, "open-price", "", "price the position was opened at")
	flags.StringVar(&stopPrice, "stop-price", "", "trigger price; defaults to 20% against the position")
	flags.StringVar(&price, "price", "", "order price once triggered; defaults to the stop price")
	flags.StringVar(&token, "token", "", "access token; logs in when empty")
	cmd.MarkFlagRequired("quote-id")
	cmd.MarkFlagRequired("symbol-id")
	cmd.MarkFlagRequired("quantity")
	cmd.MarkFlagRequired("open-price")
	return cmd
}
