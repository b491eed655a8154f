package main

import (
	"context"
	"math/big"
	"time"

	"github.com/banky/go-symmio/config"
	"github.com/banky/go-symmio/symmio"
	"github.com/banky/go-symmio/types"
	"github.com/spf13/cobra"
)

// executor forwards partyA writes through the multi-account when a
// sub-account is configured and sends them directly otherwise.
func (a *app) executor(ctx context.Context) (symmio.Executor, error) {
	diamond, err := a.diamond(ctx, true)
	if err != nil {
		return nil, err
	}
	sub, ok := a.cfg.OptionalAddress(config.SUB_ACCOUNT_ADDRESS).Get()
	if _, multi := a.cfg.OptionalAddress(config.MULTIACCOUNT_ADDRESS).Get(); !ok || !multi {
		return diamond, nil
	}
	m, err := a.multiAccount(ctx, diamond)
	if err != nil {
		return nil, err
	}
	return m.For(sub), nil
}

// quoteIDCmd builds a command that takes a single --quote-id.
func quoteIDCmd(use, short string, run func(cmd *cobra.Command, quoteID *big.Int) error) *cobra.Command {
	var raw string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBig("quote-id", raw)
			if err != nil {
				return err
			}
			return run(cmd, id)
		},
	}
	cmd.Flags().StringVar(&raw, "quote-id", "", "quote id")
	cmd.MarkFlagRequired("quote-id")
	return cmd
}

func newQuoteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote lifecycle writes on the diamond",
	}

	cmd.AddCommand(
		newSendQuoteCmd(a),
		quoteIDCmd("lock", "Lock a pending quote as partyB", func(cmd *cobra.Command, id *big.Int) error {
			flows, err := a.flows(cmd.Context(), false)
			if err != nil {
				return err
			}
			return sent(cmd)(flows.LockQuote(cmd.Context(), id))
		}),
		quoteIDCmd("unlock", "Unlock a locked quote as partyB", func(cmd *cobra.Command, id *big.Int) error {
			diamond, err := a.diamond(cmd.Context(), true)
			if err != nil {
				return err
			}
			return sent(cmd)(diamond.UnlockQuote(cmd.Context(), id))
		}),
		newLockAndOpenCmd(a),
		newRequestCloseCmd(a),
		quoteIDCmd("cancel", "Request to cancel a pending quote", func(cmd *cobra.Command, id *big.Int) error {
			exec, err := a.executor(cmd.Context())
			if err != nil {
				return err
			}
			return sent(cmd)(exec.Exec(cmd.Context(), symmio.RequestToCancelQuoteCall(id)))
		}),
		quoteIDCmd("cancel-close", "Cancel a pending close request", func(cmd *cobra.Command, id *big.Int) error {
			exec, err := a.executor(cmd.Context())
			if err != nil {
				return err
			}
			return sent(cmd)(exec.Exec(cmd.Context(), symmio.RequestToCancelCloseRequestCall(id)))
		}),
		quoteIDCmd("accept-cancel-close", "Accept a close cancellation as partyB", func(cmd *cobra.Command, id *big.Int) error {
			diamond, err := a.diamond(cmd.Context(), true)
			if err != nil {
				return err
			}
			return sent(cmd)(diamond.AcceptCancelCloseRequest(cmd.Context(), id))
		}),
		newExpireCmd(a),
		quoteIDCmd("emergency-close", "Close a position at the oracle price as partyB", func(cmd *cobra.Command, id *big.Int) error {
			flows, err := a.flows(cmd.Context(), false)
			if err != nil {
				return err
			}
			return sent(cmd)(flows.EmergencyClose(cmd.Context(), id))
		}),
		quoteIDCmd("force-close", "Force close a position whose close request went unfilled", func(cmd *cobra.Command, id *big.Int) error {
			flows, err := a.flows(cmd.Context(), false)
			if err != nil {
				return err
			}
			return sent(cmd)(flows.ForceClose(cmd.Context(), id))
		}),
		quoteIDCmd("get", "Print a quote", func(cmd *cobra.Command, id *big.Int) error {
			diamond, err := a.diamond(cmd.Context(), false)
			if err != nil {
				return err
			}
			quote, err := diamond.GetQuote(cmd.Context(), id)
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", quote)
			return nil
		}),
	)
	return cmd
}

func newSendQuoteCmd(a *app) *cobra.Command {
	var (
		symbolID               int64
		positionType, quantity string
		leverage, slippage     string
		orderType              int64
		whitelist              string
		deadlineOffset         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a quote priced at the oracle price plus slippage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := types.ParsePositionType(positionType)
			if err != nil {
				return err
			}
			qty, err := parseDecimal("quantity", quantity)
			if err != nil {
				return err
			}
			lev, err := parseDecimal("leverage", leverage)
			if err != nil {
				return err
			}
			slip, err := parseDecimal("slippage", slippage)
			if err != nil {
				return err
			}
			partyBs, err := parseAddresses("party-b-whitelist", whitelist)
			if err != nil {
				return err
			}

			flows, err := a.flows(cmd.Context(), true)
			if err != nil {
				return err
			}
			return sent(cmd)(flows.SendQuote(cmd.Context(), symmio.SendQuoteParams{
				SymbolID:         symbolID,
				PositionType:     position,
				OrderType:        types.OrderType(orderType),
				Quantity:         qty,
				Leverage:         lev,
				Slippage:         slip,
				PartyBsWhiteList: partyBs,
				Deadline:         time.Now().Add(deadlineOffset),
			}))
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&symbolID, "symbol-id", 0, "symbol id")
	flags.StringVar(&positionType, "position-type", "long", "long (0) or short (1)")
	flags.Int64Var(&orderType, "order-type", int64(types.MARKET), "0=limit, 1=market")
	flags.StringVar(&quantity, "quantity", "", "quantity")
	flags.StringVar(&leverage, "leverage", "1", "leverage")
	flags.StringVar(&slippage, "slippage", "0.01", "slippage fraction applied to the oracle price")
	flags.StringVar(&whitelist, "party-b-whitelist", "", "comma separated partyB addresses allowed to fill")
	flags.DurationVar(&deadlineOffset, "deadline-offset", 24*time.Hour, "quote deadline from now")
	cmd.MarkFlagRequired("symbol-id")
	cmd.MarkFlagRequired("quantity")
	return cmd
}

func newLockAndOpenCmd(a *app) *cobra.Command {
	var quoteID, filled, price string

	cmd := &cobra.Command{
		Use:   "lock-open",
		Short: "Lock and open a quote in one transaction as partyB",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBig("quote-id", quoteID)
			if err != nil {
				return err
			}
			filledAmount, err := parseWei("filled", filled)
			if err != nil {
				return err
			}
			openedPrice, err := parseWei("price", price)
			if err != nil {
				return err
			}

			flows, err := a.flows(cmd.Context(), false)
			if err != nil {
				return err
			}
			return sent(cmd)(flows.LockAndOpenQuote(cmd.Context(), id, filledAmount, openedPrice))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&quoteID, "quote-id", "", "quote id")
	flags.StringVar(&filled, "filled", "", "filled quantity")
	flags.StringVar(&price, "price", "", "opened price")
	cmd.MarkFlagRequired("quote-id")
	cmd.MarkFlagRequired("filled")
	cmd.MarkFlagRequired("price")
	return cmd
}

func newRequestCloseCmd(a *app) *cobra.Command {
	var (
		quoteID, price, quantity string
		orderType                int64
		deadlineOffset           time.Duration
	)

	cmd := &cobra.Command{
		Use:   "close",
		Short: "Request to close a position on chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBig("quote-id", quoteID)
			if err != nil {
				return err
			}
			closePrice, err := parseWei("price", price)
			if err != nil {
				return err
			}
			qty, err := parseWei("quantity", quantity)
			if err != nil {
				return err
			}

			exec, err := a.executor(cmd.Context())
			if err != nil {
				return err
			}
			return sent(cmd)(exec.Exec(cmd.Context(), symmio.RequestToClosePositionCall(symmio.CloseRequest{
				QuoteID:         id,
				ClosePrice:      closePrice,
				QuantityToClose: qty,
				OrderType:       types.OrderType(orderType),
				Deadline:        big.NewInt(time.Now().Add(deadlineOffset).Unix()),
			})))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&quoteID, "quote-id", "", "quote id")
	flags.StringVar(&price, "price", "", "close price")
	flags.StringVar(&quantity, "quantity", "", "quantity to close")
	flags.Int64Var(&orderType, "order-type", int64(types.MARKET), "0=limit, 1=market")
	flags.DurationVar(&deadlineOffset, "deadline-offset", time.Hour, "close request deadline from now")
	cmd.MarkFlagRequired("quote-id")
	cmd.MarkFlagRequired("price")
	cmd.MarkFlagRequired("quantity")
	return cmd
}

func newExpireCmd(a *app) *cobra.Command {
	var quoteIDs string

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Expire quotes past their deadline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseBigs("quote-ids", quoteIDs)
			if err != nil {
				return err
			}
			diamond, err := a.diamond(cmd.Context(), true)
			if err != nil {
				return err
			}
			return sent(cmd)(diamond.ExpireQuote(cmd.Context(), ids))
		},
	}
	cmd.Flags().StringVar(&quoteIDs, "quote-ids", "", "comma separated quote ids")
	cmd.MarkFlagRequired("quote-ids")
	return cmd
}
