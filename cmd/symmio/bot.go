package main

import (
	"time"

	"github.com/banky/go-symmio/bot"
	"github.com/banky/go-symmio/ticker"
	"github.com/spf13/cobra"
)

func newBotCmd(a *app) *cobra.Command {
	var (
		f           traderFlags
		symbol      string
		entry, exit string
		interval    time.Duration
		useWS       bool
	)

	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Open below --entry and close above --exit on the reference price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			entryPrice, err := parseDecimal("entry", entry)
			if err != nil {
				return err
			}
			exitPrice, err := parseDecimal("exit", exit)
			if err != nil {
				return err
			}

			var waiter bot.QuoteWaiter
			if useWS {
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
			b, err := bot.New(bot.Config{
				Symbol:   symbol,
				Entry:    entryPrice,
				Exit:     exitPrice,
				Interval: interval,
				Prices: ticker.New(ticker.Config{
					BaseURL: a.cfg.BinanceURL,
					Logger:  &a.logger,
				}),
				Trader: trader,
				Logger: &a.logger,
			})
			if err != nil {
				return err
			}
			if err := b.Run(ctx); err != nil {
				return err
			}
			if quoteID, open := b.Position(); open {
				printf(cmd, "position still open: quote id %d\n", quoteID)
			}
			return nil
		},
	}

	f.register(cmd)
	flags := cmd.Flags()
	flags.StringVar(&symbol, "symbol", "XRPUSDT", "reference market on the price feed")
	flags.StringVar(&entry, "entry", "", "open at or below this price")
	flags.StringVar(&exit, "exit", "", "close at or above this price")
	flags.DurationVar(&interval, "interval", 5*time.Second, "time between price checks")
	flags.BoolVar(&useWS, "notify", false, "confirm opens from pushed notifications instead of polling")
	cmd.MarkFlagRequired("entry")
	cmd.MarkFlagRequired("exit")
	return cmd
}
