// Package bot runs a single-position threshold strategy on top of the
// solver's instant actions: buy when the market trades at or below an
// entry price, sell when it trades at or above an exit price.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const DEFAULT_INTERVAL = 5 * time.Second

// PriceSource quotes the reference market. *ticker.Client implements it.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Trader opens and closes the bot's position. *InstantTrader implements
// it against the solver.
type Trader interface {
	Open(ctx context.Context) (int64, error)
	Confirm(ctx context.Context, tempID int64) (int64, error)
	Close(ctx context.Context, quoteID int64) error
}

type Config struct {
	// Symbol is the reference market, e.g. XRPUSDT
	Symbol string
	Entry  decimal.Decimal
	Exit   decimal.Decimal
	// Interval between ticks
	// If none is provided, 5s is used
	Interval time.Duration
	Prices   PriceSource
	Trader   Trader
	Logger   *zerolog.Logger
}

type Bot struct {
	symbol   string
	entry    decimal.Decimal
	exit     decimal.Decimal
	interval time.Duration
	prices   PriceSource
	trader   Trader
	logger   zerolog.Logger

	quoteID int64
}

func New(cfg Config) (*Bot, error) {
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if cfg.Prices == nil || cfg.Trader == nil {
		return nil, fmt.Errorf("price source and trader are required")
	}
	if !cfg.Entry.IsPositive() || !cfg.Exit.IsPositive() {
		return nil, fmt.Errorf("entry and exit prices must be positive")
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DEFAULT_INTERVAL
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "bot").Str("symbol", cfg.Symbol).Logger()
	}

	return &Bot{
		symbol:   cfg.Symbol,
		entry:    cfg.Entry,
		exit:     cfg.Exit,
		interval: interval,
		prices:   cfg.Prices,
		trader:   cfg.Trader,
		logger:   logger,
	}, nil
}

// Position returns the confirmed quote id of the open position, if any.
func (b *Bot) Position() (int64, bool) {
	return b.quoteID, b.quoteID != 0
}

// Run ticks until ctx is done. A failed tick is logged and the loop
// carries on with the next one.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info().
		Str("entry", b.entry.String()).
		Str("exit", b.exit.String()).
		Dur("interval", b.interval).
		Msg("bot started")

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		if err := b.Tick(ctx); err != nil && ctx.Err() == nil {
			b.logger.Error().Err(err).Msg("tick failed")
		}

		select {
		case <-ctx.Done():
			b.logger.Info().Msg("bot stopped")
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick reads the price once and enters or exits when a threshold is
// crossed.
func (b *Bot) Tick(ctx context.Context) error {
	price, err := b.prices.Price(ctx, b.symbol)
	if err != nil {
		return fmt.Errorf("failed to get price: %w", err)
	}
	b.logger.Debug().Str("price", price.String()).Msg("price")

	quoteID, open := b.Position()
	switch {
	case !open && price.LessThanOrEqual(b.entry):
		b.logger.Info().Str("price", price.String()).Msg("entry signal")

		tempID, err := b.trader.Open(ctx)
		if err != nil {
			return fmt.Errorf("failed to open position: %w", err)
		}
		confirmed, err := b.trader.Confirm(ctx, tempID)
		if err != nil {
			return fmt.Errorf("failed to confirm temp quote %d: %w", tempID, err)
		}
		b.quoteID = confirmed
		b.logger.Info().Int64("quote_id", confirmed).Msg("position opened")

	case open && price.GreaterThanOrEqual(b.exit):
		b.logger.Info().Str("price", price.String()).Msg("exit signal")

		if err := b.trader.Close(ctx, quoteID); err != nil {
			return fmt.Errorf("failed to close quote %d: %w", quoteID, err)
		}
		b.quoteID = 0
		b.logger.Info().Int64("quote_id", quoteID).Msg("position closed")
	}
	return nil
}
