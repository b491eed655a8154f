package bot

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/banky/go-symmio/hedger"
	"github.com/banky/go-symmio/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/maxatome/go-testdeep/td"
	"github.com/shopspring/decimal"
)

// ===== Fakes =====

type fakePrices struct {
	mu     sync.Mutex
	prices []string
	err    error
	calls  int
	// onCall runs after every price read
	onCall func(calls int)
}

func (f *fakePrices) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.Lock()
	f.calls++
	calls := f.calls
	var price string
	if len(f.prices) > 0 {
		price, f.prices = f.prices[0], f.prices[1:]
	}
	err := f.err
	f.mu.Unlock()

	if f.onCall != nil {
		defer f.onCall(calls)
	}
	if err != nil {
		return decimal.Zero, err
	}
	if price == "" {
		return decimal.Zero, errors.New("no more prices")
	}
	return decimal.RequireFromString(price), nil
}

type fakeTrader struct {
	tempID  int64
	quoteID int64

	openErr    error
	confirmErr error
	closeErr   error

	opened    int
	confirmed []int64
	closed    []int64
}

func (f *fakeTrader) Open(ctx context.Context) (int64, error) {
	f.opened++
	if f.openErr != nil {
		return 0, f.openErr
	}
	return f.tempID, nil
}

func (f *fakeTrader) Confirm(ctx context.Context, tempID int64) (int64, error) {
	f.confirmed = append(f.confirmed, tempID)
	if f.confirmErr != nil {
		return 0, f.confirmErr
	}
	return f.quoteID, nil
}

func (f *fakeTrader) Close(ctx context.Context, quoteID int64) error {
	f.closed = append(f.closed, quoteID)
	return f.closeErr
}

func newBot(t *testing.T, prices PriceSource, trader Trader) *Bot {
	t.Helper()
	b, err := New(Config{
		Symbol:   "XRPUSDT",
		Entry:    decimal.RequireFromString("3.05"),
		Exit:     decimal.RequireFromString("3.10"),
		Interval: time.Millisecond,
		Prices:   prices,
		Trader:   trader,
	})
	td.Require(t).CmpNoError(err)
	return b
}

// ===== Bot =====

func TestNew(t *testing.T) {
	prices, trader := &fakePrices{}, &fakeTrader{}
	one := decimal.NewFromInt(1)

	tests := []struct {
		name string
		cfg  Config
		err  string
	}{
		{name: "no symbol", cfg: Config{Prices: prices, Trader: trader, Entry: one, Exit: one}, err: "symbol is required"},
		{name: "no trader", cfg: Config{Symbol: "XRPUSDT", Prices: prices, Entry: one, Exit: one}, err: "price source and trader are required"},
		{name: "no entry", cfg: Config{Symbol: "XRPUSDT", Prices: prices, Trader: trader, Exit: one}, err: "entry and exit prices must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			td.CmpString(t, err, tt.err)
		})
	}

	b, err := New(Config{Symbol: "XRPUSDT", Prices: prices, Trader: trader, Entry: one, Exit: one})
	td.Require(t).CmpNoError(err)
	td.Cmp(t, b.interval, DEFAULT_INTERVAL)
}

func TestTickEntersAndExits(t *testing.T) {
	prices := &fakePrices{prices: []string{"3.20", "3.05", "3.00", "3.09", "3.10", "3.11"}}
	trader := &fakeTrader{tempID: 7, quoteID: 1204}
	b := newBot(t, prices, trader)
	ctx := context.Background()

	steps := []struct {
		name    string
		open    bool
		quoteID int64
	}{
		{name: "above entry", open: false},
		{name: "at entry", open: true, quoteID: 1204},
		{name: "below entry while open", open: true, quoteID: 1204},
		{name: "below exit", open: true, quoteID: 1204},
		{name: "at exit", open: false},
		{name: "above exit while flat", open: false},
	}
	for _, step := range steps {
		td.Require(t).CmpNoError(b.Tick(ctx), step.name)
		quoteID, open := b.Position()
		td.Cmp(t, open, step.open, step.name)
		td.Cmp(t, quoteID, step.quoteID, step.name)
	}

	td.Cmp(t, trader.opened, 1)
	td.Cmp(t, trader.confirmed, []int64{7})
	td.Cmp(t, trader.closed, []int64{1204})
}

func TestTickErrorsKeepState(t *testing.T) {
	t.Run("price", func(t *testing.T) {
		b := newBot(t, &fakePrices{err: errors.New("boom")}, &fakeTrader{})
		td.CmpString(t, b.Tick(context.Background()), "failed to get price: boom")
	})

	t.Run("open", func(t *testing.T) {
		trader := &fakeTrader{openErr: errors.New("rejected")}
		b := newBot(t, &fakePrices{prices: []string{"3.00"}}, trader)

		td.CmpString(t, b.Tick(context.Background()), "failed to open position: rejected")
		_, open := b.Position()
		td.CmpFalse(t, open)
		td.CmpLen(t, trader.confirmed, 0)
	})

	t.Run("confirm", func(t *testing.T) {
		trader := &fakeTrader{tempID: 7, confirmErr: hedger.ErrPollTimeout}
		b := newBot(t, &fakePrices{prices: []string{"3.00"}}, trader)

		err := b.Tick(context.Background())
		td.CmpTrue(t, errors.Is(err, hedger.ErrPollTimeout))
		td.CmpContains(t, err, "temp quote 7")
		_, open := b.Position()
		td.CmpFalse(t, open)
	})

	t.Run("close", func(t *testing.T) {
		trader := &fakeTrader{tempID: 7, quoteID: 1204, closeErr: errors.New("solver down")}
		b := newBot(t, &fakePrices{prices: []string{"3.00", "3.50"}}, trader)
		ctx := context.Background()

		td.Require(t).CmpNoError(b.Tick(ctx))
		td.CmpString(t, b.Tick(ctx), "failed to close quote 1204: solver down")

		quoteID, open := b.Position()
		td.CmpTrue(t, open)
		td.Cmp(t, quoteID, int64(1204))
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the first read fails, the run carries on and opens on the second
	prices := &fakePrices{prices: []string{"", "3.00"}}
	prices.onCall = func(calls int) {
		if calls == 3 {
			cancel()
		}
	}
	trader := &fakeTrader{tempID: 7, quoteID: 1204}
	b := newBot(t, prices, trader)

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	select {
	case err := <-done:
		td.CmpNoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}

	quoteID, open := b.Position()
	td.CmpTrue(t, open)
	td.Cmp(t, quoteID, int64(1204))
}

func TestRunDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	b := newBot(t, &fakePrices{err: errors.New("offline")}, &fakeTrader{})
	td.Cmp(t, b.Run(ctx), context.DeadlineExceeded)
}

// ===== InstantTrader =====

type fakeOracle struct {
	price decimal.Decimal
	got   []common.Address
}

func (f *fakeOracle) SymbolPrice(
	ctx context.Context,
	partyA common.Address,
	chainID *big.Int,
	symmio common.Address,
	symbolID *big.Int,
) (decimal.Decimal, error) {
	f.got = append(f.got, partyA, symmio)
	return f.price, nil
}

type waiterFunc func(ctx context.Context, tempID int64) (int64, error)

func (f waiterFunc) WaitForQuote(ctx context.Context, tempID int64) (int64, error) {
	return f(ctx, tempID)
}

type solver struct {
	mu     sync.Mutex
	opens  []map[string]any
	closes []map[string]any
	auth   []string
	status int
}

func newSolver(t *testing.T) (*hedger.Client, *solver) {
	t.Helper()
	s := &solver{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /contract-symbols", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbols":[{"symbol_id":4,"name":"XRPUSDT","price_precision":4,"quantity_precision":1}]}`))
	})
	mux.HandleFunc("GET /get_locked_params/XRPUSDT", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"Success","cva":"10","lf":"5","partyAmm":"20","partyBmm":"0","leverage":"` + r.URL.Query().Get("leverage") + `"}`))
	})
	mux.HandleFunc("POST /instant_open", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.opens = append(s.opens, body)
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		s.mu.Unlock()
		w.Write([]byte(`{"temp_quote_id":-3}`))
	})
	mux.HandleFunc("GET /instant_open/{account}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.status++
		n := s.status
		s.mu.Unlock()
		if n < 2 {
			w.Write([]byte(`[{"temp_quote_id":-3,"quote_id":null}]`))
			return
		}
		w.Write([]byte(`[{"temp_quote_id":-3,"quote_id":812}]`))
	})
	mux.HandleFunc("POST /instant_close", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.closes = append(s.closes, body)
		s.mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := hedger.New(hedger.Config{BaseURL: server.URL, AccountAddress: subAccount})
	td.Require(t).CmpNoError(err)
	return client, s
}

var (
	subAccount = common.HexToAddress("0x4921a5fC974d5132b4eba7F8697236fc5851a3fA")
	diamond    = common.HexToAddress("0x8Ab178C07184ffD44F0ADfF4eA2ce6cFc33F3b86")
)

func staticToken(ctx context.Context) (string, error) { return "tok", nil }

func TestInstantTrader(t *testing.T) {
	client, solver := newSolver(t)
	oracle := &fakeOracle{price: decimal.RequireFromString("2")}

	trader, err := NewInstantTrader(InstantTraderConfig{
		Hedger:       client,
		Oracle:       oracle,
		Poll:         hedger.PollConfig{Attempts: 5, Interval: time.Millisecond},
		Token:        staticToken,
		Diamond:      diamond,
		SymbolID:     4,
		PositionType: types.LONG,
		Quantity:     decimal.RequireFromString("10"),
	})
	td.Require(t).CmpNoError(err)

	fixed := time.Unix(1_700_000_000, 0)
	trader.now = func() time.Time { return fixed }
	ctx := context.Background()

	tempID, err := trader.Open(ctx)
	td.Require(t).CmpNoError(err)
	td.Cmp(t, tempID, int64(-3))

	quoteID, err := trader.Confirm(ctx, tempID)
	td.Require(t).CmpNoError(err)
	td.Cmp(t, quoteID, int64(812))

	td.Require(t).CmpNoError(trader.Close(ctx, quoteID))

	solver.mu.Lock()
	defer solver.mu.Unlock()

	td.Cmp(t, solver.auth, []string{"Bearer tok"})
	td.Cmp(t, solver.opens, []map[string]any{{
		"symbolId":       float64(4),
		"positionType":   float64(types.LONG),
		"orderType":      float64(types.MARKET),
		"price":          "2.0200",
		"quantity":       "10.0",
		"cva":            td.Ignore(),
		"lf":             td.Ignore(),
		"partyAmm":       td.Ignore(),
		"partyBmm":       "0",
		"maxFundingRate": "200",
		"deadline":       float64(fixed.Add(time.Hour).Unix()),
	}})
	td.Cmp(t, solver.closes, []map[string]any{{
		"quote_id":          float64(812),
		"quantity_to_close": "10.0",
		"close_price":       "1.9800",
	}})
	td.Cmp(t, solver.status, 2)

	td.Cmp(t, oracle.got, []common.Address{subAccount, diamond, subAccount, diamond})
}

func TestInstantTraderNotify(t *testing.T) {
	client, solver := newSolver(t)

	trader, err := NewInstantTrader(InstantTraderConfig{
		Hedger:   client,
		Oracle:   &fakeOracle{price: decimal.NewFromInt(1)},
		Token:    staticToken,
		SymbolID: 4,
		Quantity: decimal.NewFromInt(1),
		Notify: waiterFunc(func(ctx context.Context, tempID int64) (int64, error) {
			return -tempID * 100, nil
		}),
	})
	td.Require(t).CmpNoError(err)

	quoteID, err := trader.Confirm(context.Background(), -3)
	td.Require(t).CmpNoError(err)
	td.Cmp(t, quoteID, int64(300))
	td.Cmp(t, solver.status, 0)
}

func TestNewInstantTrader(t *testing.T) {
	_, err := NewInstantTrader(InstantTraderConfig{})
	td.CmpString(t, err, "hedger and oracle clients are required")

	client, _ := newSolver(t)
	_, err = NewInstantTrader(InstantTraderConfig{Hedger: client, Oracle: &fakeOracle{}})
	td.CmpString(t, err, "quantity must be positive")

	trader, err := NewInstantTrader(InstantTraderConfig{Hedger: client, Oracle: &fakeOracle{}, Quantity: decimal.NewFromInt(1)})
	td.Require(t).CmpNoError(err)
	td.CmpTrue(t, trader.cfg.Leverage.Equal(decimal.NewFromInt(1)))
	td.CmpTrue(t, trader.cfg.Slippage.Equal(decimal.RequireFromString("0.01")))
	td.Cmp(t, trader.cfg.ChainID.Int64(), int64(42161))
}
