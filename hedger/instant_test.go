package hedger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/banky/go-symmio/errs"
	"github.com/banky/go-symmio/types"
	"github.com/maxatome/go-testdeep/td"
)

var statusPath = "/instant_open/" + subAccount.Hex()

func TestNewInstantOpenRequest(t *testing.T) {
	params := LockedParams{Cva: dec("10"), Lf: dec("5"), PartyAmm: dec("20"), PartyBmm: dec("8"), Leverage: dec("10")}
	deadline := time.Unix(1722500000, 0)

	t.Run("raw values", func(t *testing.T) {
		req := NewInstantOpenRequest(OpenParams{
			SymbolID:     4,
			PositionType: types.LONG,
			OrderType:    types.MARKET,
			Price:        dec("2.5"),
			Quantity:     dec("100"),
			Deadline:     deadline,
		}, params)

		td.Cmp(t, req, InstantOpenRequest{
			SymbolID:       4,
			PositionType:   0,
			OrderType:      1,
			Price:          "2.5",
			Quantity:       "100",
			Cva:            "2.5",
			Lf:             "1.25",
			PartyAmm:       "5",
			PartyBmm:       "0",
			MaxFundingRate: "200",
			Deadline:       1722500000,
		})
	})

	t.Run("precision truncates before notional", func(t *testing.T) {
		req := NewInstantOpenRequest(OpenParams{
			SymbolID:          4,
			PositionType:      types.SHORT,
			OrderType:         types.LIMIT,
			Price:             dec("2.56789"),
			Quantity:          dec("10.99"),
			Deadline:          deadline,
			PricePrecision:    2,
			QuantityPrecision: 1,
		}, params)

		td.Cmp(t, req.Price, "2.56")
		td.Cmp(t, req.Quantity, "10.9")
		// 2.56 * 10.9 = 27.904
		td.Cmp(t, req.Cva, "0.27904")
		td.Cmp(t, req.PositionType, uint8(1))
	})
}

func TestInstantOpen(t *testing.T) {
	c, solver := newSolver(t, map[string]http.HandlerFunc{
		"POST /instant_open": jsonBody(`{"temp_quote_id":-17,"status":"pending"}`),
	})

	req := InstantOpenRequest{SymbolID: 4, Price: "2.5", Quantity: "10", PartyBmm: "0", MaxFundingRate: "200"}
	tempID, err := c.InstantOpen(context.Background(), "tok", req)
	td.Require(t).CmpNoError(err)
	td.Cmp(t, tempID, int64(-17))

	got := solver.last(t)
	td.Cmp(t, got.header.Get("Authorization"), "Bearer tok")
	td.Cmp(t, json.RawMessage(got.body), td.JSON(`{
		"symbolId": 4,
		"positionType": 0,
		"orderType": 0,
		"price": "2.5",
		"quantity": "10",
		"cva": "",
		"lf": "",
		"partyAmm": "",
		"partyBmm": "0",
		"maxFundingRate": "200",
		"deadline": 0
	}`))
}

func TestInstantOpenTempIDFallback(t *testing.T) {
	c, _ := newSolver(t, map[string]http.HandlerFunc{
		"POST /instant_open": jsonBody(`{"quote_id":"9"}`),
	})
	tempID, err := c.InstantOpen(context.Background(), "tok", InstantOpenRequest{})
	td.Require(t).CmpNoError(err)
	td.Cmp(t, tempID, int64(9))
}

func TestInstantOpenMissingTempID(t *testing.T) {
	c, _ := newSolver(t, map[string]http.HandlerFunc{
		"POST /instant_open": jsonBody(`{"status":"ok"}`),
	})
	_, err := c.InstantOpen(context.Background(), "tok", InstantOpenRequest{})
	td.CmpTrue(t, errors.Is(err, errs.MalformedResponse))
}

func TestInstantClose(t *testing.T) {
	c, solver := newSolver(t, map[string]http.HandlerFunc{
		"POST /instant_close": jsonBody(`{"successful":true}`),
	})

	t.Run("minimal", func(t *testing.T) {
		res, err := c.InstantClose(context.Background(), "tok", InstantCloseRequest{
			QuoteID:         42,
			QuantityToClose: "10",
			ClosePrice:      "2.475",
		})
		td.Require(t).CmpNoError(err)
		td.Cmp(t, res, td.JSON(`{"successful":true}`))
		td.Cmp(t, json.RawMessage(solver.last(t).body),
			td.JSON(`{"quote_id":42,"quantity_to_close":"10","close_price":"2.475"}`))
	})

	t.Run("with deadline and order type", func(t *testing.T) {
		deadline := int64(1722500000)
		orderType := uint8(types.MARKET)
		_, err := c.InstantClose(context.Background(), "tok", InstantCloseRequest{
			QuoteID:         42,
			QuantityToClose: "10",
			ClosePrice:      "2.475",
			Deadline:        &deadline,
			OrderType:       &orderType,
		})
		td.Require(t).CmpNoError(err)
		td.Cmp(t, json.RawMessage(solver.last(t).body), td.JSON(
			`{"quote_id":42,"quantity_to_close":"10","close_price":"2.475","deadline":1722500000,"order_type":1}`,
		))
	})
}

/*//////////////////////////////////////////////////////////////
                        QUOTE CONFIRMATION
//////////////////////////////////////////////////////////////*/

// confirmAfter answers unconfirmed for the first n status requests.
func confirmAfter(n int32, calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call := calls.Add(1)
		quoteID := -1
		if call > n {
			quoteID = 1234
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"temp_quote_id":-3,"quote_id":null},{"temp_quote_id":-17,"quote_id":%d}]`, quoteID)
	}
}

func fastPoll(attempts int) PollConfig {
	return PollConfig{Attempts: attempts, Interval: time.Millisecond}
}

func TestWaitForQuoteIDReturnsOnNextAttempt(t *testing.T) {
	for _, n := range []int32{0, 1, 4} {
		t.Run(fmt.Sprintf("after %d", n), func(t *testing.T) {
			var calls atomic.Int32
			c, _ := newSolver(t, map[string]http.HandlerFunc{
				"GET " + statusPath: confirmAfter(n, &calls),
			})

			quoteID, err := c.WaitForQuoteID(context.Background(), "tok", subAccount, -17, fastPoll(10))
			td.Require(t).CmpNoError(err)
			td.Cmp(t, quoteID, int64(1234))
			td.Cmp(t, calls.Load(), n+1)
		})
	}
}

func TestWaitForQuoteIDTimeout(t *testing.T) {
	var calls atomic.Int32
	c, _ := newSolver(t, map[string]http.HandlerFunc{
		"GET " + statusPath: confirmAfter(1000, &calls),
	})

	_, err := c.WaitForQuoteID(context.Background(), "tok", subAccount, -17, fastPoll(5))
	td.CmpTrue(t, errors.Is(err, ErrPollTimeout))
	td.Cmp(t, calls.Load(), int32(5))
}

func TestWaitForQuoteIDCountsFailedRequests(t *testing.T) {
	var calls atomic.Int32
	c, solver := newSolver(t, map[string]http.HandlerFunc{
		"GET " + statusPath: func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"quotes":[{"temp_quote_id":"-17","quote_id":"77"}]}`)
		},
	})

	quoteID, err := c.WaitForQuoteID(context.Background(), "tok", subAccount, -17, fastPoll(3))
	td.Require(t).CmpNoError(err)
	td.Cmp(t, quoteID, int64(77))
	td.Cmp(t, solver.count(http.MethodGet, statusPath), 3)
	td.Cmp(t, solver.last(t).header.Get("Authorization"), "Bearer tok")
}

func TestWaitForQuoteIDCancelled(t *testing.T) {
	var calls atomic.Int32
	c, _ := newSolver(t, map[string]http.HandlerFunc{
		"GET " + statusPath: confirmAfter(1000, &calls),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.WaitForQuoteID(ctx, "tok", subAccount, -17, PollConfig{Attempts: 3, Interval: time.Hour})
	td.CmpTrue(t, errors.Is(err, context.Canceled))
}

func TestPollConfigDefaults(t *testing.T) {
	td.Cmp(t, PollConfig{}.withDefaults(), PollConfig{Attempts: 120, Interval: 500 * time.Millisecond})
	td.Cmp(t, PollConfig{Attempts: 3}.withDefaults(), PollConfig{Attempts: 3, Interval: 500 * time.Millisecond})
}

/*//////////////////////////////////////////////////////////////
                            STOP LOSS
//////////////////////////////////////////////////////////////*/

func TestDefaultStopLossPrice(t *testing.T) {
	td.Cmp(t, DefaultStopLossPrice(dec("2.123456789")), "1.698765")
	td.Cmp(t, DefaultStopLossPrice(dec("100")), "80.000000")
}

func TestSetStopLoss(t *testing.T) {
	c, solver := newSolver(t, map[string]http.HandlerFunc{
		"POST /stop_loss": jsonBody(`{"message":"ok"}`),
	})
	signer, _ := c.Signer()

	err := c.SetStopLoss(context.Background(), "tok", StopLossRequest{
		PositionSide:   uint8(types.LONG),
		SymbolID:       4,
		RequestedPrice: "2.5",
		QuoteID:        42,
		SlPrice:        DefaultStopLossPrice(dec("2.5")),
	})
	td.Require(t).CmpNoError(err)

	got := solver.last(t)
	td.Cmp(t, got.header.Get("Authorization"), "Bearer tok")
	td.Cmp(t, json.RawMessage(got.body), td.JSON(`{
		"userAddress": $user,
		"accountAddress": $account,
		"positionSide": 0,
		"symbolId": 4,
		"requestedPrice": "2.5",
		"quoteId": 42,
		"tpPrice": "",
		"slPrice": "2.000000",
		"timestamp": $ts
	}`,
		td.Tag("user", signer.Hex()),
		td.Tag("account", subAccount.Hex()),
		td.Tag("ts", float64(issuedAt.UnixMilli())),
	))
}

/*//////////////////////////////////////////////////////////////
                        CONDITIONAL ORDERS
//////////////////////////////////////////////////////////////*/

func TestDefaultStopPrice(t *testing.T) {
	td.CmpTrue(t, DefaultStopPrice(dec("100"), types.LONG).Equal(dec("80")))
	td.CmpTrue(t, DefaultStopPrice(dec("100"), types.SHORT).Equal(dec("120")))
}

func TestConditionalOrdersSetStopLoss(t *testing.T) {
	solver := &fakeSolver{routes: map[string]http.HandlerFunc{
		"POST /": jsonBody(`{"id":"co-1"}`),
	}}
	server := httptest.NewServer(solver)
	t.Cleanup(server.Close)

	multi := subAccount
	co, err := NewConditionalOrders(ConditionalOrdersConfig{
		BaseURL:      server.URL,
		MultiAccount: multi,
		Whitelist:    `["0x00000000000000000000000000000000000000aa", "0x00000000000000000000000000000000000000bb"]`,
	})
	td.Require(t).CmpNoError(err)

	res, err := co.SetStopLoss(context.Background(), "tok", StopLoss{
		Account:      subAccount,
		QuoteID:      42,
		SymbolID:     4,
		PositionType: types.SHORT,
		OrderType:    types.MARKET,
		Quantity:     dec("10"),
		Price:        dec("3"),
		StopPrice:    DefaultStopPrice(dec("2.5"), types.SHORT),
		Leverage:     10,
	})
	td.Require(t).CmpNoError(err)
	td.Cmp(t, res.Get("id").String(), "co-1")

	got := solver.last(t)
	td.Cmp(t, got.header.Get("App-Name"), "VIBE")
	td.Cmp(t, got.header.Get("Accept"), "application/json")
	td.Cmp(t, got.header.Get("Authorization"), "Bearer tok")
	td.Cmp(t, json.RawMessage(got.body), td.JSON(`{
		"account_address": $account,
		"quote_id": 42,
		"conditional_orders": [{
			"quantity": "10",
			"price": "3",
			"conditional_price": "3",
			"conditional_price_type": "last_close",
			"order_type": 1,
			"position_type": 1,
			"conditional_order_type": "stop_loss",
			"leverage": 10
		}],
		"symbol_id": 4,
		"multi_account_address": $account,
		"hedger_whitelist": [
			"0x00000000000000000000000000000000000000aa",
			"0x00000000000000000000000000000000000000bb"
		]
	}`, td.Tag("account", subAccount.Hex())))
}

func TestConditionalOrdersEmptyWhitelist(t *testing.T) {
	co, err := NewConditionalOrders(ConditionalOrdersConfig{BaseURL: "http://orders", AppName: "Base_Superflow_Production"})
	td.Require(t).CmpNoError(err)

	req := co.Request(StopLoss{Quantity: dec("1"), Price: dec("1"), StopPrice: dec("1")})
	td.Cmp(t, req.HedgerWhitelist, []string{})
	td.Cmp(t, co.appName, "Base_Superflow_Production")

	_, err = NewConditionalOrders(ConditionalOrdersConfig{})
	td.CmpTrue(t, errors.Is(err, errs.ConfigMissing))
}
