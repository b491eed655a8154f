package hedger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/banky/go-symmio/errs"
	"github.com/banky/go-symmio/types"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/maxatome/go-testdeep/td"
	"github.com/shopspring/decimal"
)

var (
	subAccount = common.HexToAddress("0x4921a5fC974d5132b4eba7F8697236fc5851a3fA")
	issuedAt   = time.Date(2024, 8, 1, 12, 0, 0, 123_000_000, time.UTC)
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type recorded struct {
	method string
	path   string
	query  string
	header http.Header
	body   []byte
}

// fakeSolver routes requests by "METHOD /path" and records each one.
type fakeSolver struct {
	mu       sync.Mutex
	requests []recorded
	routes   map[string]http.HandlerFunc
}

func (f *fakeSolver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		header: r.Header.Clone(),
		body:   body,
	})
	f.mu.Unlock()

	handler, ok := f.routes[r.Method+" "+r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	handler(w, r)
}

func (f *fakeSolver) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	td.Require(t).Gt(len(f.requests), 0)
	return f.requests[len(f.requests)-1]
}

func (f *fakeSolver) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.method == method && r.path == path {
			n++
		}
	}
	return n
}

func jsonBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}

func newSolver(t *testing.T, routes map[string]http.HandlerFunc) (*Client, *fakeSolver) {
	t.Helper()

	solver := &fakeSolver{routes: routes}
	server := httptest.NewServer(solver)
	t.Cleanup(server.Close)

	key, err := crypto.HexToECDSA(testKeyHex)
	td.Require(t).CmpNoError(err)

	c, err := New(Config{
		BaseURL:        server.URL + "/",
		AccountAddress: subAccount,
		PrivateKey:     key,
	})
	td.Require(t).CmpNoError(err)
	c.now = func() time.Time { return issuedAt }

	return c, solver
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(Config{})
	td.CmpTrue(t, errors.Is(err, errs.ConfigMissing))
	td.Cmp(t, err.Error(), td.Contains("HEDGER_URL"))
}

/*//////////////////////////////////////////////////////////////
                              SIWE
//////////////////////////////////////////////////////////////*/

func baseFields() SIWEFields {
	return SIWEFields{
		Domain:         "localhost",
		Address:        common.HexToAddress("0x9206D9d8F7F1B212A4183827D20De32AF3A23c59"),
		Statement:      "msg: " + subAccount.Hex(),
		URI:            "https://solver.example/login",
		Version:        "1",
		ChainID:        big.NewInt(42161),
		Nonce:          "n0nce",
		IssuedAt:       "2024-08-01T12:00:00.123Z",
		ExpirationTime: "2024-08-01T14:30:00.123Z",
	}
}

func TestBuildSIWEMessage(t *testing.T) {
	want := "localhost wants you to sign in with your Ethereum account:\n" +
		"0x9206D9d8F7F1B212A4183827D20De32AF3A23c59\n\n" +
		"msg: 0x4921a5fC974d5132b4eba7F8697236fc5851a3fA\n\n" +
		"URI: https://solver.example/login\n" +
		"Version: 1\n" +
		"Chain ID: 42161\n" +
		"Nonce: n0nce\n" +
		"Issued At: 2024-08-01T12:00:00.123Z\n" +
		"Expiration Time: 2024-08-01T14:30:00.123Z"

	td.Cmp(t, BuildSIWEMessage(baseFields()), want)
	td.Cmp(t, BuildSIWEMessage(baseFields()), BuildSIWEMessage(baseFields()))
}

func TestBuildSIWEMessageFieldSensitivity(t *testing.T) {
	base := BuildSIWEMessage(baseFields())

	tests := []struct {
		name   string
		mutate func(f *SIWEFields)
	}{
		{"domain", func(f *SIWEFields) { f.Domain = "example.com" }},
		{"address", func(f *SIWEFields) { f.Address = subAccount }},
		{"statement", func(f *SIWEFields) { f.Statement = "msg: other" }},
		{"uri", func(f *SIWEFields) { f.URI = "https://other/login" }},
		{"version", func(f *SIWEFields) { f.Version = "2" }},
		{"chain id", func(f *SIWEFields) { f.ChainID = big.NewInt(137) }},
		{"nonce", func(f *SIWEFields) { f.Nonce = "other" }},
		{"issued at", func(f *SIWEFields) { f.IssuedAt = "2024-08-01T12:00:01.123Z" }},
		{"expiration", func(f *SIWEFields) { f.ExpirationTime = "2024-08-01T14:30:01.123Z" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := baseFields()
			tt.mutate(&f)
			td.Cmp(t, BuildSIWEMessage(f), td.Not(base))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	td.Cmp(t, FormatTimestamp(time.Date(2024, 8, 1, 14, 0, 0, 5_000_000, loc)), "2024-08-01T12:00:00.005Z")
}

func TestLogin(t *testing.T) {
	c, solver := newSolver(t, map[string]http.HandlerFunc{
		"GET /nonce/" + subAccount.Hex(): jsonBody(`{"nonce":"abc123"}`),
		"POST /login":                    jsonBody(`{"access_token":"tok","token_type":"bearer"}`),
	})

	token, err := c.Login(context.Background())
	td.Require(t).CmpNoError(err)
	td.Cmp(t, token, "tok")

	req := solver.last(t)
	td.Cmp(t, req.header.Get("Origin"), "http://localhost:3000")
	td.Cmp(t, req.header.Get("Referer"), "http://localhost:3000")

	var body loginRequest
	td.Require(t).CmpNoError(json.Unmarshal(req.body, &body))
	td.Cmp(t, body.AccountAddress, subAccount.Hex())
	td.Cmp(t, body.Nonce, "abc123")
	td.Cmp(t, body.IssuedAt, "2024-08-01T12:00:00.123Z")
	td.Cmp(t, body.ExpirationTime, "2024-08-01T14:30:00.123Z")

	signer, ok := c.Signer()
	td.Require(t).True(ok)

	msg := BuildSIWEMessage(c.LoginMessage(signer, "abc123", issuedAt))
	td.Cmp(t, msg, td.Contains("URI: "+c.baseURL+"/login\n"))

	sig, err := hexutil.Decode(body.Signature)
	td.Require(t).CmpNoError(err)
	td.Require(t).Len(sig, crypto.SignatureLength)
	td.Cmp(t, sig[crypto.RecoveryIDOffset], td.Between(byte(27), byte(28)))

	sig[crypto.RecoveryIDOffset] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(msg)), sig)
	td.Require(t).CmpNoError(err)
	td.Cmp(t, crypto.PubkeyToAddress(*pub), signer)
}

func TestLoginErrors(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		c, _ := newSolver(t, map[string]http.HandlerFunc{
			"GET /nonce/" + subAccount.Hex(): jsonBody(`{"nonce":"abc123"}`),
			"POST /login":                    jsonBody(`{"detail":"ok"}`),
		})
		_, err := c.Login(context.Background())
		td.CmpTrue(t, errors.Is(err, errs.MalformedResponse))
	})

	t.Run("missing nonce", func(t *testing.T) {
		c, _ := newSolver(t, map[string]http.HandlerFunc{
			"GET /nonce/" + subAccount.Hex(): jsonBody(`{}`),
		})
		_, err := c.Login(context.Background())
		td.CmpTrue(t, errors.Is(err, errs.MalformedResponse))
	})

	t.Run("no private key", func(t *testing.T) {
		c, err := New(Config{BaseURL: "http://solver", AccountAddress: subAccount})
		td.Require(t).CmpNoError(err)
		_, err = c.Login(context.Background())
		td.CmpTrue(t, errors.Is(err, errs.ConfigMissing))
	})
}

/*//////////////////////////////////////////////////////////////
                          LOCKED PARAMS
//////////////////////////////////////////////////////////////*/

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLockedParams(t *testing.T) {
	c, solver := newSolver(t, map[string]http.HandlerFunc{
		"GET /get_locked_params/XRPUSDT": jsonBody(
			`{"cva":"1.5","lf":"0.5","leverage":"10","partyAmm":"18","partyBmm":"6","message":"Success"}`,
		),
	})

	params, err := c.LockedParams(context.Background(), "XRPUSDT", dec("10"))
	td.Require(t).CmpNoError(err)

	td.CmpTrue(t, params.Cva.Equal(dec("1.5")))
	td.CmpTrue(t, params.Lf.Equal(dec("0.5")))
	td.CmpTrue(t, params.PartyAmm.Equal(dec("18")))
	td.CmpTrue(t, params.PartyBmm.Equal(dec("6")))
	td.CmpTrue(t, params.Leverage.Equal(dec("10")))
	td.Cmp(t, solver.last(t).query, "leverage=10")
}

func TestLockedParamsRejected(t *testing.T) {
	c, _ := newSolver(t, map[string]http.HandlerFunc{
		"GET /get_locked_params/BTCUSDT": jsonBody(`{"message":"Symbol not found"}`),
		"GET /get_locked_params/ETHUSDT": jsonBody(`{"message":"Success","cva":"x","lf":"1","partyAmm":"1","partyBmm":"1"}`),
		"GET /get_locked_params/SOLUSDT": jsonBody(`{"message":"Stale","cva":"1","lf":"1","partyAmm":"1","partyBmm":"1"}`),
		"GET /get_locked_params/ADAUSDT": jsonBody(`{"cva":"1","lf":"1","partyAmm":"1","partyBmm":"1"}`),
	})

	for _, market := range []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "ADAUSDT"} {
		_, err := c.LockedParams(context.Background(), market, dec("5"))
		td.CmpTrue(t, errors.Is(err, errs.MalformedResponse), market)
	}
}

func TestNormalizedLockedValue(t *testing.T) {
	td.CmpTrue(t, NormalizedLockedValue(dec("1000"), dec("10"), dec("10"), true).Equal(dec("10")))
	td.CmpTrue(t, NormalizedLockedValue(dec("1000"), dec("10"), dec("10"), false).Equal(dec("100")))
}

// marginEpsilon bounds the rounding of the quotients behind Margins.
var marginEpsilon = dec("1e-14")

func cmpClose(t *testing.T, got, want decimal.Decimal, name string) {
	t.Helper()
	td.CmpTrue(t, got.Sub(want).Abs().LessThanOrEqual(marginEpsilon), "%s: %s vs %s", name, got, want)
}

func TestMarginsLinearInNotional(t *testing.T) {
	for _, leverage := range []string{"5", "3", "7"} {
		params := LockedParams{Cva: dec("3"), Lf: dec("1"), PartyAmm: dec("25"), PartyBmm: dec("8"), Leverage: dec(leverage)}

		for _, k := range []string{"2", "3", "10", "0.5"} {
			t.Run("leverage "+leverage+" x"+k, func(t *testing.T) {
				one := params.Margins(dec("1234.5"))
				scaled := params.Margins(dec("1234.5").Mul(dec(k)))

				cmpClose(t, scaled.Cva, one.Cva.Mul(dec(k)), "cva")
				cmpClose(t, scaled.Lf, one.Lf.Mul(dec(k)), "lf")
				cmpClose(t, scaled.PartyAmm, one.PartyAmm.Mul(dec(k)), "partyAmm")
				cmpClose(t, scaled.PartyBmm, one.PartyBmm.Mul(dec(k)), "partyBmm")
			})
		}
	}

	t.Run("terminating division is exact", func(t *testing.T) {
		params := LockedParams{Cva: dec("3"), Lf: dec("1"), PartyAmm: dec("25"), PartyBmm: dec("8"), Leverage: dec("5")}
		one := params.Margins(dec("1234.5"))
		scaled := params.Margins(dec("2469"))
		td.CmpTrue(t, scaled.Cva.Equal(one.Cva.Mul(dec("2"))))
		td.CmpTrue(t, scaled.PartyAmm.Equal(one.PartyAmm.Mul(dec("2"))))
	})
}

func TestMarginsLeverageRatio(t *testing.T) {
	for _, pair := range [][2]string{{"5", "20"}, {"3", "20"}, {"3", "7"}} {
		t.Run(pair[0]+"/"+pair[1], func(t *testing.T) {
			lowLev, highLev := dec(pair[0]), dec(pair[1])
			low := LockedParams{Cva: dec("10"), Lf: dec("4"), PartyAmm: dec("20"), PartyBmm: dec("8"), Leverage: lowLev}
			high := low
			high.Leverage = highLev

			a := low.Margins(dec("1000"))
			b := high.Margins(dec("1000"))

			// margin*leverage is the same at every leverage
			cmpClose(t, a.Cva.Mul(lowLev), b.Cva.Mul(highLev), "cva")
			cmpClose(t, a.Lf.Mul(lowLev), b.Lf.Mul(highLev), "lf")
			cmpClose(t, a.PartyAmm.Mul(lowLev), b.PartyAmm.Mul(highLev), "partyAmm")
			// partyBmm ignores leverage
			td.CmpTrue(t, a.PartyBmm.Equal(b.PartyBmm))
		})
	}

	t.Run("rounded to division precision", func(t *testing.T) {
		params := LockedParams{Cva: dec("2"), Leverage: dec("3")}
		got := params.Margins(dec("1"))
		td.Cmp(t, got.Cva.StringFixed(12), "0.006666666667")
		td.CmpLte(t, got.Cva.Exponent(), int32(0))
		td.CmpGte(t, got.Cva.Exponent(), -int32(decimal.DivisionPrecision))
	})
}

func TestMarginsWei(t *testing.T) {
	params := LockedParams{Cva: dec("10"), Lf: dec("2"), PartyAmm: dec("30"), PartyBmm: dec("5"), Leverage: dec("10")}

	// quantity 2 at price 3, both in wei
	notionalWei := dec("2e18").Mul(dec("3e18"))
	got := params.MarginsWei(notionalWei)

	td.Cmp(t, got.Cva.String(), "60000000000000000")
	td.Cmp(t, got.Lf.String(), "12000000000000000")
	td.Cmp(t, got.PartyAmm.String(), "180000000000000000")
	td.Cmp(t, got.PartyBmm.String(), "300000000000000000")
}

func TestSlippagePrice(t *testing.T) {
	tests := []struct {
		name     string
		position types.PositionType
		closing  bool
		want     string
	}{
		{"long open", types.LONG, false, "101"},
		{"short open", types.SHORT, false, "99"},
		{"long close", types.LONG, true, "99"},
		{"short close", types.SHORT, true, "101"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SlippagePrice(dec("100"), dec("0.01"), tt.position, tt.closing)
			td.CmpTrue(t, got.Equal(dec(tt.want)), "got %s", got)
		})
	}
}

func TestFormatDecimal(t *testing.T) {
	td.Cmp(t, FormatDecimal(dec("1.23456789"), 6), "1.234567")
	td.Cmp(t, FormatDecimal(dec("-1.23456789"), 2), "-1.23")
	td.Cmp(t, FormatDecimal(dec("5"), 3), "5.000")
}

/*//////////////////////////////////////////////////////////////
                            SYMBOLS
//////////////////////////////////////////////////////////////*/

func TestContractSymbolsPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"list", `[{"symbol_id":4,"name":"XRPUSDT","price_precision":4,"quantity_precision":1}]`},
		{"symbols key", `{"count":1,"symbols":[{"symbol_id":4,"name":"XRPUSDT","price_precision":4,"quantity_precision":1}]}`},
		{"nested", `{"data":{"symbols":[{"symbolId":"4","name":"XRPUSDT","price_precision":"4","quantity_precision":1}]}}`},
		{"keyed object", `{"XRPUSDT":{"id":4,"name":"XRPUSDT","price_precision":4,"quantity_precision":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newSolver(t, map[string]http.HandlerFunc{
				"GET /contract-symbols": jsonBody(tt.body),
			})

			symbols, err := c.ContractSymbols(context.Background())
			td.Require(t).CmpNoError(err)
			td.Require(t).Len(symbols, 1)

			got := symbols[0]
			td.Cmp(t, got.Raw, td.Contains(`"XRPUSDT"`))
			got.Raw = ""
			td.Cmp(t, got, SymbolInfo{
				ID:                4,
				Name:              "XRPUSDT",
				PricePrecision:    4,
				QuantityPrecision: 1,
			})
		})
	}
}

func TestSymbolInfoDefaults(t *testing.T) {
	c, _ := newSolver(t, map[string]http.HandlerFunc{
		"GET /contract-symbols": jsonBody(`{"symbols":[{"symbol_id":1,"name":"BTCUSDT"},{"symbol_id":2,"name":"ETHUSDT","price_precision":null}]}`),
	})

	s, err := c.SymbolInfo(context.Background(), 2)
	td.Require(t).CmpNoError(err)
	td.Cmp(t, s.Name, "ETHUSDT")
	td.Cmp(t, s.PricePrecision, int32(DEFAULT_PRECISION))
	td.Cmp(t, s.QuantityPrecision, int32(DEFAULT_PRECISION))

	_, err = c.SymbolInfo(context.Background(), 99)
	td.CmpTrue(t, errors.Is(err, errs.MalformedResponse))
}

func TestContractSymbolsMalformed(t *testing.T) {
	c, _ := newSolver(t, map[string]http.HandlerFunc{
		"GET /contract-symbols": jsonBody(`"maintenance"`),
	})

	_, err := c.ContractSymbols(context.Background())
	td.CmpTrue(t, errors.Is(err, errs.MalformedResponse))
	td.Cmp(t, err.Error(), td.Contains("unexpected payload"))
}
