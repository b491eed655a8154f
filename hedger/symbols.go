package hedger

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/banky/go-symmio/errs"
	"github.com/banky/go-symmio/types"
	"github.com/tidwall/gjson"
)

const DEFAULT_PRECISION = 6

// SymbolInfo is one market listed by /contract-symbols.
type SymbolInfo struct {
	ID                int64
	Name              string
	Symbol            string
	Asset             string
	PricePrecision    int32
	QuantityPrecision int32
	IsValid           bool
	MaxLeverage       string
	TradingFee        string
	// Raw is the entry as the solver sent it
	Raw string
}

// ContractSymbols lists the markets the solver quotes. Deployments wrap
// the list differently, so the payload may be a bare list, a list under
// one of a few well-known keys, or an object keyed by symbol.
func (c *Client) ContractSymbols(ctx context.Context) ([]SymbolInfo, error) {
	op := "hedger.contract_symbols"
	res, err := c.getJSON(ctx, op, "/contract-symbols")
	if err != nil {
		return nil, err
	}

	entries, ok := symbolEntries(res)
	if !ok {
		return nil, errs.Newf(errs.MalformedResponse, op, "unexpected payload: %.200s", res.Raw)
	}

	symbols := make([]SymbolInfo, 0, len(entries))
	for _, e := range entries {
		if !e.IsObject() {
			continue
		}
		symbols = append(symbols, parseSymbol(e))
	}
	return symbols, nil
}

// SymbolInfo returns the market with the given id.
func (c *Client) SymbolInfo(ctx context.Context, symbolID int64) (SymbolInfo, error) {
	symbols, err := c.ContractSymbols(ctx)
	if err != nil {
		return SymbolInfo{}, err
	}
	for _, s := range symbols {
		if s.ID == symbolID {
			return s, nil
		}
	}
	return SymbolInfo{}, errs.Newf(errs.MalformedResponse, "hedger.contract_symbols", "symbol id %d not found", symbolID)
}

var symbolListKeys = []string{"symbols", "data", "result", "items", "contract_symbols"}

func symbolEntries(res gjson.Result) ([]gjson.Result, bool) {
	if res.IsArray() {
		return res.Array(), true
	}
	if !res.IsObject() {
		return nil, false
	}

	for _, key := range symbolListKeys {
		v := res.Get(key)
		if v.IsArray() {
			return v.Array(), true
		}
		if v.IsObject() {
			for _, nestedKey := range []string{"symbols", "data", "result"} {
				if nested := v.Get(nestedKey); nested.IsArray() && len(nested.Array()) > 0 {
					return nested.Array(), true
				}
			}
		}
	}

	var values []gjson.Result
	allObjects := true
	res.ForEach(func(_, v gjson.Result) bool {
		if !v.IsObject() {
			allObjects = false
			return false
		}
		values = append(values, v)
		return true
	})
	if allObjects && len(values) > 0 {
		return values, true
	}
	return nil, false
}

func parseSymbol(e gjson.Result) SymbolInfo {
	return SymbolInfo{
		ID:                firstInt(e, "symbol_id", "symbolId", "id"),
		Name:              e.Get("name").String(),
		Symbol:            e.Get("symbol").String(),
		Asset:             e.Get("asset").String(),
		PricePrecision:    precision(e.Get("price_precision")),
		QuantityPrecision: precision(e.Get("quantity_precision")),
		IsValid:           e.Get("is_valid").Bool(),
		MaxLeverage:       e.Get("max_leverage").String(),
		TradingFee:        e.Get("trading_fee").String(),
		Raw:               e.Raw,
	}
}

// firstInt returns the first key holding a non-zero integer.
func firstInt(e gjson.Result, keys ...string) int64 {
	for _, key := range keys {
		v := e.Get(key)
		if !v.Exists() {
			continue
		}
		var n types.IntString
		if err := json.Unmarshal([]byte(v.Raw), &n); err == nil && n != 0 {
			return n.Raw()
		}
	}
	return 0
}

func precision(v gjson.Result) int32 {
	if !v.Exists() || v.Type == gjson.Null {
		return DEFAULT_PRECISION
	}
	n, err := strconv.ParseInt(v.String(), 10, 32)
	if err != nil || n < 0 {
		return DEFAULT_PRECISION
	}
	return int32(n)
}
