package muon

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/banky/go-symmio/errs"
	"github.com/banky/go-symmio/internal/utils"
	"github.com/banky/go-symmio/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tidwall/gjson"
)

// Response is a successful gateway answer. The formatters below turn it
// into the attestation structs.
type Response struct {
	Method string
	body   gjson.Result
}

func (r *Response) Raw() string {
	return r.body.Raw
}

// Result returns a field of the signed payload (result.data.result).
func (r *Response) Result(field string) gjson.Result {
	return r.body.Get(resultPath(field))
}

const (
	pathReqID     = "result.reqId"
	pathTimestamp = "result.data.timestamp"
	pathNodeSig   = "result.nodeSignature"
	pathSignature = "result.signatures.0.signature"
	pathOwner     = "result.signatures.0.owner"
	pathNonce     = "result.data.init.nonceAddress"
)

// reader walks a response and keeps the first conversion failure.
type reader struct {
	op  string
	res gjson.Result
	err error
}

func (r *Response) reader() *reader {
	return &reader{op: "muon." + r.Method, res: r.body}
}

func (rd *reader) fail(format string, args ...any) {
	if rd.err == nil {
		rd.err = errs.Newf(errs.MalformedResponse, rd.op, format, args...)
	}
}

func (rd *reader) bytes(path string) []byte {
	v := rd.res.Get(path)
	if !v.Exists() || v.Type != gjson.String {
		rd.fail("missing %s", path)
		return nil
	}
	b, err := utils.HexToBytes(v.Str)
	if err != nil {
		rd.fail("%s: %v", path, err)
		return nil
	}
	return b
}

func parseInt(v gjson.Result) (*big.Int, error) {
	switch v.Type {
	case gjson.Number:
		return utils.ParseBigInt(v.Raw)
	case gjson.String:
		return utils.ParseBigInt(v.Str)
	default:
		return nil, fmt.Errorf("unexpected %s value %s", v.Type, v.Raw)
	}
}

// int reads a required integer.
func (rd *reader) int(path string) *big.Int {
	v := rd.res.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		rd.fail("missing %s", path)
		return new(big.Int)
	}
	n, err := parseInt(v)
	if err != nil {
		rd.fail("%s: %v", path, err)
		return new(big.Int)
	}
	return n
}

// optInt reads an integer that defaults to zero when absent or empty.
func (rd *reader) optInt(path string) *big.Int {
	v := rd.res.Get(path)
	if !v.Exists() || v.Type == gjson.Null || (v.Type == gjson.String && v.Str == "") {
		return new(big.Int)
	}
	return rd.int(path)
}

func (rd *reader) ints(path string) []*big.Int {
	v := rd.res.Get(path)
	if !v.Exists() {
		return []*big.Int{}
	}
	if !v.IsArray() {
		rd.fail("%s: expected a list", path)
		return []*big.Int{}
	}

	items := v.Array()
	out := make([]*big.Int, len(items))
	for i, item := range items {
		n, err := parseInt(item)
		if err != nil {
			rd.fail("%s.%d: %v", path, i, err)
			n = new(big.Int)
		}
		out[i] = n
	}
	return out
}

func (rd *reader) address(path string) common.Address {
	v := rd.res.Get(path)
	if !v.Exists() || !common.IsHexAddress(v.Str) {
		rd.fail("missing or invalid address %s", path)
		return common.Address{}
	}
	return common.HexToAddress(v.Str)
}

// signature reads the Schnorr signature scalar. String values are hex with
// or without a 0x prefix; plain JSON numbers are decimal.
func (rd *reader) signature(path string) *big.Int {
	v := rd.res.Get(path)
	switch v.Type {
	case gjson.Number:
		return rd.int(path)
	case gjson.String:
		digits := strings.TrimPrefix(strings.TrimPrefix(v.Str, "0x"), "0X")
		n, ok := new(big.Int).SetString(digits, 16)
		if !ok {
			rd.fail("%s: invalid hex %q", path, v.Str)
			return new(big.Int)
		}
		return n
	default:
		rd.fail("missing %s", path)
		return new(big.Int)
	}
}

func (rd *reader) schnorr() types.SchnorrSign {
	return types.SchnorrSign{
		Signature: rd.signature(pathSignature),
		Owner:     rd.address(pathOwner),
		Nonce:     rd.address(pathNonce),
	}
}

func resultPath(field string) string {
	return "result.data.result." + field
}

/*//////////////////////////////////////////////////////////////
                           FORMATTERS
//////////////////////////////////////////////////////////////*/

// SingleUpnlSig formats a single-party uPnL attestation. field names the
// uPnL key in the payload: "uPnl" for uPnl_B and "uPnlA" for uPnl_A.
func (r *Response) SingleUpnlSig(field string) (types.SingleUpnlSig, error) {
	rd := r.reader()
	sig := types.SingleUpnlSig{
		ReqID:            rd.bytes(pathReqID),
		Timestamp:        rd.optInt(pathTimestamp),
		Upnl:             rd.optInt(resultPath(field)),
		GatewaySignature: rd.bytes(pathNodeSig),
		Sigs:             rd.schnorr(),
	}
	return sig, rd.err
}

func (r *Response) SingleUpnlAndPriceSig() (types.SingleUpnlAndPriceSig, error) {
	rd := r.reader()
	sig := types.SingleUpnlAndPriceSig{
		ReqID:            rd.bytes(pathReqID),
		Timestamp:        rd.optInt(pathTimestamp),
		Upnl:             rd.optInt(resultPath("uPnl")),
		Price:            rd.optInt(resultPath("price")),
		GatewaySignature: rd.bytes(pathNodeSig),
		Sigs:             rd.schnorr(),
	}
	return sig, rd.err
}

func (r *Response) PairUpnlSig() (types.PairUpnlSig, error) {
	rd := r.reader()
	sig := types.PairUpnlSig{
		ReqID:            rd.bytes(pathReqID),
		Timestamp:        rd.optInt(pathTimestamp),
		UpnlPartyA:       rd.optInt(resultPath("uPnlA")),
		UpnlPartyB:       rd.optInt(resultPath("uPnlB")),
		GatewaySignature: rd.bytes(pathNodeSig),
		Sigs:             rd.schnorr(),
	}
	return sig, rd.err
}

func (r *Response) PairUpnlAndPriceSig() (types.PairUpnlAndPriceSig, error) {
	rd := r.reader()
	sig := types.PairUpnlAndPriceSig{
		ReqID:            rd.bytes(pathReqID),
		Timestamp:        rd.optInt(pathTimestamp),
		UpnlPartyA:       rd.optInt(resultPath("uPnlA")),
		UpnlPartyB:       rd.optInt(resultPath("uPnlB")),
		Price:            rd.optInt(resultPath("price")),
		GatewaySignature: rd.bytes(pathNodeSig),
		Sigs:             rd.schnorr(),
	}
	return sig, rd.err
}

// HighLowPriceSig formats a priceRange attestation. Unlike the uPnL shapes
// the price fields are required.
func (r *Response) HighLowPriceSig() (types.HighLowPriceSig, error) {
	rd := r.reader()
	sig := types.HighLowPriceSig{
		ReqID:            rd.bytes(pathReqID),
		Timestamp:        rd.int(pathTimestamp),
		SymbolID:         rd.int(resultPath("symbolId")),
		Highest:          rd.int(resultPath("highest")),
		Lowest:           rd.int(resultPath("lowest")),
		AveragePrice:     rd.int(resultPath("mean")),
		StartTime:        rd.int(resultPath("startTime")),
		EndTime:          rd.int(resultPath("endTime")),
		UpnlPartyB:       rd.optInt(resultPath("uPnlB")),
		UpnlPartyA:       rd.optInt(resultPath("uPnlA")),
		CurrentPrice:     rd.int(resultPath("price")),
		GatewaySignature: rd.bytes(pathNodeSig),
		Sigs:             rd.schnorr(),
	}
	return sig, rd.err
}

// PricesA returns the per-quote prices a priceRange answer carries, or an
// empty list.
func (r *Response) PricesA() ([]*big.Int, error) {
	rd := r.reader()
	prices := rd.ints(resultPath("pricesA"))
	return prices, rd.err
}

// SettlementSig formats a settle_upnl attestation. Entries of
// quoteSettlementData are [quoteId, currentPrice, partyBUpnlIndex?]; short
// entries are skipped and a missing index defaults to zero.
func (r *Response) SettlementSig() (types.SettlementSig, error) {
	rd := r.reader()

	var quotes []types.QuoteSettlementData
	for i, entry := range r.Result("quoteSettlementData").Array() {
		fields := entry.Array()
		if !entry.IsArray() || len(fields) < 2 {
			continue
		}

		quoteID, err := parseInt(fields[0])
		if err != nil {
			rd.fail("quoteSettlementData.%d.0: %v", i, err)
			continue
		}
		price, err := parseInt(fields[1])
		if err != nil {
			rd.fail("quoteSettlementData.%d.1: %v", i, err)
			continue
		}

		var index uint8
		if len(fields) > 2 {
			n, err := parseInt(fields[2])
			if err != nil || !n.IsUint64() || n.Uint64() > 255 {
				rd.fail("quoteSettlementData.%d.2: invalid partyB index %s", i, fields[2].Raw)
				continue
			}
			index = uint8(n.Uint64())
		}

		quotes = append(quotes, types.QuoteSettlementData{
			QuoteID:         quoteID,
			CurrentPrice:    price,
			PartyBUpnlIndex: index,
		})
	}
	if quotes == nil {
		quotes = []types.QuoteSettlementData{}
	}

	sig := types.SettlementSig{
		ReqID:                 rd.bytes(pathReqID),
		Timestamp:             rd.int(pathTimestamp),
		QuotesSettlementsData: quotes,
		UpnlPartyBs:           rd.ints(resultPath("upnlPartyBs")),
		UpnlPartyA:            rd.optInt(resultPath("uPnlA")),
		GatewaySignature:      rd.bytes(pathNodeSig),
		Sigs:                  rd.schnorr(),
	}
	return sig, rd.err
}

// OptionsUpnlSig formats the options deployment's uPnL attestation. Older
// gateways report partyUpnl as uPnl and place the timestamp inside the
// result, so both layouts are accepted.
func (r *Response) OptionsUpnlSig() (types.OptionsUpnlSig, error) {
	rd := r.reader()

	partyUpnl := resultPath("partyUpnl")
	if !rd.res.Get(partyUpnl).Exists() {
		partyUpnl = resultPath("uPnl")
	}

	timestamp := pathTimestamp
	if !rd.res.Get(timestamp).Exists() {
		timestamp = resultPath("timestamp")
	}

	gateway := pathNodeSig
	if !rd.res.Get(gateway).Exists() {
		gateway = "result.gatewaySignature"
	}

	sig := types.OptionsUpnlSig{
		ReqID:            rd.bytes(pathReqID),
		PartyUpnl:        rd.optInt(partyUpnl),
		CounterPartyUpnl: rd.optInt(resultPath("counterPartyUpnl")),
		CollateralPrice:  rd.optInt(resultPath("collateralPrice")),
		Timestamp:        rd.optInt(timestamp),
		GatewaySignature: rd.bytes(gateway),
		Sigs:             rd.schnorr(),
	}
	return sig, rd.err
}
