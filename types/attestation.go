package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vmihailenco/msgpack/v5"
)

// SchnorrSign is the oracle network's threshold signature over an
// attestation.
type SchnorrSign struct {
	Signature *big.Int       `abi:"signature"`
	Owner     common.Address `abi:"owner"`
	Nonce     common.Address `abi:"nonce"`
}

// SingleUpnlSig attests the unrealized PnL of one party.
type SingleUpnlSig struct {
	ReqID            []byte      `abi:"reqId"`
	Timestamp        *big.Int    `abi:"timestamp"`
	Upnl             *big.Int    `abi:"upnl"`
	GatewaySignature []byte      `abi:"gatewaySignature"`
	Sigs             SchnorrSign `abi:"sigs"`
}

// SingleUpnlAndPriceSig attests one party's uPnL together with a symbol
// price.
type SingleUpnlAndPriceSig struct {
	ReqID            []byte      `abi:"reqId"`
	Timestamp        *big.Int    `abi:"timestamp"`
	Upnl             *big.Int    `abi:"upnl"`
	Price            *big.Int    `abi:"price"`
	GatewaySignature []byte      `abi:"gatewaySignature"`
	Sigs             SchnorrSign `abi:"sigs"`
}

type PairUpnlSig struct {
	ReqID            []byte      `abi:"reqId"`
	Timestamp        *big.Int    `abi:"timestamp"`
	UpnlPartyA       *big.Int    `abi:"upnlPartyA"`
	UpnlPartyB       *big.Int    `abi:"upnlPartyB"`
	GatewaySignature []byte      `abi:"gatewaySignature"`
	Sigs             SchnorrSign `abi:"sigs"`
}

type PairUpnlAndPriceSig struct {
	ReqID            []byte      `abi:"reqId"`
	Timestamp        *big.Int    `abi:"timestamp"`
	UpnlPartyA       *big.Int    `abi:"upnlPartyA"`
	UpnlPartyB       *big.Int    `abi:"upnlPartyB"`
	Price            *big.Int    `abi:"price"`
	GatewaySignature []byte      `abi:"gatewaySignature"`
	Sigs             SchnorrSign `abi:"sigs"`
}

// HighLowPriceSig attests the price range of a symbol over a time window.
// It backs force-close requests.
type HighLowPriceSig struct {
	ReqID            []byte      `abi:"reqId"`
	Timestamp        *big.Int    `abi:"timestamp"`
	SymbolID         *big.Int    `abi:"symbolId"`
	Highest          *big.Int    `abi:"highest"`
	Lowest           *big.Int    `abi:"lowest"`
	AveragePrice     *big.Int    `abi:"averagePrice"`
	StartTime        *big.Int    `abi:"startTime"`
	EndTime          *big.Int    `abi:"endTime"`
	UpnlPartyB       *big.Int    `abi:"upnlPartyB"`
	UpnlPartyA       *big.Int    `abi:"upnlPartyA"`
	CurrentPrice     *big.Int    `abi:"currentPrice"`
	GatewaySignature []byte      `abi:"gatewaySignature"`
	Sigs             SchnorrSign `abi:"sigs"`
}

type QuoteSettlementData struct {
	QuoteID         *big.Int `abi:"quoteId"`
	CurrentPrice    *big.Int `abi:"currentPrice"`
	PartyBUpnlIndex uint8    `abi:"partyBUpnlIndex"`
}

// SettlementSig attests the settlement prices of several quotes of one
// PartyA at once.
type SettlementSig struct {
	ReqID                 []byte                `abi:"reqId"`
	Timestamp             *big.Int              `abi:"timestamp"`
	QuotesSettlementsData []QuoteSettlementData `abi:"quotesSettlementsData"`
	UpnlPartyBs           []*big.Int            `abi:"upnlPartyBs"`
	UpnlPartyA            *big.Int              `abi:"upnlPartyA"`
	GatewaySignature      []byte                `abi:"gatewaySignature"`
	Sigs                  SchnorrSign           `abi:"sigs"`
}

// UpdatedPrices returns the settlement price of every quote, in order.
func (s SettlementSig) UpdatedPrices() []*big.Int {
	prices := make([]*big.Int, len(s.QuotesSettlementsData))
	for i, q := range s.QuotesSettlementsData {
		prices[i] = q.CurrentPrice
	}
	return prices
}

// OptionsUpnlSig is the uPnL attestation shape used by the options
// deployment.
type OptionsUpnlSig struct {
	ReqID            []byte      `abi:"reqId"`
	PartyUpnl        *big.Int    `abi:"partyUpnl"`
	CounterPartyUpnl *big.Int    `abi:"counterPartyUpnl"`
	CollateralPrice  *big.Int    `abi:"collateralPrice"`
	Timestamp        *big.Int    `abi:"timestamp"`
	GatewaySignature []byte      `abi:"gatewaySignature"`
	Sigs             SchnorrSign `abi:"sigs"`
}

/*//////////////////////////////////////////////////////////////
                          FINGERPRINT
//////////////////////////////////////////////////////////////*/

// Attestation is one of the oracle signature types of this package. Its
// encoded form holds strings and small integers only.
type Attestation interface {
	msgpack.CustomEncoder
	values() []any
}

// Fingerprint hashes the msgpack encoding of an attestation. Two
// attestations share a fingerprint exactly when every field matches.
func Fingerprint(a Attestation) common.Hash {
	// Marshal fails only on unsupported values or a failing writer, and
	// values() yields strings, uint8s and slices of those.
	b, _ := msgpack.Marshal(a.values())
	return crypto.Keccak256Hash(b)
}

func intString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

func (s SchnorrSign) fields() []any {
	return []any{intString(s.Signature), s.Owner.Hex(), s.Nonce.Hex()}
}

var _ Attestation = (*SingleUpnlSig)(nil)

func (s *SingleUpnlSig) values() []any {
	return []any{
		"SingleUpnlSig",
		hexutil.Encode(s.ReqID),
		intString(s.Timestamp),
		intString(s.Upnl),
		hexutil.Encode(s.GatewaySignature),
		s.Sigs.fields(),
	}
}

func (s *SingleUpnlSig) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(s.values())
}

var _ Attestation = (*SingleUpnlAndPriceSig)(nil)

func (s *SingleUpnlAndPriceSig) values() []any {
	return []any{
		"SingleUpnlAndPriceSig",
		hexutil.Encode(s.ReqID),
		intString(s.Timestamp),
		intString(s.Upnl),
		intString(s.Price),
		hexutil.Encode(s.GatewaySignature),
		s.Sigs.fields(),
	}
}

func (s *SingleUpnlAndPriceSig) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(s.values())
}

var _ Attestation = (*PairUpnlSig)(nil)

func (s *PairUpnlSig) values() []any {
	return []any{
		"PairUpnlSig",
		hexutil.Encode(s.ReqID),
		intString(s.Timestamp),
		intString(s.UpnlPartyA),
		intString(s.UpnlPartyB),
		hexutil.Encode(s.GatewaySignature),
		s.Sigs.fields(),
	}
}

func (s *PairUpnlSig) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(s.values())
}

var _ Attestation = (*PairUpnlAndPriceSig)(nil)

func (s *PairUpnlAndPriceSig) values() []any {
	return []any{
		"PairUpnlAndPriceSig",
		hexutil.Encode(s.ReqID),
		intString(s.Timestamp),
		intString(s.UpnlPartyA),
		intString(s.UpnlPartyB),
		intString(s.Price),
		hexutil.Encode(s.GatewaySignature),
		s.Sigs.fields(),
	}
}

func (s *PairUpnlAndPriceSig) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(s.values())
}

var _ Attestation = (*HighLowPriceSig)(nil)

func (s *HighLowPriceSig) values() []any {
	return []any{
		"HighLowPriceSig",
		hexutil.Encode(s.ReqID),
		intString(s.Timestamp),
		intString(s.SymbolID),
		intString(s.Highest),
		intString(s.Lowest),
		intString(s.AveragePrice),
		intString(s.StartTime),
		intString(s.EndTime),
		intString(s.UpnlPartyB),
		intString(s.UpnlPartyA),
		intString(s.CurrentPrice),
		hexutil.Encode(s.GatewaySignature),
		s.Sigs.fields(),
	}
}

func (s *HighLowPriceSig) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(s.values())
}

var _ Attestation = (*SettlementSig)(nil)

func (s *SettlementSig) values() []any {
	quotes := make([]any, len(s.QuotesSettlementsData))
	for i, q := range s.QuotesSettlementsData {
		quotes[i] = []any{intString(q.QuoteID), intString(q.CurrentPrice), q.PartyBUpnlIndex}
	}
	upnlBs := make([]string, len(s.UpnlPartyBs))
	for i, u := range s.UpnlPartyBs {
		upnlBs[i] = intString(u)
	}

	return []any{
		"SettlementSig",
		hexutil.Encode(s.ReqID),
		intString(s.Timestamp),
		quotes,
		upnlBs,
		intString(s.UpnlPartyA),
		hexutil.Encode(s.GatewaySignature),
		s.Sigs.fields(),
	}
}

func (s *SettlementSig) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(s.values())
}

var _ Attestation = (*OptionsUpnlSig)(nil)

func (s *OptionsUpnlSig) values() []any {
	return []any{
		"OptionsUpnlSig",
		hexutil.Encode(s.ReqID),
		intString(s.PartyUpnl),
		intString(s.CounterPartyUpnl),
		intString(s.CollateralPrice),
		intString(s.Timestamp),
		hexutil.Encode(s.GatewaySignature),
		s.Sigs.fields(),
	}
}

func (s *OptionsUpnlSig) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(s.values())
}
