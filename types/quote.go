package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type PositionType uint8

const (
	LONG PositionType = iota
	SHORT
)

func (p PositionType) String() string {
	switch p {
	case LONG:
		return "LONG"
	case SHORT:
		return "SHORT"
	default:
		return fmt.Sprintf("PositionType(%d)", uint8(p))
	}
}

// ParsePositionType accepts 0/1 or long/short in any case.
func ParsePositionType(s string) (PositionType, error) {
	switch s {
	case "0", "long", "LONG", "Long":
		return LONG, nil
	case "1", "short", "SHORT", "Short":
		return SHORT, nil
	}
	return 0, fmt.Errorf("invalid position type %q (want 0=long or 1=short)", s)
}

type OrderType uint8

const (
	LIMIT OrderType = iota
	MARKET
)

func (o OrderType) String() string {
	switch o {
	case LIMIT:
		return "LIMIT"
	case MARKET:
		return "MARKET"
	default:
		return fmt.Sprintf("OrderType(%d)", uint8(o))
	}
}

type QuoteStatus uint8

const (
	PENDING QuoteStatus = iota
	LOCKED
	CANCEL_PENDING
	CANCELED
	OPENED
	CLOSE_PENDING
	CANCEL_CLOSE_PENDING
	CLOSED
	LIQUIDATED
	EXPIRED
	LIQUIDATED_PENDING
)

var quoteStatusNames = [...]string{
	"PENDING",
	"LOCKED",
	"CANCEL_PENDING",
	"CANCELED",
	"OPENED",
	"CLOSE_PENDING",
	"CANCEL_CLOSE_PENDING",
	"CLOSED",
	"LIQUIDATED",
	"EXPIRED",
	"LIQUIDATED_PENDING",
}

func (s QuoteStatus) String() string {
	if int(s) < len(quoteStatusNames) {
		return quoteStatusNames[s]
	}
	return fmt.Sprintf("QuoteStatus(%d)", uint8(s))
}

// ===== Contract View Types =====
//
// Field order mirrors the contract structs exactly; abi.ConvertType copies
// decoded tuples into these positionally.

type LockedValues struct {
	Cva      *big.Int
	Lf       *big.Int
	PartyAmm *big.Int
	PartyBmm *big.Int
}

// Quote is the decoded result of getQuote.
type Quote struct {
	Id                          *big.Int
	PartyBsWhiteList            []common.Address
	SymbolId                    *big.Int
	PositionType                uint8
	OrderType                   uint8
	OpenedPrice                 *big.Int
	InitialOpenedPrice          *big.Int
	RequestedOpenPrice          *big.Int
	MarketPrice                 *big.Int
	Quantity                    *big.Int
	ClosedAmount                *big.Int
	InitialLockedValues         LockedValues
	LockedValues                LockedValues
	MaxFundingRate              *big.Int
	PartyA                      common.Address
	PartyB                      common.Address
	QuoteStatus                 uint8
	AvgClosedPrice              *big.Int
	RequestedClosePrice         *big.Int
	QuantityToClose             *big.Int
	ParentId                    *big.Int
	CreateTimestamp             *big.Int
	StatusModifyTimestamp       *big.Int
	LastFundingPaymentTimestamp *big.Int
	Deadline                    *big.Int
	TradingFee                  *big.Int
	Affiliate                   common.Address
}

func (q Quote) Position() PositionType {
	return PositionType(q.PositionType)
}

func (q Quote) Order() OrderType {
	return OrderType(q.OrderType)
}

func (q Quote) Status() QuoteStatus {
	return QuoteStatus(q.QuoteStatus)
}

// Symbol is the decoded result of getSymbol.
type Symbol struct {
	SymbolId                 *big.Int
	Name                     string
	IsValid                  bool
	MinAcceptableQuoteValue  *big.Int
	MinAcceptablePortionLF   *big.Int
	TradingFee               *big.Int
	MaxLeverage              *big.Int
	FundingRateEpochDuration *big.Int
	FundingRateWindowTime    *big.Int
}

// PartyABalanceInfo holds the nine values returned by balanceInfoOfPartyA.
type PartyABalanceInfo struct {
	AllocatedBalances     *big.Int
	LockedCVA             *big.Int
	LockedLF              *big.Int
	LockedPartyAmm        *big.Int
	LockedPartyBmm        *big.Int
	PendingLockedCVA      *big.Int
	PendingLockedLF       *big.Int
	PendingLockedPartyAmm *big.Int
	PendingLockedPartyBmm *big.Int
}

// ForceCloseCooldowns are the two cooldowns bounding a force-close price
// window, in seconds.
type ForceCloseCooldowns struct {
	First  *big.Int
	Second *big.Int
}
