package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// String implements fmt.Stringer for LockedValues
func (l LockedValues) String() string {
	return fmt.Sprintf(
		"{Cva: %s, Lf: %s, PartyAmm: %s, PartyBmm: %s}",
		fmtInt(l.Cva), fmtInt(l.Lf), fmtInt(l.PartyAmm), fmtInt(l.PartyBmm),
	)
}

// String implements fmt.Stringer for Quote
func (q Quote) String() string {
	return fmt.Sprintf(
		"Quote{\n"+
			"  Id:                    %s\n"+
			"  SymbolId:              %s\n"+
			"  PositionType:          %s\n"+
			"  OrderType:             %s\n"+
			"  QuoteStatus:           %s\n"+
			"  PartyA:                %s\n"+
			"  PartyB:                %s\n"+
			"  PartyBsWhiteList:      %s\n"+
			"  Quantity:              %s\n"+
			"  ClosedAmount:          %s\n"+
			"  QuantityToClose:       %s\n"+
			"  RequestedOpenPrice:    %s\n"+
			"  OpenedPrice:           %s\n"+
			"  MarketPrice:           %s\n"+
			"  RequestedClosePrice:   %s\n"+
			"  AvgClosedPrice:        %s\n"+
			"  LockedValues:          %s\n"+
			"  MaxFundingRate:        %s\n"+
			"  CreateTimestamp:       %s\n"+
			"  StatusModifyTimestamp: %s\n"+
			"  Deadline:              %s\n"+
			"}",
		fmtInt(q.Id), fmtInt(q.SymbolId), q.Position(), q.Order(), q.Status(),
		q.PartyA.Hex(), q.PartyB.Hex(), fmtAddresses(q.PartyBsWhiteList),
		fmtInt(q.Quantity), fmtInt(q.ClosedAmount), fmtInt(q.QuantityToClose),
		fmtInt(q.RequestedOpenPrice), fmtInt(q.OpenedPrice), fmtInt(q.MarketPrice),
		fmtInt(q.RequestedClosePrice), fmtInt(q.AvgClosedPrice), q.LockedValues,
		fmtInt(q.MaxFundingRate), fmtInt(q.CreateTimestamp),
		fmtInt(q.StatusModifyTimestamp), fmtInt(q.Deadline),
	)
}

// String implements fmt.Stringer for Symbol
func (s Symbol) String() string {
	return fmt.Sprintf(
		"Symbol{\n"+
			"  SymbolId:                 %s\n"+
			"  Name:                     %s\n"+
			"  IsValid:                  %t\n"+
			"  MinAcceptableQuoteValue:  %s\n"+
			"  MinAcceptablePortionLF:   %s\n"+
			"  TradingFee:               %s\n"+
			"  MaxLeverage:              %s\n"+
			"  FundingRateEpochDuration: %s\n"+
			"  FundingRateWindowTime:    %s\n"+
			"}",
		fmtInt(s.SymbolId), s.Name, s.IsValid, fmtInt(s.MinAcceptableQuoteValue),
		fmtInt(s.MinAcceptablePortionLF), fmtInt(s.TradingFee), fmtInt(s.MaxLeverage),
		fmtInt(s.FundingRateEpochDuration), fmtInt(s.FundingRateWindowTime),
	)
}

// String implements fmt.Stringer for PartyABalanceInfo
func (b PartyABalanceInfo) String() string {
	return fmt.Sprintf(
		"PartyABalanceInfo{\n"+
			"  AllocatedBalances:     %s\n"+
			"  LockedCVA:             %s\n"+
			"  LockedLF:              %s\n"+
			"  LockedPartyAmm:        %s\n"+
			"  LockedPartyBmm:        %s\n"+
			"  PendingLockedCVA:      %s\n"+
			"  PendingLockedLF:       %s\n"+
			"  PendingLockedPartyAmm: %s\n"+
			"  PendingLockedPartyBmm: %s\n"+
			"}",
		fmtInt(b.AllocatedBalances), fmtInt(b.LockedCVA), fmtInt(b.LockedLF),
		fmtInt(b.LockedPartyAmm), fmtInt(b.LockedPartyBmm), fmtInt(b.PendingLockedCVA),
		fmtInt(b.PendingLockedLF), fmtInt(b.PendingLockedPartyAmm),
		fmtInt(b.PendingLockedPartyBmm),
	)
}

func fmtInt(n *big.Int) string {
	if n == nil {
		return "<nil>"
	}
	return n.String()
}

func fmtAddresses(addrs []common.Address) string {
	if len(addrs) == 0 {
		return "[]"
	}
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.Hex()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
