package symmio

import (
	"context"
	"math/big"

	"github.com/banky/go-symmio/chain"
	"github.com/banky/go-symmio/errs"
	"github.com/banky/go-symmio/types"
	"github.com/ethereum/go-ethereum/common"
)

// ===== Quotes =====

func (d *Diamond) GetQuote(ctx context.Context, quoteID *big.Int) (types.Quote, error) {
	var quote types.Quote
	err := d.contract.CallInto(ctx, &quote, "getQuote", quoteID)
	return quote, err
}

func (d *Diamond) GetPartyBPendingQuotes(
	ctx context.Context,
	partyB common.Address,
	partyA common.Address,
) ([]types.Quote, error) {
	var quotes []types.Quote
	if err := d.contract.CallInto(ctx, &quotes, "getPartyBPendingQuotes", partyB, partyA); err != nil {
		return nil, err
	}
	return quotes, nil
}

func (d *Diamond) PartyBPositionsCount(ctx context.Context, partyB, partyA common.Address) (*big.Int, error) {
	return d.uintView(ctx, "partyBPositionsCount", partyB, partyA)
}

func (d *Diamond) ForceCloseCooldowns(ctx context.Context) (types.ForceCloseCooldowns, error) {
	out, err := d.ints(ctx, 2, "forceCloseCooldowns")
	if err != nil {
		return types.ForceCloseCooldowns{}, err
	}
	return types.ForceCloseCooldowns{First: out[0], Second: out[1]}, nil
}

// ===== Balances =====

func (d *Diamond) BalanceInfoOfPartyA(ctx context.Context, partyA common.Address) (types.PartyABalanceInfo, error) {
	out, err := d.ints(ctx, 9, "balanceInfoOfPartyA", partyA)
	if err != nil {
		return types.PartyABalanceInfo{}, err
	}
	return types.PartyABalanceInfo{
		AllocatedBalances:     out[0],
		LockedCVA:             out[1],
		LockedLF:              out[2],
		LockedPartyAmm:        out[3],
		LockedPartyBmm:        out[4],
		PendingLockedCVA:      out[5],
		PendingLockedLF:       out[6],
		PendingLockedPartyAmm: out[7],
		PendingLockedPartyBmm: out[8],
	}, nil
}

func (d *Diamond) AllocatedBalanceOfPartyA(ctx context.Context, partyA common.Address) (*big.Int, error) {
	return d.uintView(ctx, "allocatedBalanceOfPartyA", partyA)
}

func (d *Diamond) BalanceOfReserveVault(ctx context.Context, partyB common.Address) (*big.Int, error) {
	return d.uintView(ctx, "balanceOfReserveVault", partyB)
}

func (d *Diamond) GetInvalidBridgedAmountsPool(ctx context.Context) (common.Address, error) {
	var pool common.Address
	err := d.contract.CallInto(ctx, &pool, "getInvalidBridgedAmountsPool")
	return pool, err
}

// ===== Symbols =====

func (d *Diamond) GetSymbol(ctx context.Context, symbolID *big.Int) (types.Symbol, error) {
	var symbol types.Symbol
	err := d.contract.CallInto(ctx, &symbol, "getSymbol", symbolID)
	return symbol, err
}

// GetSymbols pages through the symbol registry.
func (d *Diamond) GetSymbols(ctx context.Context, start, size *big.Int) ([]types.Symbol, error) {
	var symbols []types.Symbol
	if err := d.contract.CallInto(ctx, &symbols, "getSymbols", start, size); err != nil {
		return nil, err
	}
	return symbols, nil
}

func (d *Diamond) SymbolNameByID(ctx context.Context, symbolIDs []*big.Int) ([]string, error) {
	var names []string
	if err := d.contract.CallInto(ctx, &names, "symbolNameById", nonNil(symbolIDs)); err != nil {
		return nil, err
	}
	return names, nil
}

func (d *Diamond) SymbolNameByQuoteID(ctx context.Context, quoteIDs []*big.Int) ([]string, error) {
	var names []string
	if err := d.contract.CallInto(ctx, &names, "symbolNameByQuoteId", nonNil(quoteIDs)); err != nil {
		return nil, err
	}
	return names, nil
}

// ===== helpers =====

func (d *Diamond) uintView(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out := new(big.Int)
	if err := d.contract.CallInto(ctx, out, method, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// ints calls a view with n unnamed integer outputs.
func (d *Diamond) ints(ctx context.Context, n int, method string, args ...any) ([]*big.Int, error) {
	res, err := d.contract.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if len(res) != n {
		return nil, errs.Newf(errs.MalformedResponse, "chain.call."+method, "expected %d outputs, got %d", n, len(res))
	}

	out := make([]*big.Int, n)
	for i, v := range res {
		out[i] = new(big.Int)
		if err := chain.Convert(v, out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
