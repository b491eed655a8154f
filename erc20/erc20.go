// Package erc20 binds the collateral token used for deposits.
package erc20

import (
	"context"
	"math/big"

	"github.com/banky/go-symmio/abis"
	"github.com/banky/go-symmio/chain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type Token struct {
	contract *chain.Contract
}

// New binds the token at address. parsed may be nil to use the embedded
// ERC20 ABI; submitter may be nil for a read-only token.
func New(
	address common.Address,
	parsed *abi.ABI,
	backend chain.Backend,
	submitter *chain.Submitter,
) *Token {
	if parsed == nil {
		embedded := abis.MustLoad(abis.ERC20)
		parsed = &embedded
	}
	return &Token{contract: chain.NewContract(address, parsed, backend, submitter)}
}

func (t *Token) Address() common.Address {
	return t.contract.Address
}

// ApproveCall builds approve(spender, amount) with the given gas limit.
func ApproveCall(gasLimit uint64, spender common.Address, amount *big.Int) chain.Call {
	return chain.NewCall(gasLimit, "approve", spender, amount)
}

// Approve lets spender move amount of the caller's tokens. Unless opts say
// otherwise it waits for the receipt, since the spend that follows an
// approval fails while the approval is still pending.
func (t *Token) Approve(
	ctx context.Context,
	gasLimit uint64,
	spender common.Address,
	amount *big.Int,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	opts = append([]chain.SendOption{chain.WithWait(true)}, opts...)
	return t.contract.Exec(ctx, ApproveCall(gasLimit, spender, amount), opts...)
}

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	out := new(big.Int)
	if err := t.contract.CallInto(ctx, out, "allowance", owner, spender); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	out := new(big.Int)
	if err := t.contract.CallInto(ctx, out, "balanceOf", account); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	var out uint8
	if err := t.contract.CallInto(ctx, &out, "decimals"); err != nil {
		return 0, err
	}
	return out, nil
}

func (t *Token) Symbol(ctx context.Context) (string, error) {
	var out string
	if err := t.contract.CallInto(ctx, &out, "symbol"); err != nil {
		return "", err
	}
	return out, nil
}
