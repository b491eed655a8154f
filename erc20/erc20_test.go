package erc20

import (
	"context"
	"math/big"
	"testing"

	"github.com/banky/go-symmio/abis"
	"github.com/banky/go-symmio/chain"
	"github.com/banky/go-symmio/chain/chaintest"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/maxatome/go-testdeep/td"
)

var (
	tokenAddress = common.HexToAddress("0x50E88C692B137B8a51b6017026Ef414651e0d5ba")
	spender      = common.HexToAddress("0x8Ab178C07184ffD44F0ADfF4eA2ce6cFc33F3b86")
)

func TestViews(t *testing.T) {
	backend := chaintest.New()
	parsed := abis.MustLoad(abis.ERC20)

	td.Require(t).CmpNoError(backend.Respond(&parsed, "balanceOf", big.NewInt(5_000_000)))
	td.Require(t).CmpNoError(backend.Respond(&parsed, "allowance", big.NewInt(42)))
	td.Require(t).CmpNoError(backend.Respond(&parsed, "decimals", uint8(6)))
	td.Require(t).CmpNoError(backend.Respond(&parsed, "symbol", "USDC"))

	token := New(tokenAddress, nil, backend, nil)
	ctx := context.Background()

	balance, err := token.BalanceOf(ctx, spender)
	td.CmpNoError(t, err)
	td.Cmp(t, balance.String(), "5000000")

	allowance, err := token.Allowance(ctx, spender, tokenAddress)
	td.CmpNoError(t, err)
	td.Cmp(t, allowance.Int64(), int64(42))

	decimals, err := token.Decimals(ctx)
	td.CmpNoError(t, err)
	td.Cmp(t, decimals, uint8(6))

	symbol, err := token.Symbol(ctx)
	td.CmpNoError(t, err)
	td.Cmp(t, symbol, "USDC")
}

func TestApproveWaitsForReceipt(t *testing.T) {
	backend := chaintest.New()
	key, err := crypto.GenerateKey()
	td.Require(t).CmpNoError(err)

	submitter, err := chain.New(context.Background(), chain.Config{
		Backend:    backend,
		PrivateKey: key,
	})
	td.Require(t).CmpNoError(err)

	token := New(tokenAddress, nil, backend, submitter)
	res, err := token.Approve(context.Background(), 60_000, spender, big.NewInt(1_000))
	td.Require(t).CmpNoError(err)
	td.CmpNotNil(t, res.Receipt)

	tx := backend.LastSent()
	td.Cmp(t, tx.Gas(), uint64(60_000))
	td.Cmp(t, *tx.To(), tokenAddress)

	parsed := abis.MustLoad(abis.ERC20)
	args, err := parsed.Methods["approve"].Inputs.Unpack(tx.Data()[4:])
	td.Require(t).CmpNoError(err)
	td.Cmp(t, args[0], spender)
	td.Cmp(t, args[1].(*big.Int).Int64(), int64(1_000))
}
