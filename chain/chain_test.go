package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/banky/go-symmio/abis"
	"github.com/banky/go-symmio/chain/chaintest"
	"github.com/banky/go-symmio/errs"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/maxatome/go-testdeep/td"
)

const customErrorsABI = `[
	{"type":"error","name":"InsufficientBalance","inputs":[
		{"name":"available","type":"uint256"},
		{"name":"required","type":"uint256"}
	]},
	{"type":"error","name":"Unauthorized","inputs":[]}
]`

func newSubmitter(t *testing.T, backend *chaintest.Backend, wait bool) *Submitter {
	t.Helper()

	key, err := crypto.GenerateKey()
	td.Require(t).CmpNoError(err)

	s, err := New(context.Background(), Config{
		Backend:    backend,
		PrivateKey: key,
		Wait:       wait,
	})
	td.Require(t).CmpNoError(err)
	return s
}

func errorStringData(t *testing.T, reason string) []byte {
	t.Helper()

	stringType, err := abi.NewType("string", "", nil)
	td.Require(t).CmpNoError(err)

	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	td.Require(t).CmpNoError(err)

	return append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...)
}

func TestNewRequiresKeyAndBackend(t *testing.T) {
	_, err := New(context.Background(), Config{Backend: chaintest.New()})
	td.CmpString(t, err, "private key is required")

	key, _ := crypto.GenerateKey()
	_, err = New(context.Background(), Config{PrivateKey: key})
	td.CmpString(t, err, "backend is required")
}

func TestSendBuildsSignedLegacyTx(t *testing.T) {
	backend := chaintest.New()
	s := newSubmitter(t, backend, false)

	to := common.HexToAddress("0x8Ab178C07184ffD44F0ADfF4eA2ce6cFc33F3b86")
	data := []byte{0xde, 0xad, 0xbe, 0xef}

	res, err := s.Send(context.Background(), to, data, 800_000)
	td.Require(t).CmpNoError(err)

	tx := backend.LastSent()
	td.Require(t).NotNil(tx)

	td.Cmp(t, tx.Type(), uint8(types.LegacyTxType))
	td.Cmp(t, tx.Nonce(), uint64(7))
	td.Cmp(t, tx.Gas(), uint64(800_000))
	td.Cmp(t, tx.GasPrice(), big.NewInt(45_000_000_000))
	td.Cmp(t, *tx.To(), to)
	td.Cmp(t, tx.Data(), data)
	td.Cmp(t, tx.ChainId(), big.NewInt(137))

	sender, err := types.Sender(types.NewEIP155Signer(big.NewInt(137)), tx)
	td.Require(t).CmpNoError(err)
	td.Cmp(t, sender, s.From())

	td.Cmp(t, res.Hash, tx.Hash())
	td.Cmp(t, res.Nonce, uint64(7))
	td.Cmp(t, res.GasLimit, uint64(800_000))
	td.CmpNil(t, res.Receipt)
}

func TestGasPriceMultiplier(t *testing.T) {
	key, _ := crypto.GenerateKey()
	s, err := New(context.Background(), Config{
		Backend:            chaintest.New(),
		PrivateKey:         key,
		ChainID:            big.NewInt(42161),
		GasPriceMultiplier: 1.25,
	})
	td.Require(t).CmpNoError(err)

	td.Cmp(t, s.GasPrice(big.NewInt(1001)), big.NewInt(1251))
	td.Cmp(t, s.ChainID(), big.NewInt(42161))
}

func TestSendWaitsForReceipt(t *testing.T) {
	backend := chaintest.New()
	s := newSubmitter(t, backend, true)

	res, err := s.Send(context.Background(), common.Address{1}, []byte{1, 2, 3, 4}, 200_000)
	td.Require(t).CmpNoError(err)
	td.Require(t).NotNil(res.Receipt)
	td.Cmp(t, res.Receipt.Status, types.ReceiptStatusSuccessful)

	// per-call override
	res, err = s.Send(context.Background(), common.Address{1}, nil, 200_000, WithWait(false))
	td.Require(t).CmpNoError(err)
	td.CmpNil(t, res.Receipt)
}

func TestSendFailedReceiptReplaysRevert(t *testing.T) {
	backend := chaintest.New()
	backend.ReceiptStatus = types.ReceiptStatusFailed

	symmio := abis.MustLoad(abis.SYMMIO)
	backend.Fail(&symmio, "unlockQuote", &chaintest.DataError{
		Msg:  "execution reverted",
		Data: hexutil.Encode(errorStringData(t, "LibQuote: Invalid state")),
	})

	s := newSubmitter(t, backend, true)
	data, err := symmio.Pack("unlockQuote", big.NewInt(12))
	td.Require(t).CmpNoError(err)

	res, err := s.Send(context.Background(), common.Address{2}, data, 200_000, WithLabel("unlockQuote"))
	td.Require(t).NotNil(res)
	td.CmpTrue(t, errors.Is(err, errs.ChainRevert))

	var rev *RevertError
	td.Require(t).True(errors.As(err, &rev))
	td.Cmp(t, rev.Name, "Error")
	td.Cmp(t, rev.Reason, "LibQuote: Invalid state")
	td.CmpContains(t, err.Error(), "chain.unlockQuote")
}

func TestSendFailedReceiptWithoutData(t *testing.T) {
	backend := chaintest.New()
	backend.ReceiptStatus = types.ReceiptStatusFailed
	s := newSubmitter(t, backend, true)

	_, err := s.Send(context.Background(), common.Address{2}, []byte{9, 9, 9, 9}, 100_000)
	td.CmpTrue(t, errors.Is(err, errs.ChainRevert))
	td.CmpContains(t, err.Error(), "reverted")
}

func TestSendRPCError(t *testing.T) {
	backend := chaintest.New()
	backend.SendErr = errors.New("insufficient funds for gas * price + value")
	s := newSubmitter(t, backend, false)

	_, err := s.Send(context.Background(), common.Address{3}, nil, 100_000)
	td.Cmp(t, errs.KindOf(err), errs.ChainRevert)
	td.CmpContains(t, err.Error(), "insufficient funds")
}

func TestDecodeRevert(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(customErrorsABI))
	td.Require(t).CmpNoError(err)

	insufficient := parsed.Errors["InsufficientBalance"]
	args, err := insufficient.Inputs.Pack(big.NewInt(5), big.NewInt(10))
	td.Require(t).CmpNoError(err)

	unauthorized := parsed.Errors["Unauthorized"]

	tests := []struct {
		name       string
		data       []byte
		wantName   string
		wantReason string
		wantArgs   []any
	}{
		{
			name:     "custom error with args",
			data:     append(append([]byte{}, insufficient.ID[:4]...), args...),
			wantName: "InsufficientBalance",
			wantArgs: []any{big.NewInt(5), big.NewInt(10)},
		},
		{
			name:     "custom error without args",
			data:     append([]byte{}, unauthorized.ID[:4]...),
			wantName: "Unauthorized",
			wantArgs: []any{},
		},
		{
			name:       "error string",
			data:       errorStringData(t, "not enough"),
			wantName:   "Error",
			wantReason: "not enough",
		},
		{
			name: "unknown selector",
			data: []byte{0xaa, 0xbb, 0xcc, 0xdd},
		},
		{
			name: "short data",
			data: []byte{0x01},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rev := DecodeRevert(tt.data, &parsed)
			td.Cmp(t, rev.Name, tt.wantName)
			td.Cmp(t, rev.Reason, tt.wantReason)
			td.Cmp(t, rev.Data, tt.data)
			if tt.wantArgs != nil {
				td.Cmp(t, rev.Args, tt.wantArgs)
			}
		})
	}
}

func TestRevertErrorMessage(t *testing.T) {
	td.Cmp(t, (&RevertError{}).Error(), "execution reverted")
	td.Cmp(t, (&RevertError{Data: []byte{0xab}}).Error(), "execution reverted: 0xab")
	td.Cmp(t, (&RevertError{Name: "Error", Reason: "nope"}).Error(), "execution reverted: nope")
	td.Cmp(
		t,
		(&RevertError{Name: "InsufficientBalance", Args: []any{big.NewInt(5), big.NewInt(10)}}).Error(),
		"execution reverted: InsufficientBalance(5, 10)",
	)
}

func TestContractCall(t *testing.T) {
	backend := chaintest.New()
	erc20 := abis.MustLoad(abis.ERC20)
	td.Require(t).CmpNoError(backend.Respond(&erc20, "balanceOf", big.NewInt(1_500_000)))
	td.Require(t).CmpNoError(backend.Respond(&erc20, "symbol", "USDC"))

	token := NewContract(common.Address{0xcc}, &erc20, backend, nil)

	var balance *big.Int
	err := token.CallInto(context.Background(), &balance, "balanceOf", common.Address{0x01})
	td.Require(t).CmpNoError(err)
	td.Cmp(t, balance, big.NewInt(1_500_000))

	var symbol string
	td.Require(t).CmpNoError(token.CallInto(context.Background(), &symbol, "symbol"))
	td.Cmp(t, symbol, "USDC")

	td.Cmp(t, backend.Calls[0].To, &token.Address)

	_, err = token.Transact(context.Background(), 60_000, "approve", common.Address{2}, big.NewInt(1))
	td.CmpContains(t, err, "read-only")
}

func TestContractCallRevert(t *testing.T) {
	backend := chaintest.New()
	erc20 := abis.MustLoad(abis.ERC20)
	backend.Fail(&erc20, "allowance", &chaintest.DataError{
		Msg:  "execution reverted",
		Data: hexutil.Encode(errorStringData(t, "paused")),
	})

	token := NewContract(common.Address{0xcc}, &erc20, backend, nil)
	_, err := token.Call(context.Background(), "allowance", common.Address{1}, common.Address{2})
	td.Cmp(t, errs.KindOf(err), errs.ChainRevert)
	td.CmpContains(t, err.Error(), "paused")
}

func TestContractTransact(t *testing.T) {
	backend := chaintest.New()
	s := newSubmitter(t, backend, false)
	erc20 := abis.MustLoad(abis.ERC20)

	token := NewContract(common.Address{0xcc}, &erc20, backend, s)
	_, err := token.Transact(context.Background(), 60_000, "approve", common.Address{2}, big.NewInt(99))
	td.Require(t).CmpNoError(err)

	tx := backend.LastSent()
	td.Cmp(t, tx.Data()[:4], erc20.Methods["approve"].ID)

	args, err := erc20.Methods["approve"].Inputs.Unpack(tx.Data()[4:])
	td.Require(t).CmpNoError(err)
	td.Cmp(t, args, []any{common.Address{2}, big.NewInt(99)})
}

func TestConvertMismatch(t *testing.T) {
	var s string
	err := Convert(big.NewInt(1), &s)
	td.Cmp(t, errs.KindOf(err), errs.MalformedResponse)

	var n big.Int
	td.CmpNoError(t, Convert(big.NewInt(42), &n))
	td.Cmp(t, n.Int64(), int64(42))
}
