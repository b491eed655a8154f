// Package chaintest provides an in-memory chain.Backend for tests.
package chaintest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend records sent transactions and answers eth_call from canned
// responses keyed by method selector.
type Backend struct {
	mu sync.Mutex

	ID       *big.Int
	Nonce    uint64
	GasPrice *big.Int
	// ReceiptStatus is reported for every sent transaction
	ReceiptStatus uint64
	// SendErr is returned by SendTransaction when set
	SendErr error

	Sent  []*types.Transaction
	Calls []ethereum.CallMsg

	responses map[[4]byte]response
}

type response struct {
	data []byte
	err  error
}

func New() *Backend {
	return &Backend{
		ID:            big.NewInt(137),
		Nonce:         7,
		GasPrice:      big.NewInt(30_000_000_000),
		ReceiptStatus: types.ReceiptStatusSuccessful,
		responses:     make(map[[4]byte]response),
	}
}

// Respond packs values as the outputs of method and returns them for
// every call with that selector.
func (b *Backend) Respond(parsed *abi.ABI, method string, values ...any) error {
	m, ok := parsed.Methods[method]
	if !ok {
		return errors.New("unknown method " + method)
	}
	data, err := m.Outputs.Pack(values...)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[selector(m.ID)] = response{data: data}
	return nil
}

// Fail makes every call to method fail with err.
func (b *Backend) Fail(parsed *abi.ABI, method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[selector(parsed.Methods[method].ID)] = response{err: err}
}

// LastSent returns the most recent transaction, or nil.
func (b *Backend) LastSent() *types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Sent) == 0 {
		return nil
	}
	return b.Sent[len(b.Sent)-1]
}

func (b *Backend) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.ID), nil
}

func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Nonce, nil
}

func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.GasPrice), nil
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SendErr != nil {
		return b.SendErr
	}
	b.Sent = append(b.Sent, tx)
	b.Nonce++
	return nil
}

func (b *Backend) CallContract(
	ctx context.Context,
	msg ethereum.CallMsg,
	blockNumber *big.Int,
) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = append(b.Calls, msg)

	if len(msg.Data) < 4 {
		return nil, nil
	}
	var sel [4]byte
	copy(sel[:], msg.Data[:4])

	r, ok := b.responses[sel]
	if !ok {
		return nil, nil
	}
	return r.data, r.err
}

func (b *Backend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tx := range b.Sent {
		if tx.Hash() == hash {
			return &types.Receipt{
				Status:      b.ReceiptStatus,
				TxHash:      hash,
				GasUsed:     tx.Gas() / 2,
				BlockNumber: big.NewInt(1),
			}, nil
		}
	}
	return nil, ethereum.NotFound
}

func (b *Backend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

// DataError mimics the JSON-RPC error a node returns for a reverted call.
type DataError struct {
	Msg  string
	Data string
}

func (e *DataError) Error() string { return e.Msg }

func (e *DataError) ErrorData() any { return e.Data }

func selector(id []byte) [4]byte {
	var sel [4]byte
	copy(sel[:], id)
	return sel
}
