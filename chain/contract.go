package chain

import (
	"context"
	"fmt"
	"reflect"

	"github.com/banky/go-symmio/errs"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract binds an ABI to a deployed address. Reads go straight to the
// backend; writes go through the submitter, which may be nil for a
// read-only binding.
type Contract struct {
	Address   common.Address
	ABI       *abi.ABI
	backend   Backend
	submitter *Submitter
}

func NewContract(
	address common.Address,
	parsed *abi.ABI,
	backend Backend,
	submitter *Submitter,
) *Contract {
	return &Contract{
		Address:   address,
		ABI:       parsed,
		backend:   backend,
		submitter: submitter,
	}
}

// Pack encodes a call to method.
func (c *Contract) Pack(method string, args ...any) ([]byte, error) {
	data, err := c.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	return data, nil
}

// Call describes one contract write: the method, its arguments and the
// fixed gas limit it is submitted with. Fingerprint, when set, identifies
// the attestation the call carries in log lines.
type Call struct {
	Method      string
	Args        []any
	GasLimit    uint64
	Fingerprint common.Hash
}

func NewCall(gasLimit uint64, method string, args ...any) Call {
	return Call{Method: method, Args: args, GasLimit: gasLimit}
}

// PackCall encodes call against the contract's ABI.
func (c *Contract) PackCall(call Call) ([]byte, error) {
	return c.Pack(call.Method, call.Args...)
}

// Exec packs and submits call.
func (c *Contract) Exec(ctx context.Context, call Call, opts ...SendOption) (*Result, error) {
	data, err := c.PackCall(call)
	if err != nil {
		return nil, err
	}
	defaults := []SendOption{WithLabel(call.Method)}
	if call.Fingerprint != (common.Hash{}) {
		defaults = append(defaults, WithFingerprint(call.Fingerprint))
	}
	opts = append(defaults, opts...)
	return c.Send(ctx, data, call.GasLimit, opts...)
}

// Transact packs and submits a call to method with a fixed gas limit.
func (c *Contract) Transact(
	ctx context.Context,
	gasLimit uint64,
	method string,
	args ...any,
) (*Result, error) {
	return c.Exec(ctx, NewCall(gasLimit, method, args...))
}

// Send submits already packed call data to the contract.
func (c *Contract) Send(
	ctx context.Context,
	data []byte,
	gasLimit uint64,
	opts ...SendOption,
) (*Result, error) {
	if c.submitter == nil {
		return nil, fmt.Errorf("contract %s is read-only", c.Address.Hex())
	}
	return c.submitter.Send(ctx, c.Address, data, gasLimit, opts...)
}

// Call executes a view method at the latest block and returns its
// unpacked outputs.
func (c *Contract) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	msg := ethereum.CallMsg{To: &c.Address, Data: data}
	if c.submitter != nil {
		msg.From = c.submitter.From()
	}

	op := "chain.call." + method
	raw, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		if revert, ok := revertData(err); ok {
			return nil, errs.Wrap(errs.ChainRevert, op, DecodeRevert(revert, c.ABI))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out, err := c.ABI.Unpack(method, raw)
	if err != nil {
		return nil, errs.Wrap(errs.MalformedResponse, op, err)
	}
	return out, nil
}

// CallInto executes a view method with a single output and converts that
// output into out, which must be a pointer.
func (c *Contract) CallInto(ctx context.Context, out any, method string, args ...any) error {
	res, err := c.Call(ctx, method, args...)
	if err != nil {
		return err
	}
	if len(res) != 1 {
		return errs.Newf(
			errs.MalformedResponse,
			"chain.call."+method,
			"expected 1 output, got %d",
			len(res),
		)
	}
	return Convert(res[0], out)
}

// Convert copies an unpacked ABI value into out. Tuples are copied field by
// field in declaration order, so out's struct layout must follow the ABI.
func Convert(in any, out any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.Newf(errs.MalformedResponse, "chain.convert", "%v", r)
		}
	}()

	if out == nil || reflect.TypeOf(out).Kind() != reflect.Pointer {
		return fmt.Errorf("convert target must be a non-nil pointer, got %T", out)
	}

	converted := abi.ConvertType(in, out)
	if converted != out {
		reflect.ValueOf(out).Elem().Set(reflect.ValueOf(converted).Elem())
	}
	return nil
}
