package chain

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// RevertError is a decoded contract revert. Name is the custom error name,
// "Error" for require-style reasons and "Panic" for assertion failures. It
// is empty when the selector matched nothing known.
type RevertError struct {
	Name   string
	Args   []any
	Reason string
	Data   []byte
}

func (e *RevertError) Error() string {
	switch {
	case e.Reason != "":
		return "execution reverted: " + e.Reason
	case e.Name != "":
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = fmt.Sprint(a)
		}
		return fmt.Sprintf("execution reverted: %s(%s)", e.Name, strings.Join(args, ", "))
	case len(e.Data) > 0:
		return "execution reverted: " + hexutil.Encode(e.Data)
	default:
		return "execution reverted"
	}
}

var (
	errorSelector = []byte{0x08, 0xc3, 0x79, 0xa0}
	panicSelector = []byte{0x4e, 0x48, 0x7b, 0x71}
)

// DecodeRevert matches revert data against the standard Error(string) and
// Panic(uint256) encodings and then every error entry of the given ABIs.
func DecodeRevert(data []byte, abis ...*abi.ABI) *RevertError {
	rev := &RevertError{Data: data}
	if len(data) < 4 {
		return rev
	}

	selector := data[:4]
	if bytes.Equal(selector, errorSelector) || bytes.Equal(selector, panicSelector) {
		reason, err := abi.UnpackRevert(data)
		if err == nil {
			rev.Reason = reason
			if bytes.Equal(selector, errorSelector) {
				rev.Name = "Error"
			} else {
				rev.Name = "Panic"
			}
		}
		return rev
	}

	for _, parsed := range abis {
		if parsed == nil {
			continue
		}
		for name, e := range parsed.Errors {
			if !bytes.Equal(e.ID[:4], selector) {
				continue
			}
			args, err := e.Inputs.Unpack(data[4:])
			if err != nil {
				continue
			}
			rev.Name = name
			rev.Args = args
			return rev
		}
	}

	return rev
}

// revertData extracts the hex revert payload an RPC error carries, if any.
func revertData(err error) ([]byte, bool) {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return nil, false
	}

	switch v := de.ErrorData().(type) {
	case string:
		b, decodeErr := hexutil.Decode(v)
		if decodeErr != nil {
			return nil, false
		}
		return b, true
	case []byte:
		return v, true
	}
	return nil, false
}
