package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/banky/go-symmio/chain"
	"github.com/banky/go-symmio/constants"
	"github.com/banky/go-symmio/internal/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// sent prints a submitted transaction. It takes the result pair directly:
//
//	return sent(cmd)(diamond.UnlockQuote(ctx, id))
func sent(cmd *cobra.Command) func(*chain.Result, error) error {
	return func(res *chain.Result, err error) error {
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "tx:        %s\n", res.Hash.Hex())
		fmt.Fprintf(out, "nonce:     %d\n", res.Nonce)
		fmt.Fprintf(out, "gas price: %s\n", res.GasPrice)
		fmt.Fprintf(out, "gas limit: %d\n", res.GasLimit)
		if res.Receipt != nil {
			fmt.Fprintf(out, "status:    %d\n", res.Receipt.Status)
			fmt.Fprintf(out, "block:     %s\n", res.Receipt.BlockNumber)
			fmt.Fprintf(out, "gas used:  %d\n", res.Receipt.GasUsed)
		}
		return nil
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

/*//////////////////////////////////////////////////////////////
                          FLAG PARSING
//////////////////////////////////////////////////////////////*/

func parseBig(name, raw string) (*big.Int, error) {
	n, err := utils.ParseBigInt(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return n, nil
}

// parseBigs reads a comma separated or JSON style list of integers.
func parseBigs(name, raw string) ([]*big.Int, error) {
	items := utils.SplitList(raw)
	if len(items) == 0 {
		return nil, fmt.Errorf("--%s needs at least one value", name)
	}
	out := make([]*big.Int, len(items))
	for i, item := range items {
		n, err := parseBig(name, item)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func parseAddress(name, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid --%s address %q", name, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseAddresses(name, raw string) ([]common.Address, error) {
	var out []common.Address
	for _, item := range utils.SplitList(raw) {
		addr, err := parseAddress(name, item)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// addressOr parses raw, or returns fallback when raw is empty.
func addressOr(name, raw string, fallback common.Address) (common.Address, error) {
	if raw == "" {
		if fallback == constants.ZERO_ADDRESS {
			return common.Address{}, fmt.Errorf("--%s is required", name)
		}
		return fallback, nil
	}
	return parseAddress(name, raw)
}

func parseDecimal(name, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return d, nil
}

// parseWei reads a decimal amount and scales it to 18 decimals.
func parseWei(name, raw string) (*big.Int, error) {
	d, err := parseDecimal(name, raw)
	if err != nil {
		return nil, err
	}
	return utils.ToWei(d), nil
}
