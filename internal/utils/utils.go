package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// WeiDecimals is the fixed-point scale used by every on-chain price,
// quantity and margin value.
const WeiDecimals = 18

var weiScale = decimal.New(1, WeiDecimals)

// HexToBytes decodes a 0x-prefixed hex string. An empty string decodes to an
// empty slice.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []byte{}, nil
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, fmt.Errorf("hex string %q missing 0x prefix", s)
	}
	b, err := hexutil.Decode("0x" + s[2:])
	if err != nil {
		return nil, fmt.Errorf("invalid hex string %q: %w", s, err)
	}
	return b, nil
}

// BytesToHex encodes b as a lowercase 0x-prefixed hex string.
func BytesToHex(b []byte) string {
	return hexutil.Encode(b)
}

// ParseBigInt parses a decimal or 0x-prefixed hex integer string.
func ParseBigInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty integer string")
	}

	base := 10
	digits := s
	neg := false
	if strings.HasPrefix(digits, "-") {
		neg = true
		digits = digits[1:]
	}
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		base = 16
		digits = digits[2:]
	}

	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	if neg {
		n.Neg(n)
	}
	return n, nil
}

// ToWei scales a decimal amount to an 18-decimal integer, truncating any
// remaining fraction.
func ToWei(d decimal.Decimal) *big.Int {
	return d.Mul(weiScale).Truncate(0).BigInt()
}

// FromWei converts an 18-decimal integer back to a decimal amount.
func FromWei(n *big.Int) decimal.Decimal {
	if n == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n, -WeiDecimals)
}

// QuantizeDown truncates d to precision decimal places (round toward zero)
// and renders it with exactly that many places.
func QuantizeDown(d decimal.Decimal, precision int32) string {
	return d.Truncate(precision).StringFixed(precision)
}

// MinuteCeil rounds a unix timestamp up to the next whole minute.
func MinuteCeil(ts int64) int64 {
	return (ts + 59) / 60 * 60
}

// MinuteFloor rounds a unix timestamp down to the previous whole minute.
func MinuteFloor(ts int64) int64 {
	return ts / 60 * 60
}

// SplitList parses either a JSON-style list (`["a","b"]`) or a comma
// separated string into trimmed, non-empty items.
func SplitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")

	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.Trim(strings.TrimSpace(item), `"'`)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
