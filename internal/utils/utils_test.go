package utils

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestHexRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "empty payload",
			input: "0x",
		},
		{
			name:  "single byte",
			input: "0x01",
		},
		{
			name:  "request id",
			input: "0x5f3a9c1be0d7c8a4f2b61e0c9d4e7a3b2c1d0e9f8a7b6c5d4e3f2a1b0c9d8e7f",
		},
		{
			name:  "gateway signature",
			input: "0x" + "ab" + "00ff" + "1234567890abcdef" + "1b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := HexToBytes(tt.input)
			if err != nil {
				t.Fatalf("HexToBytes(%q) unexpected error: %v", tt.input, err)
			}
			if got := BytesToHex(b); got != tt.input {
				t.Fatalf("BytesToHex(HexToBytes(%q)) = %q", tt.input, got)
			}

			// a second pass must be stable
			b2, err := HexToBytes(BytesToHex(b))
			if err != nil {
				t.Fatalf("second HexToBytes unexpected error: %v", err)
			}
			if BytesToHex(b2) != tt.input {
				t.Fatalf("round trip not idempotent for %q", tt.input)
			}
		})
	}
}

func TestHexToBytes_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
	}{
		{name: "missing prefix", input: "abcd"},
		{name: "odd length", input: "0xabc"},
		{name: "non hex", input: "0xzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := HexToBytes(tt.input); err == nil {
				t.Fatalf("HexToBytes(%q) expected error", tt.input)
			}
		})
	}
}

func TestHexToBytes_Empty(t *testing.T) {
	t.Parallel()
	b, err := HexToBytes("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b) != 0 {
		t.Fatalf("expected empty slice, got %x", b)
	}
}

func TestParseBigInt(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "decimal", input: "12345", expected: "12345"},
		{name: "negative decimal", input: "-42", expected: "-42"},
		{name: "hex", input: "0xff", expected: "255"},
		{name: "upper hex prefix", input: "0XFF", expected: "255"},
		{name: "padded", input: "  7 ", expected: "7"},
		{
			name:     "wide signature",
			input:    "0x1000000000000000000000000000000000000000000000000000000000000000",
			expected: new(big.Int).Lsh(big.NewInt(1), 252).String(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBigInt(tt.input)
			if err != nil {
				t.Fatalf("ParseBigInt(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.expected {
				t.Fatalf("ParseBigInt(%q) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}

	for _, bad := range []string{"", "abc", "0xgg", "1.5"} {
		if _, err := ParseBigInt(bad); err == nil {
			t.Fatalf("ParseBigInt(%q) expected error", bad)
		}
	}
}

func TestWeiConversion(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "whole", input: "3", expected: "3000000000000000000"},
		{name: "fraction", input: "3.05", expected: "3050000000000000000"},
		{name: "truncates below wei", input: "0.0000000000000000019", expected: "1"},
		{name: "zero", input: "0", expected: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToWei(decimal.RequireFromString(tt.input))
			if got.String() != tt.expected {
				t.Fatalf("ToWei(%s) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}

	back := FromWei(big.NewInt(1_500_000_000_000_000_000))
	if !back.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("FromWei = %s, want 1.5", back)
	}
	if !FromWei(nil).IsZero() {
		t.Fatal("FromWei(nil) should be zero")
	}
}

func TestQuantizeDown(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		input     string
		precision int32
		expected  string
	}{
		{name: "truncates", input: "2.71828", precision: 3, expected: "2.718"},
		{name: "never rounds up", input: "0.99999", precision: 2, expected: "0.99"},
		{name: "pads", input: "1.5", precision: 4, expected: "1.5000"},
		{name: "integer precision", input: "12.9", precision: 0, expected: "12"},
		{name: "negative toward zero", input: "-1.239", precision: 2, expected: "-1.23"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuantizeDown(decimal.RequireFromString(tt.input), tt.precision)
			if got != tt.expected {
				t.Fatalf("QuantizeDown(%s, %d) = %q, want %q", tt.input, tt.precision, got, tt.expected)
			}
		})
	}
}

func TestMinuteRounding(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input int64
		ceil  int64
		floor int64
	}{
		{name: "force close start", input: 1061, ceil: 1080, floor: 1020},
		{name: "force close end", input: 4900, ceil: 4920, floor: 4860},
		{name: "exact minute", input: 1200, ceil: 1200, floor: 1200},
		{name: "zero", input: 0, ceil: 0, floor: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MinuteCeil(tt.input); got != tt.ceil {
				t.Fatalf("MinuteCeil(%d) = %d, want %d", tt.input, got, tt.ceil)
			}
			if got := MinuteFloor(tt.input); got != tt.floor {
				t.Fatalf("MinuteFloor(%d) = %d, want %d", tt.input, got, tt.floor)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "json list", input: `["0xA", "0xB"]`, expected: []string{"0xA", "0xB"}},
		{name: "comma list", input: "0xA, 0xB,", expected: []string{"0xA", "0xB"}},
		{name: "single", input: "0xA", expected: []string{"0xA"}},
		{name: "empty", input: "  ", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitList(tt.input)
			if len(got) != len(tt.expected) {
				t.Fatalf("SplitList(%q) = %v, want %v", tt.input, got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Fatalf("SplitList(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.expected[i])
				}
			}
		})
	}
}
