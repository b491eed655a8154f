// Package abis embeds the contract ABIs the clients are built against.
// A directory holding same-named files can replace them at runtime, e.g.
// to pick up a full ABI with custom error entries.
package abis

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	SYMMIO       = "symmio.json"
	MULTIACCOUNT = "MultiAccount.json"
	ERC20        = "ERC20.json"
	OPTIONS      = "options.json"
)

//go:embed *.json
var files embed.FS

// Raw returns the ABI JSON for name, preferring dir/name when dir is set
// and the file exists.
func Raw(name string, dir string) ([]byte, error) {
	if dir != "" {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return b, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read abi %s: %w", name, err)
		}
	}

	b, err := files.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("unknown abi %s: %w", name, err)
	}
	return b, nil
}

// Load parses the named ABI.
func Load(name string, dir string) (abi.ABI, error) {
	raw, err := Raw(name, dir)
	if err != nil {
		return abi.ABI{}, err
	}

	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi %s: %w", name, err)
	}
	return parsed, nil
}

// MustLoad is Load for the embedded copies, which are known to parse.
func MustLoad(name string) abi.ABI {
	parsed, err := Load(name, "")
	if err != nil {
		panic(err)
	}
	return parsed
}
