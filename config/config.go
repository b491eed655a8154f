// Package config loads the client configuration from a .env file, an
// optional TOML file and the process environment, in that order of
// increasing precedence.
package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/banky/go-symmio/constants"
	"github.com/banky/go-symmio/errs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/samber/mo"
)

const DEFAULT_HTTP_TIMEOUT = 30 * time.Second

// Environment variable names. Each one overrides the TOML key of the same
// name in lower case.
const (
	RPC_URL                     = "RPC_URL"
	PRIVATE_KEY                 = "PRIVATE_KEY"
	CHAIN_ID                    = "CHAIN_ID"
	INSTANT_CHAIN_ID            = "INSTANT_CHAIN_ID"
	DIAMOND_ADDRESS             = "DIAMOND_ADDRESS"
	MULTIACCOUNT_ADDRESS        = "MULTIACCOUNT_ADDRESS"
	SUB_ACCOUNT_ADDRESS         = "SUB_ACCOUNT_ADDRESS"
	COLLATERAL_ADDRESS          = "COLLATERAL_ADDRESS"
	PARTY_B_ADDRESS             = "PARTY_B_ADDRESS"
	OPTIONS_ADDRESS             = "OPTIONS_ADDRESS"
	MUON_BASE_URL               = "MUON_BASE_URL"
	HEDGER_URL                  = "HEDGER_URL"
	NOTIFY_URL                  = "NOTIFY_URL"
	NOTIFY_APP_NAME             = "NOTIFY_APP_NAME"
	CONDITIONAL_ORDERS_URL      = "CONDITIONAL_ORDERS_URL"
	CONDITIONAL_ORDERS_APP_NAME = "CONDITIONAL_ORDERS_APP_NAME"
	HEDGER_WHITELIST            = "HEDGER_WHITELIST"
	BINANCE_URL                 = "BINANCE_URL"
	ABI_DIR                     = "ABI_DIR"
	GAS_PRICE_MULTIPLIER        = "GAS_PRICE_MULTIPLIER"
	HTTP_TIMEOUT                = "HTTP_TIMEOUT"
	LOG_LEVEL                   = "LOG_LEVEL"
)

// aliases accepted for a variable, checked after the canonical name
var aliases = map[string][]string{
	DIAMOND_ADDRESS:      {"SYMMIO_DIAMOND_ADDRESS"},
	MULTIACCOUNT_ADDRESS: {"MULTI_ACCOUNT_ADDRESS"},
}

type Config struct {
	RPCURL     string `toml:"rpc_url"`
	PrivateKey string `toml:"private_key"`
	ChainID    int64  `toml:"chain_id"`
	// InstantChainID is the chain the solver session is signed for
	InstantChainID int64 `toml:"instant_chain_id"`

	DiamondAddress      string `toml:"diamond_address"`
	MultiAccountAddress string `toml:"multiaccount_address"`
	SubAccountAddress   string `toml:"sub_account_address"`
	CollateralAddress   string `toml:"collateral_address"`
	PartyBAddress       string `toml:"party_b_address"`
	OptionsAddress      string `toml:"options_address"`

	MuonBaseURL              string `toml:"muon_base_url"`
	HedgerURL                string `toml:"hedger_url"`
	NotifyURL                string `toml:"notify_url"`
	NotifyAppName            string `toml:"notify_app_name"`
	ConditionalOrdersURL     string `toml:"conditional_orders_url"`
	ConditionalOrdersAppName string `toml:"conditional_orders_app_name"`
	// HedgerWhitelist is a JSON list or a comma separated list
	HedgerWhitelist string `toml:"hedger_whitelist"`
	BinanceURL      string `toml:"binance_url"`

	ABIDir             string   `toml:"abi_dir"`
	GasPriceMultiplier float64  `toml:"gas_price_multiplier"`
	HTTPTimeout        Duration `toml:"http_timeout"`
	LogLevel           string   `toml:"log_level"`
}

// Duration decodes TOML strings such as "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Defaults() Config {
	return Config{
		ChainID:                  constants.DEFAULT_CHAIN_ID,
		InstantChainID:           constants.INSTANT_CHAIN_ID,
		MuonBaseURL:              constants.MUON_TESTNET_URL,
		NotifyURL:                constants.NOTIFICATION_WS_URL,
		NotifyAppName:            constants.NOTIFICATION_APP_NAME,
		ConditionalOrdersAppName: constants.CONDITIONAL_ORDERS_APP_NAME,
		BinanceURL:               constants.BINANCE_API_URL,
		GasPriceMultiplier:       constants.DEFAULT_GAS_PRICE_MULTIPLIER,
		HTTPTimeout:              Duration{DEFAULT_HTTP_TIMEOUT},
		LogLevel:                 "info",
	}
}

// Load reads envFiles (.env when none are given) into the environment,
// decodes the TOML file at path on top of the defaults when path is not
// empty and finally applies environment overrides. A missing default .env
// is ignored; a missing file that was asked for by name is an error.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := Defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// vars returns the string valued variables by name.
func (c *Config) vars() map[string]*string {
	return map[string]*string{
		RPC_URL:                     &c.RPCURL,
		PRIVATE_KEY:                 &c.PrivateKey,
		DIAMOND_ADDRESS:             &c.DiamondAddress,
		MULTIACCOUNT_ADDRESS:        &c.MultiAccountAddress,
		SUB_ACCOUNT_ADDRESS:         &c.SubAccountAddress,
		COLLATERAL_ADDRESS:          &c.CollateralAddress,
		PARTY_B_ADDRESS:             &c.PartyBAddress,
		OPTIONS_ADDRESS:             &c.OptionsAddress,
		MUON_BASE_URL:               &c.MuonBaseURL,
		HEDGER_URL:                  &c.HedgerURL,
		NOTIFY_URL:                  &c.NotifyURL,
		NOTIFY_APP_NAME:             &c.NotifyAppName,
		CONDITIONAL_ORDERS_URL:      &c.ConditionalOrdersURL,
		CONDITIONAL_ORDERS_APP_NAME: &c.ConditionalOrdersAppName,
		HEDGER_WHITELIST:            &c.HedgerWhitelist,
		BINANCE_URL:                 &c.BinanceURL,
		ABI_DIR:                     &c.ABIDir,
		LOG_LEVEL:                   &c.LogLevel,
	}
}

func lookup(name string) (string, bool) {
	for _, key := range append([]string{name}, aliases[name]...) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v, true
		}
	}
	return "", false
}

func (c *Config) applyEnv() error {
	for name, dst := range c.vars() {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	var errList []error
	if v, ok := lookup(CHAIN_ID); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		errList = append(errList, invalid(CHAIN_ID, v, err))
		c.ChainID = n
	}
	if v, ok := lookup(INSTANT_CHAIN_ID); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		errList = append(errList, invalid(INSTANT_CHAIN_ID, v, err))
		c.InstantChainID = n
	}
	if v, ok := lookup(GAS_PRICE_MULTIPLIER); ok {
		f, err := strconv.ParseFloat(v, 64)
		errList = append(errList, invalid(GAS_PRICE_MULTIPLIER, v, err))
		c.GasPriceMultiplier = f
	}
	if v, ok := lookup(HTTP_TIMEOUT); ok {
		d, err := time.ParseDuration(v)
		errList = append(errList, invalid(HTTP_TIMEOUT, v, err))
		c.HTTPTimeout = Duration{d}
	}
	return errors.Join(errList...)
}

func invalid(name, value string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("invalid %s %q: %w", name, value, err)
}

// Require returns one ConfigMissing error naming every variable in names
// that is empty, or nil.
func (c *Config) Require(names ...string) error {
	values := c.vars()

	var missing []string
	for _, name := range names {
		dst, ok := values[name]
		if !ok || *dst == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errs.Missing(missing...)
	}
	return nil
}

// Key parses PRIVATE_KEY, with or without a 0x prefix.
func (c *Config) Key() (*ecdsa.PrivateKey, error) {
	if err := c.Require(PRIVATE_KEY); err != nil {
		return nil, err
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(c.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", PRIVATE_KEY, err)
	}
	return key, nil
}

// Address parses the required address variable name.
func (c *Config) Address(name string) (common.Address, error) {
	if err := c.Require(name); err != nil {
		return common.Address{}, err
	}
	raw := *c.vars()[name]
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid %s %q", name, raw)
	}
	return common.HexToAddress(raw), nil
}

// OptionalAddress is the address in name when it is set and well formed.
func (c *Config) OptionalAddress(name string) mo.Option[common.Address] {
	dst, ok := c.vars()[name]
	if !ok || !common.IsHexAddress(*dst) {
		return mo.None[common.Address]()
	}
	return mo.Some(common.HexToAddress(*dst))
}

func (c *Config) ChainIDBig() *big.Int {
	return big.NewInt(c.ChainID)
}

func (c *Config) InstantChainIDBig() *big.Int {
	return big.NewInt(c.InstantChainID)
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	out := *c
	if out.PrivateKey != "" {
		out.PrivateKey = "***"
	}
	return out
}
