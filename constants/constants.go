package constants

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const MUON_TESTNET_URL = "https://polygon-testnet-oracle.rasa.capital/v1/"
const MUON_MAINNET_URL = "https://muon-oracle1.rasa.capital/v1/"
const NOTIFICATION_WS_URL = "wss://notification.rasa.capital/ws/v1/subscribe"
const BINANCE_API_URL = "https://api.binance.com"

// MUON_APP is the app name every oracle query is issued under.
const MUON_APP = "symmio"

const DEFAULT_CHAIN_ID = 137
const INSTANT_CHAIN_ID = 42161

// DEFAULT_GAS_PRICE_MULTIPLIER is applied to the node's suggested gas price.
const DEFAULT_GAS_PRICE_MULTIPLIER = 1.5

// Fixed gas limits per call. Gas is never estimated so that a simulation
// revert cannot hide the real on-chain failure.
const (
	GAS_SEND_QUOTE               uint64 = 800_000
	GAS_LOCK_QUOTE               uint64 = 2_000_000
	GAS_UNLOCK_QUOTE             uint64 = 200_000
	GAS_LOCK_AND_OPEN_QUOTE      uint64 = 800_000
	GAS_EMERGENCY_CLOSE          uint64 = 300_000
	GAS_FORCE_CLOSE              uint64 = 500_000
	GAS_SETTLE_UPNL              uint64 = 2_000_000
	GAS_SETTLE_AND_FORCE_CLOSE   uint64 = 2_000_000
	GAS_REQUEST_TO_CLOSE         uint64 = 300_000
	GAS_REQUEST_TO_CANCEL        uint64 = 200_000
	GAS_ACCEPT_CANCEL_CLOSE      uint64 = 200_000
	GAS_EXPIRE_QUOTE             uint64 = 200_000
	GAS_CHARGE_FUNDING_RATE      uint64 = 300_000
	GAS_DEPOSIT_AND_ALLOCATE     uint64 = 200_000
	GAS_RESERVE_VAULT            uint64 = 200_000
	GAS_TRANSFER_ALLOCATION      uint64 = 300_000
	GAS_WITHDRAW_BRIDGE          uint64 = 300_000
	GAS_ERC20_APPROVE            uint64 = 60_000
	GAS_MULTIACCOUNT_APPROVE     uint64 = 100_000
	GAS_MULTIACCOUNT_CALL        uint64 = 3_000_000
	GAS_MULTIACCOUNT_ADD         uint64 = 8_000_000
	GAS_MULTIACCOUNT_ACCOUNT     uint64 = 300_000
	GAS_MULTIACCOUNT_DELEGATE    uint64 = 200_000
	GAS_MULTIACCOUNT_DELEGATES   uint64 = 400_000
	GAS_OPTIONS_DEPOSIT          uint64 = 200_000
	GAS_OPTIONS_DEPOSIT_FOR      uint64 = 250_000
	GAS_OPTIONS_ALLOCATE         uint64 = 300_000
	GAS_OPTIONS_DEALLOCATE       uint64 = 600_000
	GAS_OPTIONS_SYNC_BALANCES    uint64 = 500_000
	GAS_OPTIONS_EXPRESS_WITHDRAW uint64 = 350_000
	GAS_OPTIONS_DEACTIVATE       uint64 = 250_000
	GAS_OPTIONS_CANCEL_CLOSE     uint64 = 600_000
	GAS_OPTIONS_DEFAULT          uint64 = 300_000
)

// Instant-action defaults.
const (
	DEFAULT_MAX_FUNDING_RATE = "200"
	DEFAULT_POLL_ATTEMPTS    = 120
	DEFAULT_POLL_INTERVAL    = 500 * time.Millisecond
	DEFAULT_NOTIFY_TIMEOUT   = 120 * time.Second
	DEFAULT_SESSION_LIFETIME = 2*time.Hour + 30*time.Minute
	DEFAULT_DEADLINE_OFFSET  = time.Hour
	SEND_QUOTE_DEADLINE      = 24 * time.Hour
)

// SIWE defaults used by the hedger login.
const (
	SIWE_DOMAIN  = "localhost"
	SIWE_ORIGIN  = "http://localhost:3000"
	SIWE_VERSION = "1"
)

const CONDITIONAL_ORDERS_APP_NAME = "VIBE"
const NOTIFICATION_APP_NAME = "Base_Superflow_Production"

var ZERO_ADDRESS = common.Address{}
