package symmio

import (
	"math/big"

	"github.com/banky/go-symmio/chain"
	"github.com/banky/go-symmio/constants"
	"github.com/banky/go-symmio/types"
	"github.com/ethereum/go-ethereum/common"
)

// Diamond method names.
const (
	METHOD_SEND_QUOTE                      = "sendQuote"
	METHOD_LOCK_QUOTE                      = "lockQuote"
	METHOD_UNLOCK_QUOTE                    = "unlockQuote"
	METHOD_LOCK_AND_OPEN_QUOTE             = "lockAndOpenQuote"
	METHOD_EMERGENCY_CLOSE_POSITION        = "emergencyClosePosition"
	METHOD_FORCE_CLOSE_POSITION            = "forceClosePosition"
	METHOD_SETTLE_UPNL                     = "settleUpnl"
	METHOD_SETTLE_AND_FORCE_CLOSE_POSITION = "settleAndForceClosePosition"
	METHOD_REQUEST_TO_CLOSE_POSITION       = "requestToClosePosition"
	METHOD_REQUEST_TO_CANCEL_QUOTE         = "requestToCancelQuote"
	METHOD_REQUEST_TO_CANCEL_CLOSE_REQUEST = "requestToCancelCloseRequest"
	METHOD_ACCEPT_CANCEL_CLOSE_REQUEST     = "acceptCancelCloseRequest"
	METHOD_EXPIRE_QUOTE                    = "expireQuote"
	METHOD_CHARGE_FUNDING_RATE             = "chargeFundingRate"
	METHOD_DEPOSIT_AND_ALLOCATE            = "depositAndAllocate"
	METHOD_DEPOSIT_TO_RESERVE_VAULT        = "depositToReserveVault"
	METHOD_WITHDRAW_FROM_RESERVE_VAULT     = "withdrawFromReserveVault"
	METHOD_TRANSFER_ALLOCATION             = "transferAllocation"
	METHOD_WITHDRAW_RECEIVED_BRIDGE_VALUES = "withdrawReceivedBridgeValues"
)

// QuoteRequest carries the arguments of sendQuote. Amounts are in wei.
type QuoteRequest struct {
	PartyBsWhiteList []common.Address
	SymbolID         *big.Int
	PositionType     types.PositionType
	OrderType        types.OrderType
	Price            *big.Int
	Quantity         *big.Int
	Cva              *big.Int
	Lf               *big.Int
	PartyAmm         *big.Int
	PartyBmm         *big.Int
	MaxFundingRate   *big.Int
	Deadline         *big.Int
	UpnlSig          types.SingleUpnlAndPriceSig
}

func SendQuoteCall(req QuoteRequest) chain.Call {
	whitelist := req.PartyBsWhiteList
	if whitelist == nil {
		whitelist = []common.Address{}
	}

	call := chain.NewCall(constants.GAS_SEND_QUOTE, METHOD_SEND_QUOTE,
		whitelist,
		req.SymbolID,
		uint8(req.PositionType),
		uint8(req.OrderType),
		req.Price,
		req.Quantity,
		req.Cva,
		req.Lf,
		req.PartyAmm,
		req.PartyBmm,
		req.MaxFundingRate,
		req.Deadline,
		req.UpnlSig,
	)
	call.Fingerprint = types.Fingerprint(&req.UpnlSig)
	return call
}

func LockQuoteCall(quoteID *big.Int, sig types.SingleUpnlSig) chain.Call {
	call := chain.NewCall(constants.GAS_LOCK_QUOTE, METHOD_LOCK_QUOTE, quoteID, sig)
	call.Fingerprint = types.Fingerprint(&sig)
	return call
}

func UnlockQuoteCall(quoteID *big.Int) chain.Call {
	return chain.NewCall(constants.GAS_UNLOCK_QUOTE, METHOD_UNLOCK_QUOTE, quoteID)
}

func LockAndOpenQuoteCall(
	quoteID *big.Int,
	filledAmount *big.Int,
	openedPrice *big.Int,
	upnlSig types.SingleUpnlSig,
	pairSig types.PairUpnlAndPriceSig,
) chain.Call {
	call := chain.NewCall(constants.GAS_LOCK_AND_OPEN_QUOTE, METHOD_LOCK_AND_OPEN_QUOTE,
		quoteID,
		filledAmount,
		openedPrice,
		upnlSig,
		pairSig,
	)
	call.Fingerprint = types.Fingerprint(&pairSig)
	return call
}

func EmergencyClosePositionCall(quoteID *big.Int, sig types.PairUpnlAndPriceSig) chain.Call {
	call := chain.NewCall(constants.GAS_EMERGENCY_CLOSE, METHOD_EMERGENCY_CLOSE_POSITION, quoteID, sig)
	call.Fingerprint = types.Fingerprint(&sig)
	return call
}

func ForceClosePositionCall(quoteID *big.Int, sig types.HighLowPriceSig) chain.Call {
	call := chain.NewCall(constants.GAS_FORCE_CLOSE, METHOD_FORCE_CLOSE_POSITION, quoteID, sig)
	call.Fingerprint = types.Fingerprint(&sig)
	return call
}

func SettleUpnlCall(
	sig types.SettlementSig,
	updatedPrices []*big.Int,
	partyA common.Address,
) chain.Call {
	call := chain.NewCall(constants.GAS_SETTLE_UPNL, METHOD_SETTLE_UPNL,
		sig,
		nonNil(updatedPrices),
		partyA,
	)
	call.Fingerprint = types.Fingerprint(&sig)
	return call
}

func SettleAndForceClosePositionCall(
	quoteID *big.Int,
	priceSig types.HighLowPriceSig,
	settleSig types.SettlementSig,
	updatedPrices []*big.Int,
) chain.Call {
	call := chain.NewCall(constants.GAS_SETTLE_AND_FORCE_CLOSE, METHOD_SETTLE_AND_FORCE_CLOSE_POSITION,
		quoteID,
		priceSig,
		settleSig,
		nonNil(updatedPrices),
	)
	call.Fingerprint = types.Fingerprint(&priceSig)
	return call
}

// CloseRequest carries the arguments of requestToClosePosition.
type CloseRequest struct {
	QuoteID         *big.Int
	ClosePrice      *big.Int
	QuantityToClose *big.Int
	OrderType       types.OrderType
	Deadline        *big.Int
}

func RequestToClosePositionCall(req CloseRequest) chain.Call {
	return chain.NewCall(constants.GAS_REQUEST_TO_CLOSE, METHOD_REQUEST_TO_CLOSE_POSITION,
		req.QuoteID,
		req.ClosePrice,
		req.QuantityToClose,
		uint8(req.OrderType),
		req.Deadline,
	)
}

func RequestToCancelQuoteCall(quoteID *big.Int) chain.Call {
	return chain.NewCall(constants.GAS_REQUEST_TO_CANCEL, METHOD_REQUEST_TO_CANCEL_QUOTE, quoteID)
}

func RequestToCancelCloseRequestCall(quoteID *big.Int) chain.Call {
	return chain.NewCall(constants.GAS_REQUEST_TO_CANCEL, METHOD_REQUEST_TO_CANCEL_CLOSE_REQUEST, quoteID)
}

func AcceptCancelCloseRequestCall(quoteID *big.Int) chain.Call {
	return chain.NewCall(constants.GAS_ACCEPT_CANCEL_CLOSE, METHOD_ACCEPT_CANCEL_CLOSE_REQUEST, quoteID)
}

func ExpireQuoteCall(quoteIDs []*big.Int) chain.Call {
	return chain.NewCall(constants.GAS_EXPIRE_QUOTE, METHOD_EXPIRE_QUOTE, nonNil(quoteIDs))
}

// ChargeFundingRateCall charges rates[i] on quoteIDs[i] of partyA.
func ChargeFundingRateCall(
	partyA common.Address,
	quoteIDs []*big.Int,
	rates []*big.Int,
	sig types.SingleUpnlSig,
) chain.Call {
	call := chain.NewCall(constants.GAS_CHARGE_FUNDING_RATE, METHOD_CHARGE_FUNDING_RATE,
		partyA,
		nonNil(quoteIDs),
		nonNil(rates),
		sig,
	)
	call.Fingerprint = types.Fingerprint(&sig)
	return call
}

func DepositAndAllocateCall(amount *big.Int) chain.Call {
	return chain.NewCall(constants.GAS_DEPOSIT_AND_ALLOCATE, METHOD_DEPOSIT_AND_ALLOCATE, amount)
}

func DepositToReserveVaultCall(amount *big.Int, partyB common.Address) chain.Call {
	return chain.NewCall(constants.GAS_RESERVE_VAULT, METHOD_DEPOSIT_TO_RESERVE_VAULT, amount, partyB)
}

func WithdrawFromReserveVaultCall(amount *big.Int) chain.Call {
	return chain.NewCall(constants.GAS_RESERVE_VAULT, METHOD_WITHDRAW_FROM_RESERVE_VAULT, amount)
}

func TransferAllocationCall(
	amount *big.Int,
	origin common.Address,
	recipient common.Address,
	sig types.SingleUpnlSig,
) chain.Call {
	call := chain.NewCall(constants.GAS_TRANSFER_ALLOCATION, METHOD_TRANSFER_ALLOCATION,
		amount,
		origin,
		recipient,
		sig,
	)
	call.Fingerprint = types.Fingerprint(&sig)
	return call
}

func WithdrawReceivedBridgeValuesCall(transactionIDs []*big.Int) chain.Call {
	return chain.NewCall(constants.GAS_WITHDRAW_BRIDGE, METHOD_WITHDRAW_RECEIVED_BRIDGE_VALUES, nonNil(transactionIDs))
}

func nonNil(ns []*big.Int) []*big.Int {
	if ns == nil {
		return []*big.Int{}
	}
	return ns
}
