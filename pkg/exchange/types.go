package exchange

import (
	"github.com/shopspring/decimal"
)

// MarketInfo is one entry of the /marketinfo listing
type MarketInfo struct {
	Pair     string          `json:"pair"`
	Rate     decimal.Decimal `json:"rate"`
	Limit    decimal.Decimal `json:"limit"`
	MaxLimit decimal.Decimal `json:"maxLimit"`
	Minimum  decimal.Decimal `json:"minimum"`
	MinerFee decimal.Decimal `json:"minerFee"`
	Error    string          `json:"error,omitempty"`
}

// Coin is one entry of the /getcoins listing, keyed by symbol
type Coin struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Image  string `json:"image,omitempty"`
	Status string `json:"status"`
}

// CoinStatusUnavailable marks a coin the exchange is not accepting
const CoinStatusUnavailable = "unavailable"

// Available reports whether the exchange currently accepts the coin
func (c Coin) Available() bool {
	return c.Status != CoinStatusUnavailable
}

// AddressValidation is the /validateAddress response
type AddressValidation struct {
	IsValid bool   `json:"isvalid"`
	Error   string `json:"error,omitempty"`
}

// ShiftRequest asks the exchange for a deposit address
type ShiftRequest struct {
	Withdrawal    string `json:"withdrawal"`
	Pair          string `json:"pair"`
	ReturnAddress string `json:"returnAddress,omitempty"`
	APIKey        string `json:"apiKey,omitempty"`
}

// ShiftResponse is the /shift response
type ShiftResponse struct {
	OrderID           string `json:"orderId,omitempty"`
	Deposit           string `json:"deposit"`
	DepositType       string `json:"depositType"`
	Withdrawal        string `json:"withdrawal"`
	WithdrawalType    string `json:"withdrawalType"`
	ReturnAddress     string `json:"returnAddress"`
	ReturnAddressType string `json:"returnAddressType"`
	Error             string `json:"error,omitempty"`
}

// Deposit status values reported by /txStat
const (
	StatusNoDeposits = "no_deposits"
	StatusReceived   = "received"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// DepositStatus is the /txStat response for a deposit address
type DepositStatus struct {
	Status       string          `json:"status"`
	Address      string          `json:"address"`
	Withdraw     string          `json:"withdraw,omitempty"`
	IncomingCoin decimal.Decimal `json:"incomingCoin"`
	IncomingType string          `json:"incomingType,omitempty"`
	OutgoingCoin decimal.Decimal `json:"outgoingCoin"`
	OutgoingType string          `json:"outgoingType,omitempty"`
	Transaction  string          `json:"transaction,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// Finished reports whether the exchange is done with the deposit
func (s DepositStatus) Finished() bool {
	return s.Status == StatusComplete || s.Status == StatusFailed
}

type errorResponse struct {
	Error string `json:"error"`
}
