package types

// DepositRequest asks the exchange for a deposit address that converts
// BaseAsset into QuoteAsset and pays out to WithdrawalAddress.
type DepositRequest struct {
	WithdrawalAddress string
	ReturnAddress     string
	BaseAsset         string
	QuoteAsset        string
}

// Pair returns the exchange pair identifier, e.g. "ETH_EOS"
func (r DepositRequest) Pair() string {
	return r.BaseAsset + "_" + r.QuoteAsset
}

// Reverse returns the request for the opposite direction with the same addresses
func (r DepositRequest) Reverse() DepositRequest {
	return DepositRequest{
		WithdrawalAddress: r.WithdrawalAddress,
		ReturnAddress:     r.ReturnAddress,
		BaseAsset:         r.QuoteAsset,
		QuoteAsset:        r.BaseAsset,
	}
}

// DepositQuote is a validated exchange answer for a DepositRequest
type DepositQuote struct {
	DepositAddress    string `json:"deposit_address"`
	DepositAsset      string `json:"deposit_asset"`
	WithdrawalAsset   string `json:"withdrawal_asset"`
	WithdrawalAddress string `json:"withdrawal_address"`
	ReturnAddress     string `json:"return_address"`
}
