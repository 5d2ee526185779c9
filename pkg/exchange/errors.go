package exchange

import "errors"

var (
	ErrPairNotFound     = errors.New("pair not found in market info")
	ErrAssetUnavailable = errors.New("asset unavailable")
	ErrInvalidAddress   = errors.New("address rejected by exchange")
	ErrQuoteMismatch    = errors.New("exchange response does not match request")
	// ErrExchange is an error reported by the exchange in a response body or status
	ErrExchange = errors.New("exchange error")
)
