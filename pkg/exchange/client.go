// Package exchange talks to a ShapeShift-style shifting API and negotiates
// deposit addresses for asset pairs.
package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"eth-shift/config"
)

// Client wraps the exchange REST endpoints. Requests are sent once; there
// is no retry.
type Client struct {
	client *resty.Client
	apiKey string
}

// NewClient creates a new exchange API client
func NewClient(cfg config.ExchangeConfig) *Client {
	host := strings.TrimSuffix(cfg.BaseURL, "/")
	if host == "" {
		host = config.DefaultExchangeURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(host).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		client: client,
		apiKey: cfg.APIKey,
	}
}

// BaseURL returns the API root requests are sent to
func (c *Client) BaseURL() string {
	return c.client.BaseURL
}

func (c *Client) newRequest(ctx context.Context, out any) *resty.Request {
	r := c.client.R().
		SetContext(ctx).
		ForceContentType("application/json")
	if out != nil {
		r.SetResult(out)
	}
	return r
}

// GetMarketInfo returns the market info of every pair the exchange lists
func (c *Client) GetMarketInfo(ctx context.Context) ([]MarketInfo, error) {
	var markets []MarketInfo
	resp, err := c.newRequest(ctx, &markets).Get("/marketinfo")
	if err := checkResponse(resp, err, "GET /marketinfo"); err != nil {
		return nil, err
	}
	return markets, nil
}

// GetPairInfo returns the market info of a single pair
func (c *Client) GetPairInfo(ctx context.Context, pair string) (*MarketInfo, error) {
	var info MarketInfo
	resp, err := c.newRequest(ctx, &info).
		SetPathParam("pair", pair).
		Get("/marketinfo/{pair}")
	if err := checkResponse(resp, err, "GET /marketinfo/"+pair); err != nil {
		return nil, err
	}
	if info.Error != "" {
		return nil, errors.Wrapf(ErrExchange, "market info %s: %s", pair, info.Error)
	}
	if info.Pair == "" {
		return nil, errors.Wrapf(ErrPairNotFound, "%s", pair)
	}
	return &info, nil
}

// GetCoins returns the supported coins keyed by symbol
func (c *Client) GetCoins(ctx context.Context) (map[string]Coin, error) {
	coins := make(map[string]Coin)
	resp, err := c.newRequest(ctx, &coins).Get("/getcoins")
	if err := checkResponse(resp, err, "GET /getcoins"); err != nil {
		return nil, err
	}
	return coins, nil
}

// ValidateAddress asks the exchange whether address can hold asset
func (c *Client) ValidateAddress(ctx context.Context, address, asset string) (*AddressValidation, error) {
	var result AddressValidation
	resp, err := c.newRequest(ctx, &result).
		SetPathParams(map[string]string{
			"address": address,
			"asset":   asset,
		}).
		Get("/validateAddress/{address}/{asset}")
	if err := checkResponse(resp, err, "GET /validateAddress"); err != nil {
		return nil, err
	}
	return &result, nil
}

// Shift requests a deposit address. The configured API key is attached
// when present.
func (c *Client) Shift(ctx context.Context, req ShiftRequest) (*ShiftResponse, error) {
	if req.APIKey == "" {
		req.APIKey = c.apiKey
	}

	var result ShiftResponse
	resp, err := c.newRequest(ctx, &result).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/shift")
	if err := checkResponse(resp, err, "POST /shift"); err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, errors.Wrapf(ErrExchange, "shift %s: %s", req.Pair, result.Error)
	}
	return &result, nil
}

// GetDepositStatus returns what the exchange has seen at a deposit address
func (c *Client) GetDepositStatus(ctx context.Context, depositAddress string) (*DepositStatus, error) {
	var result DepositStatus
	resp, err := c.newRequest(ctx, &result).
		SetPathParam("address", depositAddress).
		Get("/txStat/{address}")
	if err := checkResponse(resp, err, "GET /txStat"); err != nil {
		return nil, err
	}
	if result.Status == "error" || (result.Status == "" && result.Error != "") {
		return nil, errors.Wrapf(ErrExchange, "deposit status %s: %s", depositAddress, result.Error)
	}
	return &result, nil
}

// checkResponse turns transport failures and non-2xx answers into errors.
// An error field in a failed response body is surfaced in the message.
func checkResponse(resp *resty.Response, err error, op string) error {
	if err != nil {
		return errors.Wrap(err, op)
	}
	if resp.IsSuccess() {
		return nil
	}

	msg := strings.TrimSpace(string(resp.Body()))
	var body errorResponse
	if json.Unmarshal(resp.Body(), &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}
	return errors.Wrapf(ErrExchange, "%s: http %d: %s", op, resp.StatusCode(), msg)
}
