// Package scanner discovers and tracks the single active BTC binary-option
// market on the venue, and polls the external BTC/USD price feed. Both
// clients use retryablehttp so transient 5xx/network errors are retried
// with exponential backoff instead of surfacing as one-shot failures.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"btcdigital/internal/enginerr"
)

// VenueClient talks to the binary-options exchange's public market API.
type VenueClient struct {
	http         *retryablehttp.Client
	baseURL      string
	seriesTicker string
}

func NewVenueClient(baseURL, seriesTicker string) *VenueClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 4 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = 10 * time.Second

	return &VenueClient{http: rc, baseURL: baseURL, seriesTicker: seriesTicker}
}

// venueMarket mirrors the subset of the exchange's market JSON the scanner
// needs. Quote fields carry dollar-fraction prices (e.g. "0.55") rather
// than integer cents, matching the venue's public contract schema.
type venueMarket struct {
	Ticker         string  `json:"ticker"`
	EventTicker    string  `json:"event_ticker"`
	MarketType     string  `json:"market_type"`
	Strike         *string `json:"floor_strike"`
	YesBid         *string `json:"yes_bid"`
	YesAsk         *string `json:"yes_ask"`
	NoBid          *string `json:"no_bid"`
	NoAsk          *string `json:"no_ask"`
	LastPrice      *string `json:"last_price"`
	CloseTime      string  `json:"close_time"`
	ExpirationTime string  `json:"expiration_time"`
	Status         string  `json:"status"`
	Result         *string `json:"result"`
}

type marketsResponse struct {
	Markets []venueMarket `json:"markets"`
}

// settledStatuses are the terminal statuses the venue reports once a
// market's outcome is known; any one of them (or a non-empty Result)
// means the market is ready to be resolved and removed from tracking.
var settledStatuses = map[string]bool{
	"determined": true,
	"finalized":  true,
	"settled":    true,
	"closed":     true,
}

func (m venueMarket) isSettled() bool {
	if settledStatuses[m.Status] {
		return true
	}
	return m.Result != nil && *m.Result != ""
}

// ListMarkets fetches markets in the configured series with the given
// status ("open" or "active"), matching the venue's status filter. It
// reads a single page of at most 200 markets; further pages are not
// requested.
func (v *VenueClient) ListMarkets(ctx context.Context, status string) ([]venueMarket, error) {
	url := fmt.Sprintf("%s/markets?series_ticker=%s&status=%s&limit=200", v.baseURL, v.seriesTicker, status)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.VenueAPI, "build markets request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.http.Do(req)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.Network, "list markets", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, enginerr.VenueAPIError(resp.StatusCode, resp.Status)
	}

	var parsed marketsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, enginerr.Wrap(enginerr.Parse, "decode markets response", err)
	}
	return parsed.Markets, nil
}

// GetMarket fetches a single market by ticker, used to poll tracked
// markets for settlement.
func (v *VenueClient) GetMarket(ctx context.Context, ticker string) (*venueMarket, error) {
	url := fmt.Sprintf("%s/markets/%s", v.baseURL, ticker)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.VenueAPI, "build market request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.http.Do(req)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.Network, "get market", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, enginerr.VenueAPIError(resp.StatusCode, resp.Status)
	}

	var wrapper struct {
		Market venueMarket `json:"market"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return nil, enginerr.Wrap(enginerr.Parse, "decode market response", err)
	}
	return &wrapper.Market, nil
}

// PriceFeedClient polls the external BTC/USD spot price feed.
type PriceFeedClient struct {
	http    *retryablehttp.Client
	baseURL string
	apiKey  string
}

func NewPriceFeedClient(baseURL, apiKey string) *PriceFeedClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = 5 * time.Second

	return &PriceFeedClient{http: rc, baseURL: baseURL, apiKey: apiKey}
}

type priceFeedResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetBTCPrice fetches the latest BTC/USD spot price.
func (p *PriceFeedClient) GetBTCPrice(ctx context.Context) (float64, error) {
	url := p.baseURL + "/getData?symbol=BTCUSD"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, enginerr.Wrap(enginerr.PriceFeed, "build price request", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return 0, enginerr.Wrap(enginerr.Network, "fetch btc price", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, enginerr.VenueAPIError(resp.StatusCode, resp.Status)
	}

	var parsed priceFeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, enginerr.Wrap(enginerr.Parse, "decode price response", err)
	}
	price, err := strconv.ParseFloat(parsed.Price, 64)
	if err != nil || price <= 0 {
		return 0, enginerr.New(enginerr.PriceFeed, "non-positive or unparseable price returned")
	}
	return price, nil
}
