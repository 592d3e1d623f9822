/**
 * @description
 * HTTP client for the CoinGecko market-data API.
 * Fetches market snapshots, price/volume history, and spot prices.
 *
 * API Base URL: https://api.coingecko.com/api/v3
 *
 * Failures surface as errors so callers can show an explicit error state;
 * this client never fabricates placeholder data.
 *
 * @dependencies
 * - net/http
 * - encoding/json
 * - internal/config
 */

package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pricepulse-project/backend/internal/config"
)

const (
	DefaultTimeout = 15 * time.Second
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
)

// Client for the CoinGecko API
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new market-data client
func NewClient(cfg *config.Config) *Client {
	baseURL := DefaultBaseURL
	if cfg != nil && cfg.Market.CoinGeckoURL != "" {
		baseURL = cfg.Market.CoinGeckoURL
	}

	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// GetMarketSnapshot fetches price and 24h change for a set of coins
// GET /coins/markets?vs_currency=usd&ids={ids}
func (c *Client) GetMarketSnapshot(ctx context.Context, ids []string) ([]Snapshot, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one coin id is required")
	}

	u, err := url.Parse(fmt.Sprintf("%s/coins/markets", c.BaseURL))
	if err != nil {
		return nil, err
	}

	q := u.Query()
	q.Set("vs_currency", "usd")
	q.Set("ids", strings.Join(ids, ","))
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(len(ids)))
	q.Set("page", "1")
	q.Set("sparkline", "false")
	u.RawQuery = q.Encode()

	var snapshots []Snapshot
	if err := c.getJSON(ctx, u.String(), &snapshots); err != nil {
		return nil, err
	}

	for i := range snapshots {
		snapshots[i].Symbol = strings.ToUpper(snapshots[i].Symbol)
	}
	return snapshots, nil
}

// GetPriceHistory fetches the chart series for a coin
// GET /coins/{id}/market_chart?vs_currency=usd&days={days}
func (c *Client) GetPriceHistory(ctx context.Context, coinID string, days int) (*History, error) {
	if coinID == "" {
		return nil, fmt.Errorf("coin id is required")
	}
	if days <= 0 {
		days = 1
	}

	endpoint := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d", c.BaseURL, url.PathEscape(coinID), days)

	var raw marketChartResponse
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, err
	}
	if len(raw.Prices) == 0 {
		return nil, fmt.Errorf("market data api returned an empty price series for %s", coinID)
	}

	history := &History{
		Prices:  make([]PricePoint, 0, len(raw.Prices)),
		Volumes: make([]PricePoint, 0, len(raw.TotalVolumes)),
	}
	for _, p := range raw.Prices {
		history.Prices = append(history.Prices, PricePoint{Timestamp: int64(p[0]), Value: p[1]})
	}
	for _, v := range raw.TotalVolumes {
		history.Volumes = append(history.Volumes, PricePoint{Timestamp: int64(v[0]), Value: v[1]})
	}
	return history, nil
}

// GetSpotPrice fetches the current USD price for a coin
// GET /simple/price?ids={id}&vs_currencies=usd
func (c *Client) GetSpotPrice(ctx context.Context, coinID string) (float64, error) {
	if coinID == "" {
		return 0, fmt.Errorf("coin id is required")
	}

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.BaseURL, url.QueryEscape(coinID))

	var raw map[string]map[string]float64
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return 0, err
	}

	price, ok := raw[coinID]["usd"]
	if !ok {
		return 0, fmt.Errorf("market data api returned no usd price for %s", coinID)
	}
	return price, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("market data api error: status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
