package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrPriceServiceUnavailable is returned when an entire price fetch fails,
// as opposed to single symbols missing from an otherwise good response.
var ErrPriceServiceUnavailable = errors.New("price service unavailable")

// Client fetches spot prices from a CoinGecko-compatible simple-price
// endpoint. Every outbound call is followed by a fixed pacing delay to stay
// under the service's call-per-minute ceiling.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rateDelay  time.Duration
	logger     zerolog.Logger
}

// ClientConfig holds adapter configuration.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	RateLimitDelay time.Duration
}

// NewClient creates a new price source client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		rateDelay:  cfg.RateLimitDelay,
		logger:     logger.With().Str("component", "pricing").Logger(),
	}
}

// FetchPrice fetches the current price of one asset in the target currency.
// Returns nil when the price is unavailable for any reason; errors never
// escape the adapter for single-symbol lookups.
func (c *Client) FetchPrice(ctx context.Context, symbol, currency string) *float64 {
	prices, err := c.FetchBatch(ctx, []string{symbol}, currency)
	if err != nil {
		return nil
	}
	return prices[normalizeSymbol(symbol)]
}

// FetchBatch fetches current prices for several assets in one outbound
// request. The result maps upper-cased ticker symbols to prices; symbols the
// service has no data for map to nil. A transport-level failure returns
// ErrPriceServiceUnavailable wrapped with the cause.
func (c *Client) FetchBatch(ctx context.Context, symbols []string, currency string) (map[string]*float64, error) {
	result := make(map[string]*float64, len(symbols))
	if len(symbols) == 0 {
		return result, nil
	}

	// Canonical IDs, remembering which ticker each one belongs to.
	idToSymbol := make(map[string]string, len(symbols))
	ids := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		upper := normalizeSymbol(sym)
		result[upper] = nil
		id := CoinID(sym)
		if _, seen := idToSymbol[id]; !seen {
			ids = append(ids, id)
		}
		idToSymbol[id] = upper
	}

	vsCurrency := strings.ToLower(currency)
	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s",
		c.baseURL, url.QueryEscape(strings.Join(ids, ",")), url.QueryEscape(vsCurrency))

	body, err := c.get(ctx, endpoint)

	// Pacing delay applies after every outbound call, success or not.
	c.pace(ctx)

	if err != nil {
		c.logger.Warn().Err(err).Int("symbols", len(symbols)).Msg("price fetch failed")
		return nil, fmt.Errorf("%w: %v", ErrPriceServiceUnavailable, err)
	}

	// Response shape: {"bitcoin": {"usd": 45000.0}, ...}
	var parsed map[string]map[string]float64
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Warn().Err(err).Msg("price response malformed")
		return nil, fmt.Errorf("%w: %v", ErrPriceServiceUnavailable, err)
	}

	for id, quotes := range parsed {
		sym, ok := idToSymbol[id]
		if !ok {
			continue
		}
		if price, ok := quotes[vsCurrency]; ok {
			p := price
			result[sym] = &p
		}
	}

	for sym, price := range result {
		if price == nil {
			c.logger.Debug().Str("symbol", sym).Str("currency", currency).Msg("no price data for symbol")
		}
	}

	return result, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}

// pace waits out the rate-limit delay, returning early only if the context
// is cancelled.
func (c *Client) pace(ctx context.Context) {
	if c.rateDelay <= 0 {
		return
	}
	timer := time.NewTimer(c.rateDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
