// Package upstox is a thin client for the Upstox v2 REST API. It covers only
// the read paths the bot needs: intraday candles, market quotes and option
// contracts, plus the one-shot authorization-code exchange.
package upstox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultBaseURL = "https://api.upstox.com/v2"

// Candle is one intraday bar. Missing numeric cells come back as NaN so a
// partially filled row survives parsing; the profile builder skips them.
type Candle struct {
	Ts     time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Quote is the latest traded state of one instrument.
type Quote struct {
	LastPrice float64
	Volume    float64
}

// OptionContract mirrors one row of /option/contract.
type OptionContract struct {
	InstrumentKey  string  `json:"instrument_key"`
	TradingSymbol  string  `json:"trading_symbol"`
	StrikePrice    float64 `json:"strike_price"`
	InstrumentType string  `json:"instrument_type"` // "CE" | "PE"
	Expiry         string  `json:"expiry"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *logrus.Logger
}

func NewClient(baseURL, token string, log *logrus.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, auth bool) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", path, err)
	}
	if env.Status != "success" {
		return nil, fmt.Errorf("%s: http %d status %q", path, resp.StatusCode, env.Status)
	}
	return env.Data, nil
}

// IntradayCandles fetches the session's bars for one instrument. Rows arrive
// as positional arrays [ts, o, h, l, c, v, ...]; rows with fewer than six
// cells are skipped individually rather than failing the batch.
func (c *Client) IntradayCandles(ctx context.Context, instrumentKey, interval string) ([]Candle, error) {
	path := fmt.Sprintf("/historical-candle/intraday/%s/%s", url.PathEscape(instrumentKey), url.PathEscape(interval))
	data, err := c.get(ctx, path, nil, false)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Candles [][]any `json:"candles"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("intraday candles: %w", err)
	}

	out := make([]Candle, 0, len(payload.Candles))
	for _, row := range payload.Candles {
		if len(row) < 6 {
			c.log.WithField("instrument", instrumentKey).Debug("skipping short candle row")
			continue
		}
		cd := Candle{
			Open:   numCell(row[1]),
			High:   numCell(row[2]),
			Low:    numCell(row[3]),
			Close:  numCell(row[4]),
			Volume: numCell(row[5]),
		}
		if ts, ok := row[0].(string); ok {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				cd.Ts = t
			}
		}
		if math.IsNaN(cd.Volume) {
			cd.Volume = 0
		}
		out = append(out, cd)
	}
	return out, nil
}

// Quotes returns the latest price and cumulative volume for each resolvable
// key. Keys the upstream cannot resolve are simply absent from the result.
func (c *Client) Quotes(ctx context.Context, keys []string) (map[string]Quote, error) {
	if len(keys) == 0 {
		return map[string]Quote{}, nil
	}
	q := url.Values{}
	q.Set("instrument_key", strings.Join(keys, ","))
	data, err := c.get(ctx, "/market-quote/quotes", q, true)
	if err != nil {
		return nil, err
	}
	var payload map[string]struct {
		LastPrice *float64 `json:"last_price"`
		Volume    float64  `json:"volume"`
		OHLC      struct {
			Close *float64 `json:"close"`
		} `json:"ohlc"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("quotes: %w", err)
	}

	out := make(map[string]Quote, len(payload))
	for key, q := range payload {
		ltp := q.LastPrice
		if ltp == nil {
			ltp = q.OHLC.Close
		}
		if ltp == nil {
			continue
		}
		out[key] = Quote{LastPrice: *ltp, Volume: q.Volume}
	}
	return out, nil
}

// OptionContracts lists the full contract chain for one underlying and expiry.
func (c *Client) OptionContracts(ctx context.Context, underlyingKey, expiry string) ([]OptionContract, error) {
	q := url.Values{}
	q.Set("instrument_key", underlyingKey)
	q.Set("expiry_date", expiry)
	data, err := c.get(ctx, "/option/contract", q, true)
	if err != nil {
		return nil, err
	}
	var contracts []OptionContract
	if err := json.Unmarshal(data, &contracts); err != nil {
		return nil, fmt.Errorf("option contracts: %w", err)
	}
	return contracts, nil
}

// ExchangeToken trades a manually obtained authorization code for an access
// token. Used by cmd/convert-token only; the polling core never calls it.
func ExchangeToken(ctx context.Context, baseURL, clientID, clientSecret, redirectURI, code string) (string, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	body, err := json.Marshal(map[string]string{
		"code":          code,
		"client_id":     clientID,
		"client_secret": clientSecret,
		"redirect_uri":  redirectURI,
		"grant_type":    "authorization_code",
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(baseURL, "/")+"/login/authorization/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		AccessToken string `json:"access_token"`
		Errors      []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	if out.AccessToken == "" {
		if len(out.Errors) > 0 {
			return "", fmt.Errorf("token exchange: %s", out.Errors[0].Message)
		}
		return "", fmt.Errorf("token exchange: http %d without access_token", resp.StatusCode)
	}
	return out.AccessToken, nil
}

func numCell(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
