// Package liquidity reads market structure from the DexScreener API:
// primary pair depth, aggregate liquidity across pools, pair count, and
// token age derived from the earliest pair creation time.
package liquidity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mbd888/rugscan/internal/circuitbreaker"
	"github.com/mbd888/rugscan/internal/metrics"
	"github.com/mbd888/rugscan/internal/retry"
)

const (
	defaultBaseURL = "https://api.dexscreener.com"
	requestTimeout = 15 * time.Second
	maxAttempts    = 3
	baseBackoff    = 500 * time.Millisecond
	maxBodySize    = 4 << 20

	breakerKey = "dexscreener"
)

// ErrUnsupportedChain is returned for chains the analyzer does not cover.
var ErrUnsupportedChain = errors.New("unsupported chain for liquidity analysis")

var supportedChains = map[string]bool{
	"ethereum": true,
	"base":     true,
}

// Snapshot is the liquidity view of a token. Pointer fields distinguish
// "unknown" from zero; scoring never coerces an absent value.
type Snapshot struct {
	LiquidityUSD      *float64 `json:"liquidityUsd"`
	TotalLiquidityUSD *float64 `json:"totalLiquidityUsd"`
	FDVUSD            *float64 `json:"fdvUsd"`
	MarketCapUSD      *float64 `json:"marketCapUsd"`
	Volume24hUSD      *float64 `json:"volume24hUsd"`
	PairURL           string   `json:"pairUrl,omitempty"`
	PairCount         int      `json:"pairCount"`
	TokenAgeDays      *float64 `json:"tokenAgeDays"`
	PriceUSD          *float64 `json:"priceUsd"`
	PriceChange24h    *float64 `json:"priceChange24h"`
	TokenName         string   `json:"tokenName,omitempty"`
	TokenSymbol       string   `json:"tokenSymbol,omitempty"`
	LowLiquidity      bool     `json:"lowLiquidity"`
	SuspiciousRatio   bool     `json:"suspiciousRatio"`
}

// Empty is the snapshot used when no market data exists. Both caution
// flags are set: absence of liquidity data is itself a warning sign.
func Empty() Snapshot {
	return Snapshot{LowLiquidity: true, SuspiciousRatio: true}
}

// apiNumber decodes a DexScreener numeric field, which may arrive as a
// number, a quoted string, or null. Unparseable and non-finite values
// decode to "unknown" rather than failing the whole response.
type apiNumber struct {
	val *float64
}

func (n *apiNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n.val = &f
	return nil
}

type pairData struct {
	URL           string    `json:"url"`
	PriceUSD      apiNumber `json:"priceUsd"`
	FDV           apiNumber `json:"fdv"`
	MarketCap     apiNumber `json:"marketCap"`
	PairCreatedAt int64     `json:"pairCreatedAt"` // unix ms
	Liquidity     struct {
		USD apiNumber `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 apiNumber `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H24 apiNumber `json:"h24"`
	} `json:"priceChange"`
	BaseToken struct {
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	} `json:"baseToken"`
}

// Client queries DexScreener with retry and a circuit breaker.
type Client struct {
	http    *http.Client
	breaker *circuitbreaker.Breaker
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a DexScreener client. baseURL overrides the public API
// host, mainly for tests; pass "" for the default.
func New(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		breaker: circuitbreaker.New(5, 30*time.Second),
		baseURL: baseURL,
		logger:  logger,
		now:     time.Now,
	}
}

// Fetch returns the liquidity snapshot for a token. A token with no
// listed pairs returns Empty() without error; transport failures return
// an error the caller downgrades to Empty().
func (c *Client) Fetch(ctx context.Context, chain, address string) (Snapshot, error) {
	if !supportedChains[chain] {
		return Empty(), fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}
	if !c.breaker.Allow(breakerKey) {
		return Empty(), errors.New("dexscreener circuit open")
	}

	reqURL := c.baseURL + "/latest/dex/tokens/" + address

	var payload struct {
		Pairs []pairData `json:"pairs"`
	}
	err := retry.Do(ctx, maxAttempts, baseBackoff, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			statusErr := fmt.Errorf("dexscreener returned status %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return retry.Permanent(statusErr)
			}
			return statusErr
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return retry.Permanent(fmt.Errorf("decode dexscreener response: %w", err))
		}
		return nil
	})
	if err != nil {
		c.breaker.RecordFailure(breakerKey)
		metrics.UpstreamErrorsTotal.WithLabelValues("dexscreener").Inc()
		return Empty(), err
	}
	c.breaker.RecordSuccess(breakerKey)

	return c.buildSnapshot(payload.Pairs), nil
}

func (c *Client) buildSnapshot(pairs []pairData) Snapshot {
	if len(pairs) == 0 {
		return Empty()
	}

	// Primary pair is the deepest one.
	primary := pairs[0]
	best := liqOrZero(primary)
	for _, p := range pairs[1:] {
		if v := liqOrZero(p); v > best {
			primary, best = p, v
		}
	}

	snap := Snapshot{
		LiquidityUSD:   primary.Liquidity.USD.val,
		FDVUSD:         primary.FDV.val,
		MarketCapUSD:   primary.MarketCap.val,
		Volume24hUSD:   primary.Volume.H24.val,
		PairURL:        primary.URL,
		PriceUSD:       primary.PriceUSD.val,
		PriceChange24h: primary.PriceChange.H24.val,
		TokenName:      primary.BaseToken.Name,
		TokenSymbol:    primary.BaseToken.Symbol,
	}

	// Aggregate every pool that actually holds liquidity.
	var totalLiq float64
	for _, p := range pairs {
		if v := liqOrZero(p); v > 0 {
			totalLiq += v
			snap.PairCount++
		}
	}
	if totalLiq > 0 {
		snap.TotalLiquidityUSD = &totalLiq
	} else {
		snap.TotalLiquidityUSD = snap.LiquidityUSD
	}

	// Age from the earliest pair creation across all pools.
	var earliest int64
	for _, p := range pairs {
		if p.PairCreatedAt > 0 && (earliest == 0 || p.PairCreatedAt < earliest) {
			earliest = p.PairCreatedAt
		}
	}
	if earliest > 0 {
		age := c.now().Sub(time.UnixMilli(earliest)).Hours() / 24
		if age < 0 {
			age = 0
		}
		snap.TokenAgeDays = &age
	}

	snap.LowLiquidity = snap.LiquidityUSD == nil || *snap.LiquidityUSD < 25_000
	if snap.LiquidityUSD != nil && *snap.LiquidityUSD != 0 && snap.FDVUSD != nil && *snap.FDVUSD > 0 {
		snap.SuspiciousRatio = *snap.LiquidityUSD / *snap.FDVUSD < 0.01
	}

	return snap
}

func liqOrZero(p pairData) float64 {
	if p.Liquidity.USD.val == nil {
		return 0
	}
	return *p.Liquidity.USD.val
}
