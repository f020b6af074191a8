// Package explorer talks to the etherscan-family block explorer APIs:
// contract verification status, verified ABIs, and top holder lists.
//
// Every call degrades gracefully. A missing API key, an open circuit, or
// an explorer outage yields an error the analysis pipeline treats as
// "data unavailable", never as elevated risk.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mbd888/rugscan/internal/capability"
	"github.com/mbd888/rugscan/internal/circuitbreaker"
	"github.com/mbd888/rugscan/internal/metrics"
	"github.com/mbd888/rugscan/internal/retry"
)

const (
	requestTimeout = 10 * time.Second
	maxAttempts    = 3
	baseBackoff    = 500 * time.Millisecond
	maxBodySize    = 1 << 20
)

// ErrUnavailable means the chain has no configured explorer endpoint or
// API key.
var ErrUnavailable = errors.New("explorer not configured for chain")

// Endpoint is one explorer API base and its key.
type Endpoint struct {
	APIURL string
	APIKey string
}

// DefaultEndpoints returns the public etherscan-family API bases, without
// keys.
func DefaultEndpoints() map[string]Endpoint {
	return map[string]Endpoint{
		"ethereum": {APIURL: "https://api.etherscan.io/api"},
		"base":     {APIURL: "https://api.basescan.org/api"},
	}
}

// Holder is one entry of a token holder list.
type Holder struct {
	Address  string
	Quantity float64
}

// Client queries explorer APIs with retry and a per-chain circuit
// breaker.
type Client struct {
	http      *http.Client
	breaker   *circuitbreaker.Breaker
	endpoints map[string]Endpoint
	logger    *slog.Logger
}

// New creates an explorer client over the given per-chain endpoints.
func New(endpoints map[string]Endpoint, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:      &http.Client{Timeout: requestTimeout},
		breaker:   circuitbreaker.New(5, 30*time.Second),
		endpoints: endpoints,
		logger:    logger,
	}
}

// Supports reports whether the chain has a usable endpoint and key.
func (c *Client) Supports(chain string) bool {
	ep, ok := c.endpoints[chain]
	return ok && ep.APIKey != ""
}

// IsVerified reports whether the contract source is verified.
func (c *Client) IsVerified(ctx context.Context, chain, address string) (bool, error) {
	params := url.Values{
		"module":  {"contract"},
		"action":  {"getsourcecode"},
		"address": {address},
	}
	result, err := c.get(ctx, chain, params)
	if err != nil {
		return false, err
	}

	var entries []struct {
		SourceCode string `json:"SourceCode"`
	}
	if err := json.Unmarshal(result, &entries); err != nil {
		return false, fmt.Errorf("decode source response: %w", err)
	}
	return len(entries) > 0 && strings.TrimSpace(entries[0].SourceCode) != "", nil
}

// ABI fetches the verified ABI. Returns nil without error when the
// contract is unverified or the ABI does not parse; an absent interface
// is a valid analysis input.
func (c *Client) ABI(ctx context.Context, chain, address string) ([]capability.ABIEntry, error) {
	params := url.Values{
		"module":  {"contract"},
		"action":  {"getabi"},
		"address": {address},
	}
	result, err := c.get(ctx, chain, params)
	if err != nil {
		return nil, err
	}

	var abiJSON string
	if err := json.Unmarshal(result, &abiJSON); err != nil {
		return nil, fmt.Errorf("decode abi response: %w", err)
	}
	if abiJSON == "" || abiJSON == "Contract source code not verified" {
		return nil, nil
	}

	var iface []capability.ABIEntry
	if err := json.Unmarshal([]byte(abiJSON), &iface); err != nil {
		c.logger.Debug("unparseable abi", "chain", chain, "address", address, "error", err)
		return nil, nil
	}
	return iface, nil
}

// TopHolders fetches the top token holders, largest first. Entries with
// unparseable quantities are skipped.
func (c *Client) TopHolders(ctx context.Context, chain, address string) ([]Holder, error) {
	params := url.Values{
		"module":          {"token"},
		"action":          {"tokenholderlist"},
		"contractaddress": {address},
		"page":            {"1"},
		"offset":          {"10"},
	}
	result, err := c.get(ctx, chain, params)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Address  string `json:"TokenHolderAddress"`
		Quantity string `json:"TokenHolderQuantity"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("decode holder response: %w", err)
	}

	holders := make([]Holder, 0, len(raw))
	for _, h := range raw {
		qty, err := strconv.ParseFloat(h.Quantity, 64)
		if err != nil {
			continue
		}
		holders = append(holders, Holder{Address: h.Address, Quantity: qty})
	}
	return holders, nil
}

// TotalSupply fetches the token's total supply in raw units, the same
// units tokenholderlist reports balances in.
func (c *Client) TotalSupply(ctx context.Context, chain, address string) (float64, error) {
	params := url.Values{
		"module":          {"stats"},
		"action":          {"tokensupply"},
		"contractaddress": {address},
	}
	result, err := c.get(ctx, chain, params)
	if err != nil {
		return 0, err
	}

	var raw string
	if err := json.Unmarshal(result, &raw); err != nil {
		return 0, fmt.Errorf("decode supply response: %w", err)
	}
	supply, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse supply %q: %w", raw, err)
	}
	return supply, nil
}

// get issues one explorer API request with retry, unwrapping the
// status/result envelope.
func (c *Client) get(ctx context.Context, chain string, params url.Values) (json.RawMessage, error) {
	ep, ok := c.endpoints[chain]
	if !ok || ep.APIKey == "" {
		return nil, ErrUnavailable
	}
	if !c.breaker.Allow(chain) {
		return nil, fmt.Errorf("explorer circuit open for %s", chain)
	}

	params.Set("apikey", ep.APIKey)
	reqURL := ep.APIURL + "?" + params.Encode()

	var result json.RawMessage
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
			statusErr := fmt.Errorf("explorer returned status %d", resp.StatusCode)
			// Rate limits and server errors are worth retrying.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return retry.Permanent(statusErr)
			}
			return statusErr
		}

		var envelope struct {
			Status  string          `json:"status"`
			Message string          `json:"message"`
			Result  json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return retry.Permanent(fmt.Errorf("decode explorer response: %w", err))
		}
		if envelope.Status != "1" {
			return retry.Permanent(fmt.Errorf("explorer error: %s", envelope.Message))
		}
		result = envelope.Result
		return nil
	})
	if err != nil {
		c.breaker.RecordFailure(chain)
		metrics.UpstreamErrorsTotal.WithLabelValues("explorer").Inc()
		return nil, err
	}
	c.breaker.RecordSuccess(chain)
	return result, nil
}
