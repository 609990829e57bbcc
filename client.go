// Package germanminer is a typed client for the GermanMiner game-economy REST
// API: bank accounts, player identity lookups and the per-key request quota.
//
// The client keeps a time-bounded local snapshot of the request quota and
// pre-empts calls once the server-reported limit is reached, so integrations
// can avoid tripping the server-side rate limit. Resources can be loaded
// lazily: with Options.Lazy set, bank accounts and nested players are returned
// with only their identifying key populated until Load is called.
package germanminer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/devDariush/germanminer-go/internal/config"
	"github.com/devDariush/germanminer-go/internal/gmapi"
	"github.com/devDariush/germanminer-go/internal/ratelimiting"
)

const DefaultBaseURL = "https://api.german-miner.de/api/v2"

const (
	endpointInfo        = "info"
	endpointBankAccount = "bank/account"
	endpointBankList    = "bank/accounts"
	endpointUUID        = "util/uuid"
	endpointPlayername  = "util/playername"
)

// HTTPClient performs a single HTTP request. *http.Client satisfies it;
// tests substitute a fake.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Options struct {
	// APIKey authenticates every request. Falls back to the
	// GERMANMINER_API_KEY environment variable; construction fails when
	// neither is set.
	APIKey string

	// Lazy makes resource factories return unloaded objects whose optional
	// fields stay unset until Load is called.
	Lazy bool

	// Debug enables request logging with the API key masked. Defaults to
	// whether GERMANMINER_ENVIRONMENT is "development".
	Debug *bool

	// BaseURL overrides the production API base URL.
	BaseURL string

	// HTTPClient overrides the transport. Defaults to a plain http.Client.
	HTTPClient HTTPClient

	// NowFunc overrides the clock used for quota staleness. For tests.
	NowFunc func() time.Time

	// RequestsPerSecond enables a local per-endpoint token bucket when
	// positive. Rejected calls fail fast with ErrThrottled; nothing blocks
	// or retries. Call Close on the client to release the limiter.
	RequestsPerSecond int
}

// shared is the capability bundle handed to every service and resource
// created by one client. It is read-only after construction.
type shared struct {
	api      gmapi.API
	precheck func(ctx context.Context, bypass bool) error
	lazy     bool
	debug    bool
}

// fetch runs the quota precheck, performs the GET and unwraps the response
// envelope. bypass is reserved for the quota refresh itself.
func (s *shared) fetch(ctx context.Context, endpoint string, params url.Values, bypass bool) (json.RawMessage, error) {
	if err := s.precheck(ctx, bypass); err != nil {
		return nil, err
	}

	body, statusCode, status, err := s.api.Get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	return dataFromResponse(endpoint, statusCode, status, body)
}

type Client struct {
	shared *shared
	quota  quotaTracker

	stopLimiter func()
	closeOnce   sync.Once
}

// NewClient resolves configuration, wires the transport and performs the
// initial quota fetch. The fetch uses the precheck bypass path, so a client
// can be constructed even when the quota is already exhausted.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	cfg, err := config.ConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = cfg.APIKey()
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set Options.APIKey or GERMANMINER_API_KEY", ErrMissingAPIKey)
	}

	debug := cfg.IsDevelopment()
	if opts.Debug != nil {
		debug = *opts.Debug
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	nowFunc := opts.NowFunc
	if nowFunc == nil {
		nowFunc = time.Now
	}

	var limiter ratelimiting.RateLimiter
	stopLimiter := func() {}
	if opts.RequestsPerSecond > 0 {
		limiter, stopLimiter = ratelimiting.NewKeyBasedRateLimiter(
			ratelimiting.RefillPerSecond(opts.RequestsPerSecond),
			ratelimiting.BurstSize(opts.RequestsPerSecond),
		)
	}

	c := &Client{
		quota: quotaTracker{
			nowFunc: nowFunc,
			ttl:     quotaCacheTTL,
		},
		stopLimiter: stopLimiter,
	}
	c.shared = &shared{
		api:      gmapi.New(httpClient, baseURL, apiKey, debug, limiter),
		precheck: c.precheckAndCount,
		lazy:     opts.Lazy,
		debug:    debug,
	}
	c.quota.fetch = c.fetchQuotaSnapshot

	if _, err := c.quota.refresh(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("initial quota fetch failed: %w", err)
	}

	return c, nil
}

// Close releases the background resources of the optional local rate limiter.
// It is safe to call more than once and on clients constructed without one.
func (c *Client) Close() {
	c.closeOnce.Do(c.stopLimiter)
}

// Lazy reports whether resources created by this client are loaded lazily.
func (c *Client) Lazy() bool {
	return c.shared.lazy
}

// Bank returns the bank account service.
func (c *Client) Bank() *BankService {
	return &BankService{shared: c.shared}
}

// Players returns the player lookup service.
func (c *Client) Players() *PlayerService {
	return &PlayerService{shared: c.shared}
}
