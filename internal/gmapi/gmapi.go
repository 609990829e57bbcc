package gmapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devDariush/germanminer-go/internal/logging"
	"github.com/devDariush/germanminer-go/internal/ratelimiting"
	"github.com/devDariush/germanminer-go/internal/reporting"
	"github.com/devDariush/germanminer-go/internal/strutils"
)

const userAgent = "germanminer-go/0.1.0 (+https://github.com/devDariush/germanminer-go)"

// ErrThrottled is returned when the optional local rate limiter rejects an
// outgoing request. The request was never sent.
var ErrThrottled = errors.New("local rate limit exceeded")

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// API performs a single GET against the GermanMiner API and returns the raw
// body together with the HTTP status. Envelope validation happens upstream.
type API interface {
	Get(ctx context.Context, endpoint string, params url.Values) ([]byte, int, string, error)
}

type apiImpl struct {
	httpClient HTTPClient
	baseURL    string
	apiKey     string
	debug      bool
	limiter    ratelimiting.RateLimiter
}

func (a apiImpl) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, int, string, error) {
	logger := logging.FromContext(ctx)

	if a.limiter != nil && !a.limiter.Consume(endpoint) {
		return nil, -1, "", fmt.Errorf("%w: %s", ErrThrottled, endpoint)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("key", a.apiKey)
	requestURL := fmt.Sprintf("%s/%s?%s", strings.TrimSuffix(a.baseURL, "/"), endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return nil, -1, "", err
	}

	req.Header.Set("User-Agent", userAgent)

	if a.debug {
		logger.Debug("germanminer request", "url", strutils.MaskKey(requestURL))
	}

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		err := fmt.Errorf("failed to send request: %w", err)
		reporting.Report(ctx, err)
		return nil, -1, "", err
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err := fmt.Errorf("failed to read response body: %w", err)
		reporting.Report(ctx, err)
		return nil, -1, "", err
	}

	if a.debug {
		logger.Debug(
			"germanminer request completed",
			"url", strutils.MaskKey(requestURL),
			"status", resp.StatusCode,
			"duration", time.Since(start).String(),
		)
	}

	return data, resp.StatusCode, resp.Status, nil
}

// New builds the low-level API transport. limiter may be nil to disable local
// throttling.
func New(httpClient HTTPClient, baseURL, apiKey string, debug bool, limiter ratelimiting.RateLimiter) API {
	return apiImpl{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		debug:      debug,
		limiter:    limiter,
	}
}
