package germanminer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// quotaCacheTTL bounds how stale the cached quota snapshot may get before the
// precheck refreshes it.
const quotaCacheTTL = 10 * time.Minute

// QuotaSnapshot is the server-reported request quota at the moment it was
// fetched. Limit and Requests are never incremented locally; they only change
// on a refresh.
type QuotaSnapshot struct {
	Limit            int
	Requests         int
	OutstandingCosts float64

	// FetchedAt is when this snapshot was retrieved, so callers can judge
	// staleness themselves.
	FetchedAt time.Time
}

// Remaining returns the number of requests left in the current window as of
// FetchedAt.
func (s QuotaSnapshot) Remaining() int {
	return s.Limit - s.Requests
}

type quotaTracker struct {
	mu            sync.Mutex
	snapshot      QuotaSnapshot
	hasSnapshot   bool
	localRequests int

	nowFunc func() time.Time
	ttl     time.Duration

	// fetch retrieves a fresh snapshot via the precheck bypass path, so a
	// refresh can never recurse into another limit check.
	fetch func(ctx context.Context) (QuotaSnapshot, error)
}

func (q *quotaTracker) cached() (QuotaSnapshot, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshot, q.hasSnapshot
}

func (q *quotaTracker) isStale(snap QuotaSnapshot) bool {
	return q.nowFunc().Sub(snap.FetchedAt) >= q.ttl
}

func (q *quotaTracker) countRequest() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.localRequests++
}

func (q *quotaTracker) localCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.localRequests
}

// refresh always hits the network. Two concurrent refreshes may both fetch;
// the cache is simply written twice.
func (q *quotaTracker) refresh(ctx context.Context) (QuotaSnapshot, error) {
	snap, err := q.fetch(ctx)
	if err != nil {
		return QuotaSnapshot{}, err
	}

	q.mu.Lock()
	q.snapshot = snap
	q.hasSnapshot = true
	q.mu.Unlock()

	return snap, nil
}

func (q *quotaTracker) current(ctx context.Context) (QuotaSnapshot, error) {
	snap, ok := q.cached()
	if ok && !q.isStale(snap) {
		return snap, nil
	}
	return q.refresh(ctx)
}

func quotaSnapshotFromData(data json.RawMessage, fetchedAt time.Time) (QuotaSnapshot, error) {
	var payload struct {
		Limit            *int     `json:"limit"`
		Requests         *int     `json:"requests"`
		OutstandingCosts *float64 `json:"outstandingCosts"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return QuotaSnapshot{}, &ValidationError{Endpoint: endpointInfo, Reason: fmt.Sprintf("malformed payload: %v", err)}
	}

	if payload.Limit == nil {
		return QuotaSnapshot{}, &ValidationError{Endpoint: endpointInfo, Reason: `missing field "limit"`}
	}
	if payload.Requests == nil {
		return QuotaSnapshot{}, &ValidationError{Endpoint: endpointInfo, Reason: `missing field "requests"`}
	}
	if payload.OutstandingCosts == nil {
		return QuotaSnapshot{}, &ValidationError{Endpoint: endpointInfo, Reason: `missing field "outstandingCosts"`}
	}
	if *payload.Limit < 0 || *payload.Requests < 0 || *payload.OutstandingCosts < 0 {
		return QuotaSnapshot{}, &ValidationError{Endpoint: endpointInfo, Reason: "negative quota values"}
	}

	return QuotaSnapshot{
		Limit:            *payload.Limit,
		Requests:         *payload.Requests,
		OutstandingCosts: *payload.OutstandingCosts,
		FetchedAt:        fetchedAt,
	}, nil
}

// QuotaInfo returns the current quota snapshot, from cache when it is younger
// than the TTL and forceRefresh is false. Like every resource operation it
// runs the quota precheck first, so it fails with a QuotaExceededError once
// the cached snapshot shows the limit reached. A stale cache is refreshed at
// most once per call, even with forceRefresh set.
func (c *Client) QuotaInfo(ctx context.Context, forceRefresh bool) (QuotaSnapshot, error) {
	c.quota.countRequest()

	snap, ok := c.quota.cached()
	refreshed := false
	if !ok || c.quota.isStale(snap) {
		var err error
		snap, err = c.quota.refresh(ctx)
		if err != nil {
			return QuotaSnapshot{}, fmt.Errorf("failed to refresh quota snapshot: %w", err)
		}
		refreshed = true
	}

	if snap.Requests >= snap.Limit {
		return QuotaSnapshot{}, &QuotaExceededError{Requests: snap.Requests, Limit: snap.Limit}
	}

	if forceRefresh && !refreshed {
		return c.quota.refresh(ctx)
	}
	return snap, nil
}

// IsLimitReached reports whether the last cached snapshot shows the quota
// limit reached. It never refreshes, so the answer can be stale by up to the
// cache TTL.
func (c *Client) IsLimitReached() bool {
	snap, ok := c.quota.cached()
	return ok && snap.Requests >= snap.Limit
}

// RemainingRequests refreshes the snapshot when it is older than the TTL and
// returns the number of requests left in the current window.
func (c *Client) RemainingRequests(ctx context.Context) (int, error) {
	snap, err := c.quota.current(ctx)
	if err != nil {
		return 0, err
	}
	return snap.Remaining(), nil
}

// LocalRequestCount returns the advisory count of calls issued through this
// client. It is independent of the server-reported request count.
func (c *Client) LocalRequestCount() int {
	return c.quota.localCount()
}

// precheckAndCount runs before every outgoing call. It always bumps the local
// advisory counter. Unless bypassed (the quota refresh itself), it refreshes a
// stale snapshot and then fails pre-emptively when the limit is reached. The
// guard is best-effort: the server's true count may have advanced since the
// last refresh, and the server rejects over-limit requests on its own.
func (c *Client) precheckAndCount(ctx context.Context, bypass bool) error {
	c.quota.countRequest()
	if bypass {
		return nil
	}

	snap, ok := c.quota.cached()
	if !ok || c.quota.isStale(snap) {
		var err error
		snap, err = c.quota.refresh(ctx)
		if err != nil {
			return fmt.Errorf("failed to refresh quota snapshot: %w", err)
		}
	}

	if snap.Requests >= snap.Limit {
		return &QuotaExceededError{Requests: snap.Requests, Limit: snap.Limit}
	}

	return nil
}

func (c *Client) fetchQuotaSnapshot(ctx context.Context) (QuotaSnapshot, error) {
	data, err := c.shared.fetch(ctx, endpointInfo, nil, true)
	if err != nil {
		return QuotaSnapshot{}, err
	}
	return quotaSnapshotFromData(data, c.quota.nowFunc())
}
