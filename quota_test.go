package germanminer_test

import (
	"testing"
	"time"

	germanminer "github.com/devDariush/germanminer-go"
	"github.com/stretchr/testify/require"
)

func TestQuotaInfo(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		transport := newFakeTransport(t)
		transport.respond("/info", 200, success(`{"limit":100,"requests":42,"outstandingCosts":12.5}`))

		clock := newTestClock()
		client := newTestClient(t, transport, germanminer.Options{NowFunc: clock.Now})

		snapshot, err := client.QuotaInfo(t.Context(), false)
		require.NoError(t, err)
		require.Equal(t, 100, snapshot.Limit)
		require.Equal(t, 42, snapshot.Requests)
		require.Equal(t, 12.5, snapshot.OutstandingCosts)
		require.Equal(t, clock.Now(), snapshot.FetchedAt)
		require.Equal(t, 58, snapshot.Remaining())
	})

	t.Run("served from cache while fresh", func(t *testing.T) {
		transport := newFakeTransport(t)
		transport.respond("/info", 200, infoBody(100, 42))

		clock := newTestClock()
		client := newTestClient(t, transport, germanminer.Options{NowFunc: clock.Now})
		require.Equal(t, 1, transport.calls("/info"))

		_, err := client.QuotaInfo(t.Context(), false)
		require.NoError(t, err)
		require.Equal(t, 1, transport.calls("/info"))
	})

	t.Run("forceRefresh always fetches", func(t *testing.T) {
		transport := newFakeTransport(t)
		transport.respond("/info", 200, infoBody(100, 42))

		clock := newTestClock()
		client := newTestClient(t, transport, germanminer.Options{NowFunc: clock.Now})

		_, err := client.QuotaInfo(t.Context(), true)
		require.NoError(t, err)
		require.Equal(t, 2, transport.calls("/info"))
	})

	t.Run("forceRefresh on a stale cache fetches only once", func(t *testing.T) {
		transport := newFakeTransport(t)
		transport.respond("/info", 200, infoBody(100, 42))

		clock := newTestClock()
		client := newTestClient(t, transport, germanminer.Options{NowFunc: clock.Now})

		clock.Advance(11 * time.Minute)

		_, err := client.QuotaInfo(t.Context(), true)
		require.NoError(t, err)
		// The staleness refresh already produced a fresh snapshot
		require.Equal(t, 2, transport.calls("/info"))
	})

	t.Run("refreshes once the cache is stale", func(t *testing.T) {
		transport := newFakeTransport(t)
		transport.respond("/info", 200, infoBody(100, 42))

		clock := newTestClock()
		client := newTestClient(t, transport, germanminer.Options{NowFunc: clock.Now})

		clock.Advance(11 * time.Minute)

		_, err := client.QuotaInfo(t.Context(), false)
		require.NoError(t, err)
		// The stale cache is refreshed by the precheck
		require.Equal(t, 2, transport.calls("/info"))
	})

	t.Run("missing limit fails validation", func(t *testing.T) {
		transport := newFakeTransport(t)
		transport.respond("/info", 200, success(`{"requests":42,"outstandingCosts":0}`))

		t.Setenv("GERMANMINER_API_KEY", "")
		t.Setenv("GERMANMINER_ENVIRONMENT", "")
		_, err := germanminer.NewClient(t.Context(), germanminer.Options{
			APIKey:     testAPIKey,
			BaseURL:    testBaseURL,
			HTTPClient: transport,
		})
		require.ErrorIs(t, err, germanminer.ErrInvalidResponse)
	})
}

func TestIsLimitReached(t *testing.T) {
	t.Run("false below the limit", func(t *testing.T) {
		transport := newFakeTransport(t)
		transport.respond("/info", 200, infoBody(100, 42))

		client := newTestClient(t, transport, germanminer.Options{})
		require.False(t, client.IsLimitReached())
	})

	t.Run("true at the limit", func(t *testing.T) {
		transport := newFakeTransport(t)
		transport.respond("/info", 200, infoBody(100, 100))

		client := newTestClient(t, transport, germanminer.Options{})
		require.True(t, client.IsLimitReached())
	})

	t.Run("never triggers a refresh", func(t *testing.T) {
		transport := newFakeTransport(t)
		transport.respond("/info", 200, infoBody(100, 42))

		clock := newTestClock()
		client := newTestClient(t, transport, germanminer.Options{NowFunc: clock.Now})

		clock.Advance(time.Hour)

		require.False(t, client.IsLimitReached())
		require.Equal(t, 1, transport.calls("/info"))
	})
}

func TestRemainingRequests(t *testing.T) {
	t.Run("uses the fresh cache", func(t *testing.T) {
		transport := newFakeTransport(t)
		transport.respond("/info", 200, infoBody(100, 42))

		clock := newTestClock()
		client := newTestClient(t, transport, germanminer.Options{NowFunc: clock.Now})

		remaining, err := client.RemainingRequests(t.Context())
		require.NoError(t, err)
		require.Equal(t, 58, remaining)
		require.Equal(t, 1, transport.calls("/info"))
	})

	t.Run("refreshes a stale cache", func(t *testing.T) {
		transport := newFakeTransport(t)
		transport.respond("/info", 200, infoBody(100, 42))

		clock := newTestClock()
		client := newTestClient(t, transport, germanminer.Options{NowFunc: clock.Now})

		clock.Advance(11 * time.Minute)
		transport.respond("/info", 200, infoBody(100, 77))

		remaining, err := client.RemainingRequests(t.Context())
		require.NoError(t, err)
		require.Equal(t, 23, remaining)
		require.Equal(t, 2, transport.calls("/info"))
	})
}

func TestQuotaGuard(t *testing.T) {
	t.Run("load fails before any network call once the limit is reached", func(t *testing.T) {
		transport := newFakeTransport(t)
		transport.respond("/info", 200, infoBody(10, 10))

		client := newTestClient(t, transport, germanminer.Options{})
		require.Equal(t, 1, transport.totalCalls())

		_, err := client.Bank().Account(t.Context(), "ACC1")

		var quotaErr *germanminer.QuotaExceededError
		require.ErrorAs(t, err, &quotaErr)
		require.Equal(t, 10, quotaErr.Requests)
		require.Equal(t, 10, quotaErr.Limit)
		require.ErrorIs(t, err, germanminer.ErrQuotaExceeded)

		// Only the construction-time quota fetch ever hit the network
		require.Equal(t, 1, transport.totalCalls())
	})

	t.Run("stale cache is refreshed before the guard decides", func(t *testing.T) {
		transport := newFakeTransport(t)
		transport.respond("/info", 200, infoBody(10, 3))

		clock := newTestClock()
		client := newTestClient(t, transport, germanminer.Options{NowFunc: clock.Now})

		// The server-side count reaches the limit while our cache is stale
		clock.Advance(11 * time.Minute)
		transport.respond("/info", 200, infoBody(10, 10))

		_, err := client.Bank().Account(t.Context(), "ACC1")
		require.ErrorIs(t, err, germanminer.ErrQuotaExceeded)
		require.Equal(t, 2, transport.calls("/info"))
		require.Equal(t, 0, transport.calls("/bank/account"))
	})
}

func TestLocalRequestCount(t *testing.T) {
	transport := newFakeTransport(t)
	transport.respond("/info", 200, infoBody(100, 0))

	client := newTestClient(t, transport, germanminer.Options{})
	// The construction-time fetch counts
	require.Equal(t, 1, client.LocalRequestCount())

	_, err := client.QuotaInfo(t.Context(), false)
	require.NoError(t, err)
	require.Equal(t, 2, client.LocalRequestCount())
}
