package germanminer_test

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	germanminer "github.com/devDariush/germanminer-go"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key"
const testBaseURL = "https://api.test"

type fakeResponse struct {
	statusCode int
	body       string
}

// fakeTransport serves canned responses keyed by URL path and records every
// request, so tests can assert exact call counts.
type fakeTransport struct {
	t         *testing.T
	responses map[string]fakeResponse
	requests  []*url.URL
}

func newFakeTransport(t *testing.T) *fakeTransport {
	return &fakeTransport{
		t:         t,
		responses: make(map[string]fakeResponse),
	}
}

func (f *fakeTransport) respond(path string, statusCode int, body string) {
	f.responses[path] = fakeResponse{statusCode: statusCode, body: body}
}

func (f *fakeTransport) Do(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req.URL)
	require.Equal(f.t, testAPIKey, req.URL.Query().Get("key"), "missing key parameter on %s", req.URL.Path)

	resp, ok := f.responses[req.URL.Path]
	require.True(f.t, ok, "unexpected request to %s", req.URL.Path)

	return &http.Response{
		StatusCode: resp.statusCode,
		Status:     fmt.Sprintf("%d %s", resp.statusCode, http.StatusText(resp.statusCode)),
		Body:       io.NopCloser(strings.NewReader(resp.body)),
	}, nil
}

func (f *fakeTransport) calls(path string) int {
	count := 0
	for _, u := range f.requests {
		if u.Path == path {
			count++
		}
	}
	return count
}

func (f *fakeTransport) totalCalls() int {
	return len(f.requests)
}

func success(data string) string {
	return `{"success":true,"data":` + data + `}`
}

func infoBody(limit, requests int) string {
	return success(fmt.Sprintf(`{"limit":%d,"requests":%d,"outstandingCosts":0}`, limit, requests))
}

// newTestClient builds a client against the fake transport with a clean
// environment. Tests using it must not run in parallel because of t.Setenv.
func newTestClient(t *testing.T, transport *fakeTransport, opts germanminer.Options) *germanminer.Client {
	t.Helper()
	t.Setenv("GERMANMINER_API_KEY", "")
	t.Setenv("GERMANMINER_ENVIRONMENT", "")

	opts.APIKey = testAPIKey
	opts.BaseURL = testBaseURL
	opts.HTTPClient = transport

	client, err := germanminer.NewClient(t.Context(), opts)
	require.NoError(t, err)
	return client
}

// testClock is an adjustable clock for quota staleness tests.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
