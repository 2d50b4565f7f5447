package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfourny/profilescout/internal/crawler"
	"github.com/jfourny/profilescout/internal/fetch"
)

// newStaticClient builds a Client whose probe path is exercised against a test
// server. The headless renderer stays nil; bodies in these tests never trigger
// promotion.
func newStaticClient() *fetch.Client {
	probe := fetch.NewProbe(fetch.ProbeConfig{Timeout: 5 * time.Second})
	return fetch.NewClient(probe, nil, fetch.NewHeuristic(64), fetch.NewAgentRotator([]string{"test-agent"}), nil)
}

func staticBody() string {
	return "<html><body>" + strings.Repeat("<p>content</p>", 50) + "</body></html>"
}

func TestClientRenderStaticSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(staticBody()))
	}))
	defer srv.Close()

	c := newStaticClient()
	res, err := c.Render(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, crawler.OutcomeOK, res.Outcome)
	assert.Equal(t, 200, res.StatusCode)
	assert.False(t, res.UsedHeadless, "static content must not pay for a render")
	assert.NotEmpty(t, res.Body)
}

func TestClientRenderClassifiesStatuses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		outcome crawler.Outcome
		reason  string
	}{
		{name: "NotFound", status: 404, outcome: crawler.OutcomePermanent, reason: crawler.ReasonHTTPStatus},
		{name: "Gone", status: 410, outcome: crawler.OutcomePermanent, reason: crawler.ReasonHTTPStatus},
		{name: "TooManyRequests", status: 429, outcome: crawler.OutcomeTransient, reason: crawler.ReasonThrottled},
		{name: "ServiceUnavailable", status: 503, outcome: crawler.OutcomeTransient, reason: crawler.ReasonThrottled},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			c := newStaticClient()
			res, err := c.Render(context.Background(), srv.URL)
			require.Error(t, err)

			var ferr *crawler.FetchError
			require.ErrorAs(t, err, &ferr)
			assert.Equal(t, tc.outcome, res.Outcome)
			assert.Equal(t, tc.outcome, ferr.Outcome())
			assert.Equal(t, tc.reason, ferr.Reason)
			assert.Equal(t, tc.status, ferr.StatusCode)
			assert.Nil(t, res.Body, "failed fetches carry no body downstream")
		})
	}
}

func TestClientRenderRestrictedPageIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>" + strings.Repeat("<p>x</p>", 30) +
			"<p>This profile is not available</p></body></html>"))
	}))
	defer srv.Close()

	c := newStaticClient()
	res, err := c.Render(context.Background(), srv.URL)
	require.Error(t, err)

	var ferr *crawler.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, crawler.OutcomePermanent, res.Outcome)
	assert.Equal(t, crawler.ReasonRestricted, ferr.Reason)
}

func TestClientRenderConnectionFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := newStaticClient()
	res, err := c.Render(context.Background(), srv.URL)
	require.Error(t, err)

	var ferr *crawler.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, crawler.OutcomeTransient, res.Outcome)
	assert.True(t, ferr.Transient)
}

func TestClientRenderErrorTaxonomy(t *testing.T) {
	t.Run("RenderTimeoutUnwraps", func(t *testing.T) {
		err := crawler.NewRenderTimeoutError("https://example.com", context.DeadlineExceeded)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Equal(t, crawler.OutcomeTransient, err.Outcome())
	})

	t.Run("PermanentStatusMessage", func(t *testing.T) {
		err := crawler.NewPermanentStatusError("https://example.com", 404)
		assert.Contains(t, err.Error(), "status 404")
		assert.Equal(t, crawler.OutcomePermanent, err.Outcome())
	})
}
